package main

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/gameforge/backend/pkg/buildqueue"
	"github.com/gameforge/backend/pkg/community"
	"github.com/gameforge/backend/pkg/games"
)

// Machine-readable error codes returned in every error body.
const (
	codeUnauthorized       = "unauthorized"
	codeForbidden          = "forbidden"
	codeNotFound           = "not_found"
	codeInvalidRequest     = "invalid_request"
	codePreconditionFailed = "precondition_failed"
	codeRateLimited        = "rate_limited"
	codeDispatchFailed     = "dispatch_failed"
	codeInternal           = "internal"
)

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func respondJSON(w http.ResponseWriter, payload any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, map[string]errorBody{"error": {Code: code, Message: message}}, status)
}

// respondMappedError translates domain errors into HTTP status and code.
// Unknown errors become opaque 500s; the detail stays in the server log.
func respondMappedError(w http.ResponseWriter, err error) {
	var validation *buildqueue.ValidationError
	var dispatch *buildqueue.DispatchError

	switch {
	case errors.Is(err, games.ErrNotFound),
		errors.Is(err, buildqueue.ErrJobNotFound),
		errors.Is(err, community.ErrCommentNotFound):
		respondError(w, http.StatusNotFound, codeNotFound, err.Error())
	case errors.Is(err, community.ErrNotCommentOwner):
		respondError(w, http.StatusForbidden, codeForbidden, err.Error())
	case errors.Is(err, buildqueue.ErrTierInsufficient):
		respondError(w, http.StatusForbidden, codeForbidden, err.Error())
	case errors.Is(err, buildqueue.ErrRateLimited):
		respondError(w, http.StatusTooManyRequests, codeRateLimited, err.Error())
	case errors.Is(err, buildqueue.ErrActiveJobExists):
		respondError(w, http.StatusConflict, codePreconditionFailed, err.Error())
	case errors.Is(err, buildqueue.ErrCodeMissing),
		errors.Is(err, buildqueue.ErrLanguageUnsupported),
		errors.Is(err, games.ErrSlugTaken),
		errors.Is(err, community.ErrEmptyBody):
		respondError(w, http.StatusBadRequest, codeInvalidRequest, err.Error())
	case errors.As(err, &validation):
		respondError(w, http.StatusUnprocessableEntity, codeInvalidRequest, validation.Error())
	case errors.As(err, &dispatch):
		respondError(w, http.StatusBadGateway, codeDispatchFailed, "build service dispatch failed")
	default:
		log.Printf("unhandled error: %v", err)
		respondError(w, http.StatusInternalServerError, codeInternal, "internal error")
	}
}

func decodeBody(r *http.Request, dst any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}
