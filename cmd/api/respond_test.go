package main

import (
	"bytes"
	"errors"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
)

func TestUnhandledErrorIsLogged(t *testing.T) {
	var buf bytes.Buffer
	log.SetOutput(&buf)
	defer log.SetOutput(os.Stderr)

	rec := httptest.NewRecorder()
	respondMappedError(rec, errors.New("connection refused"))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if code := errorCode(t, rec); code != codeInternal {
		t.Fatalf("unexpected error code %q", code)
	}
	if !bytes.Contains(buf.Bytes(), []byte("connection refused")) {
		t.Fatal("underlying error not logged")
	}
	if bytes.Contains(rec.Body.Bytes(), []byte("connection refused")) {
		t.Fatal("internal detail leaked to the client")
	}
}
