package games

import (
	"errors"
	"time"

	"github.com/gameforge/backend/pkg/gamelang"
)

// Status is the lifecycle state of a game.
type Status string

const (
	StatusDraft      Status = "draft"
	StatusGenerating Status = "generating"
	StatusBuilding   Status = "building"
	StatusFailed     Status = "failed"
	StatusError      Status = "error"
	StatusPublished  Status = "published"
)

// Visibility controls whether a game appears in the community feed.
type Visibility string

const (
	VisibilityPrivate Visibility = "private"
	VisibilityPublic  Visibility = "public"
)

// ErrNotFound is returned when a game does not exist or is not visible to
// the caller.
var ErrNotFound = errors.New("game not found")

// ErrSlugTaken is returned when a user already owns a game with the slug.
var ErrSlugTaken = errors.New("slug already in use")

// Game is a user-owned project: its configuration, generated source, and
// lifecycle state. Mutated only by its owner; deleted games cascade to their
// build jobs, likes, and comments.
type Game struct {
	ID            string              `json:"id"`
	UserID        string              `json:"user_id"`
	Slug          string              `json:"slug"`
	Title         string              `json:"title"`
	Description   string              `json:"description"`
	Language      string              `json:"language"`
	Config        gamelang.GameConfig `json:"config"`
	GeneratedCode string              `json:"generated_code,omitempty"`
	Status        Status              `json:"status"`
	Visibility    Visibility          `json:"visibility"`
	BundlePath    string              `json:"bundle_path,omitempty"`
	CreatedAt     time.Time           `json:"created_at"`
	UpdatedAt     time.Time           `json:"updated_at"`
}

// Update carries the owner-editable fields of a game. Nil fields are left
// unchanged.
type Update struct {
	Title       *string
	Description *string
	Config      *gamelang.GameConfig
	Code        *string
}
