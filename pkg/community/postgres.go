package community

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
)

// PostgresStore persists comments and likes to Postgres.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStoreFromDB reuses an existing pool, typically the games store's.
func NewPostgresStoreFromDB(db *sql.DB) (*PostgresStore, error) {
	s := &PostgresStore{db: db}
	if err := s.ensureSchema(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *PostgresStore) ensureSchema() error {
	schema := `
CREATE TABLE IF NOT EXISTS comments (
    id UUID PRIMARY KEY,
    game_id UUID NOT NULL,
    user_id TEXT NOT NULL,
    body TEXT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS comments_game_idx ON comments (game_id, created_at DESC);
CREATE TABLE IF NOT EXISTS likes (
    game_id UUID NOT NULL,
    user_id TEXT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL,
    PRIMARY KEY (game_id, user_id)
);
`
	_, err := s.db.Exec(schema)
	return err
}

var _ Store = (*PostgresStore)(nil)

func (s *PostgresStore) CreateComment(ctx context.Context, gameID, userID, body string) (*Comment, error) {
	body, err := validateBody(body)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	c := &Comment{
		ID:        uuid.NewString(),
		GameID:    gameID,
		UserID:    userID,
		Body:      body,
		CreatedAt: now,
		UpdatedAt: now,
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO comments (id, game_id, user_id, body, created_at, updated_at) VALUES ($1,$2,$3,$4,$5,$6)`,
		c.ID, c.GameID, c.UserID, c.Body, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (s *PostgresStore) ListComments(ctx context.Context, gameID string) ([]*Comment, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, game_id, user_id, body, created_at, updated_at FROM comments WHERE game_id=$1 ORDER BY created_at DESC`,
		gameID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*Comment
	for rows.Next() {
		var c Comment
		if err := rows.Scan(&c.ID, &c.GameID, &c.UserID, &c.Body, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, &c)
	}
	return out, rows.Err()
}

func (s *PostgresStore) UpdateComment(ctx context.Context, commentID, userID, body string) (*Comment, error) {
	body, err := validateBody(body)
	if err != nil {
		return nil, err
	}
	row := s.db.QueryRowContext(ctx,
		`UPDATE comments SET body=$3, updated_at=NOW() WHERE id=$1 AND user_id=$2
         RETURNING id, game_id, user_id, body, created_at, updated_at`,
		commentID, userID, body)
	var c Comment
	if err := row.Scan(&c.ID, &c.GameID, &c.UserID, &c.Body, &c.CreatedAt, &c.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, s.ownershipError(ctx, commentID)
		}
		return nil, err
	}
	return &c, nil
}

func (s *PostgresStore) DeleteComment(ctx context.Context, commentID, userID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM comments WHERE id=$1 AND user_id=$2`, commentID, userID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return s.ownershipError(ctx, commentID)
	}
	return nil
}

// ownershipError distinguishes a missing comment from one owned by someone else.
func (s *PostgresStore) ownershipError(ctx context.Context, commentID string) error {
	var exists bool
	err := s.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM comments WHERE id=$1)`, commentID).Scan(&exists)
	if err != nil {
		return err
	}
	if exists {
		return ErrNotCommentOwner
	}
	return ErrCommentNotFound
}

func (s *PostgresStore) ToggleLike(ctx context.Context, gameID, userID string) (*LikeState, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM likes WHERE game_id=$1 AND user_id=$2`, gameID, userID)
	if err != nil {
		return nil, err
	}
	removed, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if removed == 0 {
		_, err = s.db.ExecContext(ctx,
			`INSERT INTO likes (game_id, user_id, created_at) VALUES ($1,$2,NOW()) ON CONFLICT DO NOTHING`,
			gameID, userID)
		if err != nil {
			return nil, err
		}
	}
	return s.Likes(ctx, gameID, userID)
}

func (s *PostgresStore) Likes(ctx context.Context, gameID, userID string) (*LikeState, error) {
	var state LikeState
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), BOOL_OR(user_id=$2) FROM likes WHERE game_id=$1`,
		gameID, userID).Scan(&state.Count, &sqlBool{&state.Liked})
	if err != nil {
		return nil, err
	}
	return &state, nil
}

func (s *PostgresStore) DeleteForGame(ctx context.Context, gameID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM comments WHERE game_id=$1`, gameID); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `DELETE FROM likes WHERE game_id=$1`, gameID)
	return err
}

// sqlBool scans a nullable boolean into a plain bool, treating NULL as false.
// BOOL_OR over zero rows yields NULL.
type sqlBool struct{ dest *bool }

func (b *sqlBool) Scan(src any) error {
	v, ok := src.(bool)
	*b.dest = ok && v
	return nil
}
