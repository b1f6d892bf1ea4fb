package games

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/gameforge/backend/pkg/gamelang"
)

// PostgresStore persists games to Postgres.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(conn string) (*PostgresStore, error) {
	db, err := sql.Open("pgx", conn)
	if err != nil {
		return nil, fmt.Errorf("open postgres connection: %w", err)
	}
	db.SetMaxIdleConns(5)
	db.SetMaxOpenConns(20)
	db.SetConnMaxLifetime(time.Hour)

	s := &PostgresStore{db: db}
	if err := s.ensureSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// DB exposes the underlying handle so sibling stores can share the pool.
func (s *PostgresStore) DB() *sql.DB { return s.db }

func (s *PostgresStore) ensureSchema() error {
	schema := `
CREATE TABLE IF NOT EXISTS games (
    id UUID PRIMARY KEY,
    user_id TEXT NOT NULL,
    slug TEXT NOT NULL,
    title TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    language TEXT NOT NULL,
    config JSONB NOT NULL DEFAULT '{}',
    generated_code TEXT,
    status TEXT NOT NULL,
    visibility TEXT NOT NULL,
    bundle_path TEXT,
    created_at TIMESTAMPTZ NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL,
    UNIQUE (user_id, slug)
);
CREATE INDEX IF NOT EXISTS games_user_idx ON games (user_id, created_at DESC);
CREATE INDEX IF NOT EXISTS games_public_idx ON games (visibility, status, created_at DESC);
`
	_, err := s.db.Exec(schema)
	return err
}

func (s *PostgresStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

var _ Store = (*PostgresStore)(nil)

func (s *PostgresStore) Create(ctx context.Context, game *Game) error {
	cfg, err := json.Marshal(game.Config)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	query := `INSERT INTO games (id, user_id, slug, title, description, language, config, generated_code, status, visibility, bundle_path, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`
	_, err = s.db.ExecContext(ctx, query,
		game.ID,
		game.UserID,
		game.Slug,
		game.Title,
		game.Description,
		game.Language,
		cfg,
		nullString(game.GeneratedCode),
		game.Status,
		game.Visibility,
		nullString(game.BundlePath),
		game.CreatedAt,
		game.UpdatedAt,
	)
	if err != nil && strings.Contains(err.Error(), "duplicate key") {
		return ErrSlugTaken
	}
	return err
}

const gameColumns = `id, user_id, slug, title, description, language, config, generated_code, status, visibility, bundle_path, created_at, updated_at`

func (s *PostgresStore) Get(ctx context.Context, id string) (Game, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+gameColumns+` FROM games WHERE id=$1`, id)
	return scanGame(row)
}

func (s *PostgresStore) GetOwned(ctx context.Context, id, userID string) (Game, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+gameColumns+` FROM games WHERE id=$1 AND user_id=$2`, id, userID)
	return scanGame(row)
}

func (s *PostgresStore) ListByUser(ctx context.Context, userID string) ([]Game, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+gameColumns+` FROM games WHERE user_id=$1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	return collectGames(rows)
}

func (s *PostgresStore) ListPublic(ctx context.Context, limit int) ([]Game, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+gameColumns+` FROM games WHERE visibility='public' AND status='published' ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	return collectGames(rows)
}

func (s *PostgresStore) Update(ctx context.Context, id, userID string, upd Update) (Game, error) {
	sets := []string{"updated_at=NOW()"}
	args := []any{id, userID}
	next := 3
	add := func(col string, val any) {
		sets = append(sets, fmt.Sprintf("%s=$%d", col, next))
		args = append(args, val)
		next++
	}
	if upd.Title != nil {
		add("title", *upd.Title)
	}
	if upd.Description != nil {
		add("description", *upd.Description)
	}
	if upd.Config != nil {
		cfg, err := json.Marshal(*upd.Config)
		if err != nil {
			return Game{}, fmt.Errorf("marshal config: %w", err)
		}
		add("config", cfg)
	}
	if upd.Code != nil {
		add("generated_code", *upd.Code)
	}
	query := `UPDATE games SET ` + strings.Join(sets, ", ") + ` WHERE id=$1 AND user_id=$2 RETURNING ` + gameColumns
	row := s.db.QueryRowContext(ctx, query, args...)
	return scanGame(row)
}

func (s *PostgresStore) SetStatus(ctx context.Context, id string, status Status) error {
	return s.exec(ctx, `UPDATE games SET status=$2, updated_at=NOW() WHERE id=$1`, id, status)
}

func (s *PostgresStore) SetStatusIf(ctx context.Context, id string, from []Status, to Status) (bool, error) {
	args := []any{id, to}
	holders := make([]string, len(from))
	for i, f := range from {
		holders[i] = fmt.Sprintf("$%d", i+3)
		args = append(args, string(f))
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE games SET status=$2, updated_at=NOW() WHERE id=$1 AND status IN (`+strings.Join(holders, ",")+`)`,
		args...)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *PostgresStore) SetCode(ctx context.Context, id, code string, status Status) error {
	return s.exec(ctx, `UPDATE games SET generated_code=$2, status=$3, updated_at=NOW() WHERE id=$1`, id, code, status)
}

func (s *PostgresStore) SetVisibility(ctx context.Context, id string, v Visibility) error {
	return s.exec(ctx, `UPDATE games SET visibility=$2, updated_at=NOW() WHERE id=$1`, id, v)
}

func (s *PostgresStore) SetPublished(ctx context.Context, id, bundlePath string) error {
	return s.exec(ctx, `UPDATE games SET status='published', bundle_path=$2, updated_at=NOW() WHERE id=$1`, id, bundlePath)
}

func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	return s.exec(ctx, `DELETE FROM games WHERE id=$1`, id)
}

func (s *PostgresStore) exec(ctx context.Context, query string, args ...any) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanGame(row rowScanner) (Game, error) {
	var g Game
	var cfg []byte
	var code, bundle sql.NullString
	err := row.Scan(&g.ID, &g.UserID, &g.Slug, &g.Title, &g.Description, &g.Language,
		&cfg, &code, &g.Status, &g.Visibility, &bundle, &g.CreatedAt, &g.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Game{}, ErrNotFound
	}
	if err != nil {
		return Game{}, err
	}
	if len(cfg) > 0 {
		if err := json.Unmarshal(cfg, &g.Config); err != nil {
			return Game{}, fmt.Errorf("parse game config: %w", err)
		}
	} else {
		g.Config = gamelang.GameConfig{}
	}
	if code.Valid {
		g.GeneratedCode = code.String
	}
	if bundle.Valid {
		g.BundlePath = bundle.String
	}
	return g, nil
}

func collectGames(rows *sql.Rows) ([]Game, error) {
	defer rows.Close()
	var out []Game
	for rows.Next() {
		g, err := scanGame(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
