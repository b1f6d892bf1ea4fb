package buildqueue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// PostgresStore persists build jobs to Postgres. The one-active-job-per-game
// invariant is enforced by a partial unique index rather than an application
// read-then-write, so it holds under concurrent requests and across server
// processes.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(conn string) (*PostgresStore, error) {
	db, err := sql.Open("pgx", conn)
	if err != nil {
		return nil, fmt.Errorf("open postgres connection: %w", err)
	}
	db.SetMaxIdleConns(5)
	db.SetMaxOpenConns(10)
	db.SetConnMaxLifetime(time.Hour)

	s := &PostgresStore{db: db}
	if err := s.ensureSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// NewPostgresStoreFromDB wraps an existing pool so the API service can share
// one connection set with the games store.
func NewPostgresStoreFromDB(db *sql.DB) (*PostgresStore, error) {
	s := &PostgresStore{db: db}
	if err := s.ensureSchema(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *PostgresStore) ensureSchema() error {
	schema := `
CREATE TABLE IF NOT EXISTS build_jobs (
    id UUID PRIMARY KEY,
    game_id UUID NOT NULL,
    user_id TEXT NOT NULL,
    status TEXT NOT NULL,
    error_message TEXT,
    created_at TIMESTAMPTZ NOT NULL,
    started_at TIMESTAMPTZ,
    completed_at TIMESTAMPTZ
);
CREATE UNIQUE INDEX IF NOT EXISTS build_jobs_one_active
    ON build_jobs (game_id) WHERE status IN ('pending', 'processing');
CREATE INDEX IF NOT EXISTS build_jobs_game_idx ON build_jobs (game_id, created_at DESC);
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

func (s *PostgresStore) CreateExclusive(ctx context.Context, job *Job) error {
	query := `INSERT INTO build_jobs (id, game_id, user_id, status, error_message, created_at, started_at, completed_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`
	_, err := s.db.ExecContext(ctx, query,
		job.ID,
		job.GameID,
		job.UserID,
		job.Status,
		nullString(job.ErrorMessage),
		job.CreatedAt,
		job.StartedAt,
		job.CompletedAt,
	)
	if err != nil && strings.Contains(err.Error(), "build_jobs_one_active") {
		return ErrActiveJobExists
	}
	return err
}

const jobColumns = `id, game_id, user_id, status, error_message, created_at, started_at, completed_at`

func (s *PostgresStore) Get(ctx context.Context, id string) (Job, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM build_jobs WHERE id=$1`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Job{}, ErrJobNotFound
	}
	return job, err
}

func (s *PostgresStore) Latest(ctx context.Context, gameID string) (Job, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+jobColumns+` FROM build_jobs WHERE game_id=$1 ORDER BY created_at DESC LIMIT 1`, gameID)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Job{}, ErrNoJobs
	}
	return job, err
}

func (s *PostgresStore) MarkProcessing(ctx context.Context, id string) error {
	return s.guardedUpdate(ctx, id,
		`UPDATE build_jobs SET status='processing', started_at=NOW() WHERE id=$1 AND status IN ('pending','processing')`)
}

func (s *PostgresStore) MarkTerminal(ctx context.Context, id string, status Status, errMsg string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE build_jobs SET status=$2, error_message=$3, completed_at=NOW() WHERE id=$1 AND status IN ('pending','processing')`,
		id, status, nullString(errMsg))
	if err != nil {
		return err
	}
	return s.interpret(ctx, id, res)
}

func (s *PostgresStore) ListStale(ctx context.Context, olderThan time.Time) ([]Job, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+jobColumns+` FROM build_jobs WHERE status IN ('pending','processing') AND created_at < $1`, olderThan)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, job)
	}
	return out, rows.Err()
}

func (s *PostgresStore) DeleteForGame(ctx context.Context, gameID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM build_jobs WHERE game_id=$1`, gameID)
	return err
}

func (s *PostgresStore) guardedUpdate(ctx context.Context, id, query string) error {
	res, err := s.db.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}
	return s.interpret(ctx, id, res)
}

// interpret disambiguates a zero-row update: the job is either missing or
// already terminal.
func (s *PostgresStore) interpret(ctx context.Context, id string, res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil || n > 0 {
		return err
	}
	if _, err := s.Get(ctx, id); errors.Is(err, ErrJobNotFound) {
		return ErrJobNotFound
	}
	return ErrTerminal
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (Job, error) {
	var j Job
	var errMsg sql.NullString
	var started, completed sql.NullTime
	if err := row.Scan(&j.ID, &j.GameID, &j.UserID, &j.Status, &errMsg, &j.CreatedAt, &started, &completed); err != nil {
		return Job{}, err
	}
	if errMsg.Valid {
		j.ErrorMessage = errMsg.String
	}
	if started.Valid {
		t := started.Time
		j.StartedAt = &t
	}
	if completed.Valid {
		t := completed.Time
		j.CompletedAt = &t
	}
	return j, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
