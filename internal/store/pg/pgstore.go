// Package pg implements the pack, project and lesson-link stores on
// PostgreSQL. It mirrors the in-memory services' semantics so the HTTP
// layer can run against either.
package pg

import (
	"context"
	"database/sql"
	"sync"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"packready.org/internal/links"
	"packready.org/internal/pack"
	"packready.org/internal/project"
)

type syncState int

const (
	stateUnsynced syncState = iota
	stateSyncing
	stateSynced
)

type Store struct {
	db   *sql.DB
	bank project.QuestionBank

	seedMu    sync.Mutex
	seedState syncState
}

var (
	_ pack.Service    = (*Store)(nil)
	_ project.Service = (*Store)(nil)
	_ links.Store     = (*Store)(nil)
)

// Open connects to PostgreSQL via the pgx stdlib driver. The question bank
// feeds assessment-completion recomputation on save.
func Open(dsn string, bank project.QuestionBank) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	// Tuned pool defaults; adjust under load tests
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(15 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return New(db, bank), nil
}

// New wraps an existing connection. Used by tests with sqlmock.
func New(db *sql.DB, bank project.QuestionBank) *Store {
	return &Store{db: db, bank: bank}
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

// Seed runs fn at most once per process. The state machine
// unsynced -> syncing -> synced keeps concurrent callers from racing the
// reference-data load; a failed run resets to unsynced so it can be retried.
func (s *Store) Seed(ctx context.Context, fn func(ctx context.Context) error) error {
	s.seedMu.Lock()
	defer s.seedMu.Unlock()

	if s.seedState == stateSynced {
		return nil
	}
	s.seedState = stateSyncing
	if err := fn(ctx); err != nil {
		s.seedState = stateUnsynced
		return err
	}
	s.seedState = stateSynced
	return nil
}
