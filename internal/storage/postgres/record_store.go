// Package postgres provides the Postgres-backed record store.
package postgres

import (
	"context"
	_ "embed"
	"fmt"
	"regexp"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/2448334/seimas-scraper/internal/crawler"
)

//go:embed schema.sql
var schemaSQL string

var validSchemaName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Config controls the Postgres connection pool.
type Config struct {
	DSN             string
	Schema          string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type poolCloser interface {
	querier
	Close()
}

// Store reads and writes records in Postgres.
type Store struct {
	pool    poolCloser
	acquire func(ctx context.Context) (querier, func(), error)
	logger  *zap.Logger
}

var _ crawler.Store = (*Store)(nil)

// NewStore connects a pgx pool using cfg.
func NewStore(ctx context.Context, cfg Config, logger *zap.Logger) (*Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.Schema != "" {
		if !validSchemaName.MatchString(cfg.Schema) {
			return nil, fmt.Errorf("invalid schema name %q", cfg.Schema)
		}
		poolCfg.ConnConfig.RuntimeParams["search_path"] = cfg.Schema
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		pool: pool,
		acquire: func(ctx context.Context) (querier, func(), error) {
			conn, err := pool.Acquire(ctx)
			if err != nil {
				return nil, nil, err
			}
			return conn, conn.Release, nil
		},
		logger: logger,
	}, nil
}

// NewStoreWithPool constructs a store from an existing pool (primarily for testing).
// Acquired sessions share the pool itself.
func NewStoreWithPool(pool poolCloser, logger *zap.Logger) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		pool: pool,
		acquire: func(context.Context) (querier, func(), error) {
			return pool, func() {}, nil
		},
		logger: logger,
	}, nil
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// Migrate creates the enums, tables and views if they do not exist yet.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("%w: apply schema: %w", crawler.ErrStore, err)
	}
	return nil
}

// Acquire checks a connection out of the pool for one parse pass.
func (s *Store) Acquire(ctx context.Context) (crawler.RecordSession, error) {
	q, release, err := s.acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: acquire connection: %w", crawler.ErrStore, err)
	}
	return &session{q: q, release: release, logger: s.logger}, nil
}

type session struct {
	q       querier
	release func()
	once    sync.Once
	logger  *zap.Logger
}

func (s *session) Release() {
	s.once.Do(s.release)
}

func (s *session) UpsertParliament(ctx context.Context, p crawler.Parliament) (*crawler.Parliament, error) {
	return upsert(ctx, s.q, parliamentTable, p, s.logger)
}

func (s *session) UpsertPolitician(ctx context.Context, p crawler.Politician) (*crawler.Politician, error) {
	return upsert(ctx, s.q, politicianTable, p, s.logger)
}

func (s *session) UpsertOffice(ctx context.Context, o crawler.Office) (*crawler.Office, error) {
	return upsert(ctx, s.q, officeTable, o, s.logger)
}

func (s *session) UpsertSession(ctx context.Context, v crawler.Session) (*crawler.Session, error) {
	return upsert(ctx, s.q, sessionTable, v, s.logger)
}

func (s *session) UpsertMeeting(ctx context.Context, m crawler.Meeting) (*crawler.Meeting, error) {
	return upsert(ctx, s.q, meetingTable, m, s.logger)
}

func (s *session) UpsertMeetingData(ctx context.Context, m crawler.MeetingData) (*crawler.MeetingData, error) {
	return upsert(ctx, s.q, meetingDataTable, m, s.logger)
}

func (s *session) UpsertAgendaItem(ctx context.Context, a crawler.AgendaItem) (*crawler.AgendaItem, error) {
	return upsert(ctx, s.q, agendaItemTable, a, s.logger)
}

func (s *session) UpsertVote(ctx context.Context, v crawler.Vote) (*crawler.Vote, error) {
	return upsert(ctx, s.q, voteTable, v, s.logger)
}

func (s *session) UpsertVoteData(ctx context.Context, v crawler.VoteData) (*crawler.VoteData, error) {
	return upsert(ctx, s.q, voteDataTable, v, s.logger)
}

func (s *session) UpsertSpeech(ctx context.Context, v crawler.Speech) (*crawler.Speech, error) {
	return upsert(ctx, s.q, speechTable, v, s.logger)
}

func (s *session) UpsertRegistration(ctx context.Context, r crawler.Registration) (*crawler.Registration, error) {
	return upsert(ctx, s.q, registrationTable, r, s.logger)
}

func (s *session) UpsertRegistrationData(
	ctx context.Context,
	r crawler.RegistrationData,
) (*crawler.RegistrationData, error) {
	return upsert(ctx, s.q, registrationDataTable, r, s.logger)
}
