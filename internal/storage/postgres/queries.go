package postgres

import (
	"context"
	"fmt"

	"github.com/doug-martin/goqu/v9"
	// registers the postgres dialect
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/jackc/pgx/v5"

	"github.com/2448334/seimas-scraper/internal/crawler"
)

var dialect = goqu.Dialect("postgres")

func (s *Store) selectIDs(ctx context.Context, from, col string, where goqu.Ex) ([]int32, error) {
	ds := dialect.From(from).Select(goqu.C(col)).Prepared(true)
	if len(where) > 0 {
		ds = ds.Where(where)
	}
	query, args, err := ds.Order(goqu.C(col).Asc()).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build %s query: %w", from, err)
	}
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: query %s: %w", crawler.ErrStore, from, err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[int32])
	if err != nil {
		return nil, fmt.Errorf("%w: scan %s: %w", crawler.ErrStore, from, err)
	}
	return ids, nil
}

// ParliamentIDs lists every stored parliament term.
func (s *Store) ParliamentIDs(ctx context.Context) ([]int32, error) {
	return s.selectIDs(ctx, "parliament", "id", nil)
}

// SessionIDs lists the sessions of one term.
func (s *Store) SessionIDs(ctx context.Context, parliamentID int32) ([]int32, error) {
	return s.selectIDs(ctx, "sessions", "id", goqu.Ex{"parliament": parliamentID})
}

// MeetingIDs lists the meetings of one session.
func (s *Store) MeetingIDs(ctx context.Context, sessionID int32) ([]int32, error) {
	return s.selectIDs(ctx, "meetings", "id", goqu.Ex{"session": sessionID})
}

// VoteIDs lists every stored voting event.
func (s *Store) VoteIDs(ctx context.Context) ([]int32, error) {
	return s.selectIDs(ctx, "vote", "id", nil)
}

// RegistrationIDs lists every stored registration event.
func (s *Store) RegistrationIDs(ctx context.Context) ([]int32, error) {
	return s.selectIDs(ctx, "registration", "id", nil)
}

// MissingMeetingIDs lists meetings that have no detail row yet.
func (s *Store) MissingMeetingIDs(ctx context.Context) ([]int32, error) {
	return s.selectIDs(ctx, "missing_meeting_ids", "mid", nil)
}

// MissingVoteIDs lists votes that have no per-person results yet.
func (s *Store) MissingVoteIDs(ctx context.Context) ([]int32, error) {
	return s.selectIDs(ctx, "missing_vote_ids", "vid", nil)
}

// MissingRegistrationIDs lists registrations that have no per-person results yet.
func (s *Store) MissingRegistrationIDs(ctx context.Context) ([]int32, error) {
	return s.selectIDs(ctx, "missing_registration_ids", "rid", nil)
}

// CountMeetings returns how many meetings are stored for a session.
func (s *Store) CountMeetings(ctx context.Context, sessionID int32) (int64, error) {
	query, args, err := dialect.From("meetings").
		Select(goqu.COUNT("*")).
		Where(goqu.Ex{"session": sessionID}).
		Prepared(true).
		ToSQL()
	if err != nil {
		return 0, fmt.Errorf("build count query: %w", err)
	}
	var n int64
	if err := s.pool.QueryRow(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("%w: count meetings: %w", crawler.ErrStore, err)
	}
	return n, nil
}

// DocumentLinks returns the protocol and stenogram links of every meeting in a session.
func (s *Store) DocumentLinks(ctx context.Context, sessionID int32) ([]crawler.DocumentLinks, error) {
	query, args, err := dialect.From("meetings").
		Select("session", "num", "protocol_link", "stenogram_link").
		Where(goqu.Ex{"session": sessionID}).
		Order(goqu.C("num").Asc(), goqu.C("id").Asc()).
		Prepared(true).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build document query: %w", err)
	}
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: query document links: %w", crawler.ErrStore, err)
	}
	links, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (crawler.DocumentLinks, error) {
		var l crawler.DocumentLinks
		err := row.Scan(&l.SessionID, &l.MeetingNum, &l.ProtocolLink, &l.StenogramLink)
		return l, err
	})
	if err != nil {
		return nil, fmt.Errorf("%w: scan document links: %w", crawler.ErrStore, err)
	}
	return links, nil
}
