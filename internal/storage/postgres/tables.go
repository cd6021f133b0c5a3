package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"github.com/2448334/seimas-scraper/internal/crawler"
	"github.com/2448334/seimas-scraper/internal/metrics"
)

// conflictPolicy decides what an upsert does when the row already exists.
type conflictPolicy int

const (
	// insertOrIgnore keeps the first row written; later writes are no-ops.
	insertOrIgnore conflictPolicy = iota
	// insertOrUpdate overwrites every mutable column with the new values.
	insertOrUpdate
)

// table describes how one entity maps onto its table.
type table[T any] struct {
	name      string
	insert    []string
	returning []string
	keys      []string
	conflict  string
	policy    conflictPolicy
	enums     map[string]string
	values    func(*T) []any
	scan      func(*T) []any
	sql       string
}

func newTable[T any](t table[T]) *table[T] {
	if len(t.returning) == 0 {
		t.returning = t.insert
	}
	t.sql = t.buildSQL()
	return &t
}

func (t *table[T]) buildSQL() string {
	cols := make([]string, len(t.insert))
	params := make([]string, len(t.insert))
	for i, col := range t.insert {
		cols[i] = quote(col)
		params[i] = fmt.Sprintf("$%d", i+1)
		if enum, ok := t.enums[col]; ok {
			params[i] += "::text::" + enum
		}
	}

	var action string
	switch t.policy {
	case insertOrIgnore:
		action = "DO NOTHING"
	default:
		isKey := make(map[string]bool, len(t.keys))
		for _, k := range t.keys {
			isKey[k] = true
		}
		var sets []string
		for _, col := range t.insert {
			if isKey[col] {
				continue
			}
			sets = append(sets, fmt.Sprintf("%s = EXCLUDED.%s", quote(col), quote(col)))
		}
		action = "DO UPDATE SET " + strings.Join(sets, ", ")
	}

	ret := make([]string, len(t.returning))
	for i, col := range t.returning {
		ret[i] = quote(col)
		if _, ok := t.enums[col]; ok {
			ret[i] = fmt.Sprintf("%s::text AS %s", quote(col), quote(col))
		}
	}

	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON CONFLICT %s %s RETURNING %s",
		quote(t.name),
		strings.Join(cols, ", "),
		strings.Join(params, ", "),
		t.conflict,
		action,
		strings.Join(ret, ", "),
	)
}

func quote(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

// upsert writes rec and returns the stored row. A nil row with a nil error means the
// write was skipped: either an insert-or-ignore conflict or a uniqueness violation
// outside the declared conflict target.
func upsert[T any](ctx context.Context, q querier, t *table[T], rec T, logger *zap.Logger) (*T, error) {
	var out T
	err := q.QueryRow(ctx, t.sql, t.values(&rec)...).Scan(t.scan(&out)...)
	if err == nil {
		metrics.ObserveRecord(t.name, metrics.RecordWritten)
		return &out, nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		metrics.ObserveRecord(t.name, metrics.RecordSkipped)
		return nil, nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
		logger.Debug("record skipped on unique violation",
			zap.String("table", t.name),
			zap.String("constraint", pgErr.ConstraintName),
		)
		metrics.ObserveRecord(t.name, metrics.RecordSkipped)
		return nil, nil
	}
	logger.Error("upsert failed", zap.String("table", t.name), zap.Any("record", rec), zap.Error(err))
	metrics.ObserveRecord(t.name, metrics.RecordFailed)
	return nil, fmt.Errorf("%w: upsert %s: %w", crawler.ErrStore, t.name, err)
}

func ints(v []int32) []int32 {
	if v == nil {
		return []int32{}
	}
	return v
}

func strs(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}

var parliamentTable = newTable(table[crawler.Parliament]{
	name:     "parliament",
	insert:   []string{"id", "name", "from", "to"},
	keys:     []string{"id"},
	conflict: "(id)",
	policy:   insertOrIgnore,
	values: func(p *crawler.Parliament) []any {
		return []any{p.ID, p.Name, p.From, p.To}
	},
	scan: func(p *crawler.Parliament) []any {
		return []any{&p.ID, &p.Name, &p.From, &p.To}
	},
})

var politicianTable = newTable(table[crawler.Politician]{
	name: "politician",
	insert: []string{
		"id", "parliament", "name", "surname", "gender", "from", "to", "party", "elected_type",
		"biography_link", "term_count", "email", "phone", "website", "offices",
	},
	keys:     []string{"id", "parliament"},
	conflict: "ON CONSTRAINT politician_pkey",
	policy:   insertOrUpdate,
	enums:    map[string]string{"gender": "pq_gender"},
	values: func(p *crawler.Politician) []any {
		return []any{
			p.ID, p.Parliament, p.Name, p.Surname, p.Gender, p.From, p.To, p.Party, p.ElectedType,
			p.BiographyLink, p.TermCount, p.Email, strs(p.Phone), p.Website, ints(p.Offices),
		}
	},
	scan: func(p *crawler.Politician) []any {
		return []any{
			&p.ID, &p.Parliament, &p.Name, &p.Surname, &p.Gender, &p.From, &p.To, &p.Party, &p.ElectedType,
			&p.BiographyLink, &p.TermCount, &p.Email, &p.Phone, &p.Website, &p.Offices,
		}
	},
})

// Offices carry no source id, so they are deduplicated on their natural key and the
// generated id is returned to the caller.
var officeTable = newTable(table[crawler.Office]{
	name:      "office",
	insert:    []string{"department_id", "department_name", "department_type", "duties", "from", "to"},
	returning: []string{"id", "department_id", "department_name", "department_type", "duties", "from", "to"},
	keys:      []string{"department_id", "department_type", "duties", "from", "to"},
	conflict:  "ON CONSTRAINT office_natural_key",
	policy:    insertOrUpdate,
	enums:     map[string]string{"department_type": "pq_department_type"},
	values: func(o *crawler.Office) []any {
		return []any{o.DepartmentID, o.DepartmentName, o.DepartmentType, o.Duties, o.From, o.To}
	},
	scan: func(o *crawler.Office) []any {
		return []any{&o.ID, &o.DepartmentID, &o.DepartmentName, &o.DepartmentType, &o.Duties, &o.From, &o.To}
	},
})

var sessionTable = newTable(table[crawler.Session]{
	name:     "sessions",
	insert:   []string{"id", "num", "name", "from", "to", "parliament"},
	keys:     []string{"id"},
	conflict: "(id)",
	policy:   insertOrUpdate,
	values: func(s *crawler.Session) []any {
		return []any{s.ID, s.Num, s.Name, s.From, s.To, s.Parliament}
	},
	scan: func(s *crawler.Session) []any {
		return []any{&s.ID, &s.Num, &s.Name, &s.From, &s.To, &s.Parliament}
	},
})

var meetingTable = newTable(table[crawler.Meeting]{
	name: "meetings",
	insert: []string{
		"id", "num", "meeting_type", "from", "to", "session",
		"protocol_link", "stenogram_link", "video_comment", "video_link",
	},
	keys:     []string{"id"},
	conflict: "(id)",
	policy:   insertOrUpdate,
	values: func(m *crawler.Meeting) []any {
		return []any{
			m.ID, m.Num, m.Type, m.From, m.To, m.Session,
			m.ProtocolLink, m.StenogramLink, m.VideoComment, m.VideoLink,
		}
	},
	scan: func(m *crawler.Meeting) []any {
		return []any{
			&m.ID, &m.Num, &m.Type, &m.From, &m.To, &m.Session,
			&m.ProtocolLink, &m.StenogramLink, &m.VideoComment, &m.VideoLink,
		}
	},
})

var meetingDataTable = newTable(table[crawler.MeetingData]{
	name:     "meeting_data",
	insert:   []string{"id", "from", "to", "agenda", "registrations"},
	keys:     []string{"id"},
	conflict: "(id)",
	policy:   insertOrUpdate,
	values: func(m *crawler.MeetingData) []any {
		return []any{m.ID, m.From, m.To, ints(m.Agenda), ints(m.Registrations)}
	},
	scan: func(m *crawler.MeetingData) []any {
		return []any{&m.ID, &m.From, &m.To, &m.Agenda, &m.Registrations}
	},
})

var agendaItemTable = newTable(table[crawler.AgendaItem]{
	name: "agenda_item",
	insert: []string{
		"id", "agenda_state_id", "agenda_group_id", "document_key", "nr", "name", "state",
		"agenda_type", "from", "to", "speeches", "voting",
	},
	keys:     []string{"id"},
	conflict: "(id)",
	policy:   insertOrUpdate,
	values: func(a *crawler.AgendaItem) []any {
		return []any{
			a.ID, a.AgendaStateID, a.AgendaGroupID, a.DocumentKey, a.Nr, a.Name, a.State,
			a.Type, a.From, a.To, ints(a.Speeches), ints(a.Voting),
		}
	},
	scan: func(a *crawler.AgendaItem) []any {
		return []any{
			&a.ID, &a.AgendaStateID, &a.AgendaGroupID, &a.DocumentKey, &a.Nr, &a.Name, &a.State,
			&a.Type, &a.From, &a.To, &a.Speeches, &a.Voting,
		}
	},
})

var voteTable = newTable(table[crawler.Vote]{
	name:     "vote",
	insert:   []string{"id", "summary", "result", "from", "to"},
	keys:     []string{"id"},
	conflict: "(id)",
	policy:   insertOrUpdate,
	values: func(v *crawler.Vote) []any {
		return []any{v.ID, v.Summary, v.Result, v.From, v.To}
	},
	scan: func(v *crawler.Vote) []any {
		return []any{&v.ID, &v.Summary, &v.Result, &v.From, &v.To}
	},
})

var voteDataTable = newTable(table[crawler.VoteData]{
	name:     "vote_data",
	insert:   []string{"id", "person_id", "vote"},
	keys:     []string{"id", "person_id"},
	conflict: "ON CONSTRAINT vote_data_pkey",
	policy:   insertOrUpdate,
	enums:    map[string]string{"vote": "pq_vote_type"},
	values: func(v *crawler.VoteData) []any {
		return []any{v.ID, v.PersonID, v.Vote}
	},
	scan: func(v *crawler.VoteData) []any {
		return []any{&v.ID, &v.PersonID, &v.Vote}
	},
})

var speechTable = newTable(table[crawler.Speech]{
	name:     "speech",
	insert:   []string{"id", "discussion_id", "person_id", "person", "office", "from", "to"},
	keys:     []string{"id"},
	conflict: "(id)",
	policy:   insertOrUpdate,
	values: func(s *crawler.Speech) []any {
		return []any{s.ID, s.DiscussionID, s.PersonID, s.Person, s.Office, s.From, s.To}
	},
	scan: func(s *crawler.Speech) []any {
		return []any{&s.ID, &s.DiscussionID, &s.PersonID, &s.Person, &s.Office, &s.From, &s.To}
	},
})

var registrationTable = newTable(table[crawler.Registration]{
	name:     "registration",
	insert:   []string{"id", "result", "from", "to"},
	keys:     []string{"id"},
	conflict: "(id)",
	policy:   insertOrUpdate,
	values: func(r *crawler.Registration) []any {
		return []any{r.ID, r.Result, r.From, r.To}
	},
	scan: func(r *crawler.Registration) []any {
		return []any{&r.ID, &r.Result, &r.From, &r.To}
	},
})

var registrationDataTable = newTable(table[crawler.RegistrationData]{
	name:     "registration_data",
	insert:   []string{"id", "person_id", "registered"},
	keys:     []string{"id", "person_id"},
	conflict: "ON CONSTRAINT registration_data_pkey",
	policy:   insertOrUpdate,
	values: func(r *crawler.RegistrationData) []any {
		return []any{r.ID, r.PersonID, r.Registered}
	},
	scan: func(r *crawler.RegistrationData) []any {
		return []any{&r.ID, &r.PersonID, &r.Registered}
	},
})
