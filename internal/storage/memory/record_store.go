package memory

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/2448334/seimas-scraper/internal/crawler"
	"github.com/2448334/seimas-scraper/internal/metrics"
)

type personKey struct {
	id, other int32
}

// RecordStore keeps records in maps for development and tests. It applies the same
// conflict policies as the Postgres store.
type RecordStore struct {
	mu               sync.RWMutex
	parliaments      map[int32]crawler.Parliament
	politicians      map[personKey]crawler.Politician
	offices          map[string]crawler.Office
	nextOfficeID     int32
	sessions         map[int32]crawler.Session
	meetings         map[int32]crawler.Meeting
	meetingData      map[int32]crawler.MeetingData
	agendaItems      map[int32]crawler.AgendaItem
	votes            map[int32]crawler.Vote
	voteData         map[personKey]crawler.VoteData
	speeches         map[int32]crawler.Speech
	registrations    map[int32]crawler.Registration
	registrationData map[personKey]crawler.RegistrationData
}

var _ crawler.Store = (*RecordStore)(nil)

// NewRecordStore constructs an empty RecordStore.
func NewRecordStore() *RecordStore {
	return &RecordStore{
		parliaments:      make(map[int32]crawler.Parliament),
		politicians:      make(map[personKey]crawler.Politician),
		offices:          make(map[string]crawler.Office),
		sessions:         make(map[int32]crawler.Session),
		meetings:         make(map[int32]crawler.Meeting),
		meetingData:      make(map[int32]crawler.MeetingData),
		agendaItems:      make(map[int32]crawler.AgendaItem),
		votes:            make(map[int32]crawler.Vote),
		voteData:         make(map[personKey]crawler.VoteData),
		speeches:         make(map[int32]crawler.Speech),
		registrations:    make(map[int32]crawler.Registration),
		registrationData: make(map[personKey]crawler.RegistrationData),
	}
}

// Acquire returns a session writing straight into the store.
func (s *RecordStore) Acquire(context.Context) (crawler.RecordSession, error) {
	return memorySession{s}, nil
}

// Close is a no-op.
func (s *RecordStore) Close() {}

type memorySession struct {
	*RecordStore
}

func (memorySession) Release() {}

// UpsertParliament keeps the first row written for an id.
func (s *RecordStore) UpsertParliament(_ context.Context, p crawler.Parliament) (*crawler.Parliament, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.parliaments[p.ID]; ok {
		metrics.ObserveRecord("parliament", metrics.RecordSkipped)
		return nil, nil
	}
	s.parliaments[p.ID] = p
	metrics.ObserveRecord("parliament", metrics.RecordWritten)
	return &p, nil
}

// UpsertPolitician writes or replaces the (id, parliament) row.
func (s *RecordStore) UpsertPolitician(_ context.Context, p crawler.Politician) (*crawler.Politician, error) {
	p.Phone = cloneNonNil(p.Phone)
	p.Offices = cloneNonNil(p.Offices)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.politicians[personKey{p.ID, p.Parliament}] = p
	metrics.ObserveRecord("politician", metrics.RecordWritten)
	return &p, nil
}

// UpsertOffice deduplicates on the natural key and assigns ids sequentially.
func (s *RecordStore) UpsertOffice(_ context.Context, o crawler.Office) (*crawler.Office, error) {
	key := officeKey(o)
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.offices[key]; ok {
		o.ID = existing.ID
	} else {
		s.nextOfficeID++
		o.ID = s.nextOfficeID
	}
	s.offices[key] = o
	metrics.ObserveRecord("office", metrics.RecordWritten)
	return &o, nil
}

// UpsertSession writes or replaces a session.
func (s *RecordStore) UpsertSession(_ context.Context, v crawler.Session) (*crawler.Session, error) {
	return put(s, s.sessions, "sessions", v.ID, v)
}

// UpsertMeeting writes or replaces a meeting.
func (s *RecordStore) UpsertMeeting(_ context.Context, m crawler.Meeting) (*crawler.Meeting, error) {
	return put(s, s.meetings, "meetings", m.ID, m)
}

// UpsertMeetingData writes or replaces the detail of a meeting.
func (s *RecordStore) UpsertMeetingData(_ context.Context, m crawler.MeetingData) (*crawler.MeetingData, error) {
	m.Agenda = cloneNonNil(m.Agenda)
	m.Registrations = cloneNonNil(m.Registrations)
	return put(s, s.meetingData, "meeting_data", m.ID, m)
}

// UpsertAgendaItem writes or replaces an agenda item.
func (s *RecordStore) UpsertAgendaItem(_ context.Context, a crawler.AgendaItem) (*crawler.AgendaItem, error) {
	a.Speeches = cloneNonNil(a.Speeches)
	a.Voting = cloneNonNil(a.Voting)
	return put(s, s.agendaItems, "agenda_item", a.ID, a)
}

// UpsertVote writes or replaces a vote.
func (s *RecordStore) UpsertVote(_ context.Context, v crawler.Vote) (*crawler.Vote, error) {
	return put(s, s.votes, "vote", v.ID, v)
}

// UpsertVoteData writes or replaces one person's vote.
func (s *RecordStore) UpsertVoteData(_ context.Context, v crawler.VoteData) (*crawler.VoteData, error) {
	return put(s, s.voteData, "vote_data", personKey{v.ID, v.PersonID}, v)
}

// UpsertSpeech writes or replaces a speech.
func (s *RecordStore) UpsertSpeech(_ context.Context, v crawler.Speech) (*crawler.Speech, error) {
	return put(s, s.speeches, "speech", v.ID, v)
}

// UpsertRegistration writes or replaces a registration.
func (s *RecordStore) UpsertRegistration(_ context.Context, r crawler.Registration) (*crawler.Registration, error) {
	return put(s, s.registrations, "registration", r.ID, r)
}

// UpsertRegistrationData writes or replaces one person's registration.
func (s *RecordStore) UpsertRegistrationData(
	_ context.Context,
	r crawler.RegistrationData,
) (*crawler.RegistrationData, error) {
	return put(s, s.registrationData, "registration_data", personKey{r.ID, r.PersonID}, r)
}

func put[K comparable, V any](s *RecordStore, m map[K]V, table string, key K, v V) (*V, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m[key] = v
	metrics.ObserveRecord(table, metrics.RecordWritten)
	return &v, nil
}

// ParliamentIDs lists stored terms in ascending order.
func (s *RecordStore) ParliamentIDs(context.Context) ([]int32, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedKeys(s.parliaments, nil), nil
}

// SessionIDs lists the sessions of one term.
func (s *RecordStore) SessionIDs(_ context.Context, parliamentID int32) ([]int32, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedKeys(s.sessions, func(v crawler.Session) bool { return v.Parliament == parliamentID }), nil
}

// MeetingIDs lists the meetings of one session.
func (s *RecordStore) MeetingIDs(_ context.Context, sessionID int32) ([]int32, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedKeys(s.meetings, func(m crawler.Meeting) bool { return m.Session == sessionID }), nil
}

// CountMeetings counts the meetings of one session.
func (s *RecordStore) CountMeetings(ctx context.Context, sessionID int32) (int64, error) {
	ids, err := s.MeetingIDs(ctx, sessionID)
	return int64(len(ids)), err
}

// VoteIDs lists every stored vote.
func (s *RecordStore) VoteIDs(context.Context) ([]int32, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedKeys(s.votes, nil), nil
}

// RegistrationIDs lists every stored registration.
func (s *RecordStore) RegistrationIDs(context.Context) ([]int32, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedKeys(s.registrations, nil), nil
}

// MissingMeetingIDs lists meetings without a detail row.
func (s *RecordStore) MissingMeetingIDs(context.Context) ([]int32, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedKeys(s.meetings, func(m crawler.Meeting) bool {
		_, ok := s.meetingData[m.ID]
		return !ok
	}), nil
}

// MissingVoteIDs lists votes without any per-person result.
func (s *RecordStore) MissingVoteIDs(context.Context) ([]int32, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	have := make(map[int32]bool)
	for k := range s.voteData {
		have[k.id] = true
	}
	return sortedKeys(s.votes, func(v crawler.Vote) bool { return !have[v.ID] }), nil
}

// MissingRegistrationIDs lists registrations without any per-person result.
func (s *RecordStore) MissingRegistrationIDs(context.Context) ([]int32, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	have := make(map[int32]bool)
	for k := range s.registrationData {
		have[k.id] = true
	}
	return sortedKeys(s.registrations, func(r crawler.Registration) bool { return !have[r.ID] }), nil
}

// DocumentLinks returns the document links of a session's meetings ordered by meeting number.
func (s *RecordStore) DocumentLinks(_ context.Context, sessionID int32) ([]crawler.DocumentLinks, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []crawler.DocumentLinks
	for _, id := range sortedKeys(s.meetings, func(m crawler.Meeting) bool { return m.Session == sessionID }) {
		m := s.meetings[id]
		out = append(out, crawler.DocumentLinks{
			SessionID:     m.Session,
			MeetingNum:    m.Num,
			ProtocolLink:  m.ProtocolLink,
			StenogramLink: m.StenogramLink,
		})
	}
	slices.SortStableFunc(out, func(a, b crawler.DocumentLinks) int { return cmp.Compare(a.MeetingNum, b.MeetingNum) })
	return out, nil
}

// Snapshot is a copy of everything the store holds, for assertions in tests.
type Snapshot struct {
	Parliaments      map[int32]crawler.Parliament
	Politicians      []crawler.Politician
	Offices          []crawler.Office
	Sessions         map[int32]crawler.Session
	Meetings         map[int32]crawler.Meeting
	MeetingData      map[int32]crawler.MeetingData
	AgendaItems      map[int32]crawler.AgendaItem
	Votes            map[int32]crawler.Vote
	VoteData         []crawler.VoteData
	Speeches         map[int32]crawler.Speech
	Registrations    map[int32]crawler.Registration
	RegistrationData []crawler.RegistrationData
}

// Snapshot copies the current contents of the store.
func (s *RecordStore) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := Snapshot{
		Parliaments:   cloneMap(s.parliaments),
		Sessions:      cloneMap(s.sessions),
		Meetings:      cloneMap(s.meetings),
		MeetingData:   cloneMap(s.meetingData),
		AgendaItems:   cloneMap(s.agendaItems),
		Votes:         cloneMap(s.votes),
		Speeches:      cloneMap(s.speeches),
		Registrations: cloneMap(s.registrations),
	}
	for _, p := range s.politicians {
		snap.Politicians = append(snap.Politicians, p)
	}
	slices.SortFunc(snap.Politicians, func(a, b crawler.Politician) int {
		if a.Parliament != b.Parliament {
			return cmp.Compare(a.Parliament, b.Parliament)
		}
		return cmp.Compare(a.ID, b.ID)
	})
	for _, o := range s.offices {
		snap.Offices = append(snap.Offices, o)
	}
	slices.SortFunc(snap.Offices, func(a, b crawler.Office) int { return cmp.Compare(a.ID, b.ID) })
	for _, v := range s.voteData {
		snap.VoteData = append(snap.VoteData, v)
	}
	slices.SortFunc(snap.VoteData, func(a, b crawler.VoteData) int { return comparePerson(a.ID, a.PersonID, b.ID, b.PersonID) })
	for _, r := range s.registrationData {
		snap.RegistrationData = append(snap.RegistrationData, r)
	}
	slices.SortFunc(snap.RegistrationData, func(a, b crawler.RegistrationData) int {
		return comparePerson(a.ID, a.PersonID, b.ID, b.PersonID)
	})
	return snap
}

func comparePerson(aID, aPerson, bID, bPerson int32) int {
	if aID != bID {
		return cmp.Compare(aID, bID)
	}
	return cmp.Compare(aPerson, bPerson)
}

func officeKey(o crawler.Office) string {
	return fmt.Sprintf("%s|%s|%s|%s|%s",
		deref(o.DepartmentID), deref(o.DepartmentType), deref(o.Duties), dateKey(o.From), dateKey(o.To))
}

func deref[T any](v *T) string {
	if v == nil {
		return "<nil>"
	}
	return fmt.Sprint(*v)
}

func dateKey(t *time.Time) string {
	if t == nil {
		return "<nil>"
	}
	return t.Format(time.DateOnly)
}

func sortedKeys[V any](m map[int32]V, keep func(V) bool) []int32 {
	ids := make([]int32, 0, len(m))
	for id, v := range m {
		if keep == nil || keep(v) {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids
}

func cloneNonNil[T any](v []T) []T {
	if v == nil {
		return []T{}
	}
	return slices.Clone(v)
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
