package crawler

import (
	"context"
	"io"
	"time"
)

// RecordWriter persists parsed records. Every method returns the stored row, or nil when the
// write was an idempotent no-op (insert-or-ignore conflict or a benign uniqueness violation).
type RecordWriter interface {
	UpsertParliament(ctx context.Context, p Parliament) (*Parliament, error)
	UpsertPolitician(ctx context.Context, p Politician) (*Politician, error)
	UpsertOffice(ctx context.Context, o Office) (*Office, error)
	UpsertSession(ctx context.Context, s Session) (*Session, error)
	UpsertMeeting(ctx context.Context, m Meeting) (*Meeting, error)
	UpsertMeetingData(ctx context.Context, m MeetingData) (*MeetingData, error)
	UpsertAgendaItem(ctx context.Context, a AgendaItem) (*AgendaItem, error)
	UpsertVote(ctx context.Context, v Vote) (*Vote, error)
	UpsertVoteData(ctx context.Context, v VoteData) (*VoteData, error)
	UpsertSpeech(ctx context.Context, s Speech) (*Speech, error)
	UpsertRegistration(ctx context.Context, r Registration) (*Registration, error)
	UpsertRegistrationData(ctx context.Context, r RegistrationData) (*RegistrationData, error)
}

// RecordSession is a RecordWriter bound to one scoped connection.
// Release must be called once the parse pass using it is over.
type RecordSession interface {
	RecordWriter
	Release()
}

// RecordReader answers the queries the orchestrator uses to build task lists.
type RecordReader interface {
	ParliamentIDs(ctx context.Context) ([]int32, error)
	SessionIDs(ctx context.Context, parliamentID int32) ([]int32, error)
	MeetingIDs(ctx context.Context, sessionID int32) ([]int32, error)
	CountMeetings(ctx context.Context, sessionID int32) (int64, error)
	VoteIDs(ctx context.Context) ([]int32, error)
	RegistrationIDs(ctx context.Context) ([]int32, error)
	MissingMeetingIDs(ctx context.Context) ([]int32, error)
	MissingVoteIDs(ctx context.Context) ([]int32, error)
	MissingRegistrationIDs(ctx context.Context) ([]int32, error)
	DocumentLinks(ctx context.Context, sessionID int32) ([]DocumentLinks, error)
}

// Store is the relational record store.
type Store interface {
	RecordReader
	Acquire(ctx context.Context) (RecordSession, error)
	Close()
}

// TextFetcher retrieves a feed and returns its decoded body.
type TextFetcher interface {
	FetchText(ctx context.Context, url string) (string, error)
}

// BytesFetcher retrieves a binary artifact.
type BytesFetcher interface {
	FetchBytes(ctx context.Context, url string) ([]byte, error)
}

// DocumentFetcher materializes a meeting document. It reports false when the
// document was already present and nothing was downloaded.
type DocumentFetcher interface {
	FetchDocument(ctx context.Context, ref DocumentRef) (bool, error)
}

// BlobStore holds converted documents.
type BlobStore interface {
	Exists(ctx context.Context, path string) (bool, error)
	PutObject(ctx context.Context, path string, contentType string, data io.Reader) (string, error)
}

// Publisher pushes stage completion events to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, report StageReport) (string, error)
}

// Clock supplies timestamps for stage reports.
type Clock interface {
	Now() time.Time
}
