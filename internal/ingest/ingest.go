package ingest

import (
	"context"
	"io"

	"go.uber.org/zap"

	"github.com/2448334/seimas-scraper/internal/crawler"
)

// Ingestor parses feeds and writes the records they contain.
type Ingestor struct {
	logger *zap.Logger
}

// New constructs an Ingestor.
func New(logger *zap.Logger) *Ingestor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ingestor{logger: logger.Named("ingest")}
}

// Parliaments ingests the parliament term list.
func (i *Ingestor) Parliaments(ctx context.Context, r io.Reader, w crawler.RecordWriter) error {
	return walk(ctx, r, &parliamentParser{w: w, logger: i.logger})
}

// Politicians ingests the members of every term in the feed, with their offices and contacts.
func (i *Ingestor) Politicians(ctx context.Context, r io.Reader, w crawler.RecordWriter) error {
	return walk(ctx, r, &politicianParser{w: w, logger: i.logger})
}

// Sessions ingests the sessions of every term in the feed.
func (i *Ingestor) Sessions(ctx context.Context, r io.Reader, w crawler.RecordWriter) error {
	return walk(ctx, r, &sessionParser{w: w, logger: i.logger})
}

// Meetings ingests the meetings of every session in the feed.
func (i *Ingestor) Meetings(ctx context.Context, r io.Reader, w crawler.RecordWriter) error {
	return walk(ctx, r, &meetingParser{w: w, logger: i.logger})
}

// MeetingData ingests one meeting's course: agenda items, their speeches and votes,
// and registrations.
func (i *Ingestor) MeetingData(ctx context.Context, r io.Reader, w crawler.RecordWriter) error {
	return walk(ctx, r, &meetingDataParser{w: w, logger: i.logger})
}

// VotingData ingests per-person results of a vote.
func (i *Ingestor) VotingData(ctx context.Context, r io.Reader, w crawler.RecordWriter) error {
	return walk(ctx, r, &votingDataParser{w: w, logger: i.logger})
}

// RegistrationData ingests per-person results of a registration.
func (i *Ingestor) RegistrationData(ctx context.Context, r io.Reader, w crawler.RecordWriter) error {
	return walk(ctx, r, &registrationDataParser{w: w, logger: i.logger})
}
