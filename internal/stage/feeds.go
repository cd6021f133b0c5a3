// Package stage binds each Seimas feed to its parser: fetch the feed text, take a
// store session for the duration of the parse pass, and ingest.
package stage

import (
	"context"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/2448334/seimas-scraper/internal/crawler"
	"github.com/2448334/seimas-scraper/internal/ingest"
)

// DefaultBaseURL is the root of the open data feeds.
const DefaultBaseURL = "https://apps.lrs.lt/sip/"

// Feed paths relative to the base URL.
const (
	parliamentsPath      = "p2b.ad_seimo_kadencijos"
	politiciansPath      = "p2b.ad_seimo_nariai?kadencijos_id=%d"
	sessionsPath         = "p2b.ad_seimo_sesijos?kadencijos_id=%d"
	meetingsPath         = "p2b.ad_seimo_posedziai?sesijos_id=%d"
	meetingDataPath      = "p2b.ad_seimo_posedzio_eiga_full?posedzio_id=%d"
	votingDataPath       = "p2b.ad_sp_balsavimo_rezultatai?balsavimo_id=%d"
	registrationDataPath = "p2b.ad_sp_registracijos_rezultatai?registracijos_id=%d"
)

// SessionSource hands out store sessions.
type SessionSource interface {
	Acquire(ctx context.Context) (crawler.RecordSession, error)
}

type parseFunc func(ctx context.Context, r io.Reader, w crawler.RecordWriter) error

// Feeds runs single feed fetches. Errors are returned unchanged; there are no retries.
type Feeds struct {
	baseURL  string
	fetcher  crawler.TextFetcher
	store    SessionSource
	ingestor *ingest.Ingestor
	logger   *zap.Logger
}

// New creates Feeds rooted at baseURL, or DefaultBaseURL when empty.
func New(baseURL string, fetcher crawler.TextFetcher, store SessionSource, ingestor *ingest.Ingestor, logger *zap.Logger) *Feeds {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if ingestor == nil {
		ingestor = ingest.New(logger)
	}
	return &Feeds{
		baseURL:  baseURL,
		fetcher:  fetcher,
		store:    store,
		ingestor: ingestor,
		logger:   logger.Named("stage"),
	}
}

// Parliaments loads the list of parliamentary terms.
func (f *Feeds) Parliaments(ctx context.Context) error {
	return f.run(ctx, f.baseURL+parliamentsPath, f.ingestor.Parliaments)
}

// Politicians loads the members of one term.
func (f *Feeds) Politicians(ctx context.Context, parliamentID int32) error {
	return f.run(ctx, f.url(politiciansPath, parliamentID), f.ingestor.Politicians)
}

// Sessions loads the sessions of one term.
func (f *Feeds) Sessions(ctx context.Context, parliamentID int32) error {
	return f.run(ctx, f.url(sessionsPath, parliamentID), f.ingestor.Sessions)
}

// Meetings loads the meetings of one session.
func (f *Feeds) Meetings(ctx context.Context, sessionID int32) error {
	return f.run(ctx, f.url(meetingsPath, sessionID), f.ingestor.Meetings)
}

// MeetingData loads the course of one meeting.
func (f *Feeds) MeetingData(ctx context.Context, meetingID int32) error {
	return f.run(ctx, f.url(meetingDataPath, meetingID), f.ingestor.MeetingData)
}

// VotingData loads the per-person results of one vote.
func (f *Feeds) VotingData(ctx context.Context, voteID int32) error {
	return f.run(ctx, f.url(votingDataPath, voteID), f.ingestor.VotingData)
}

// RegistrationData loads the per-person results of one registration.
func (f *Feeds) RegistrationData(ctx context.Context, registrationID int32) error {
	return f.run(ctx, f.url(registrationDataPath, registrationID), f.ingestor.RegistrationData)
}

func (f *Feeds) url(path string, id int32) string {
	return f.baseURL + fmt.Sprintf(path, id)
}

func (f *Feeds) run(ctx context.Context, url string, parse parseFunc) error {
	body, err := f.fetcher.FetchText(ctx, url)
	if err != nil {
		return err
	}
	session, err := f.store.Acquire(ctx)
	if err != nil {
		return err
	}
	defer session.Release()

	f.logger.Debug("ingesting feed", zap.String("url", url), zap.Int("bytes", len(body)))
	return parse(ctx, strings.NewReader(body), session)
}
