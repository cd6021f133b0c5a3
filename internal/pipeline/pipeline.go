// Package pipeline orders crawl stages. Each stage reads the ids it needs from the
// store, turns them into tasks and hands them to the dispatcher, so a stage only
// sees what earlier stages have written.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/2448334/seimas-scraper/internal/clock/system"
	"github.com/2448334/seimas-scraper/internal/crawler"
	"github.com/2448334/seimas-scraper/internal/dispatcher"
)

// Stage names, in crawl order.
const (
	StageParliaments      = "parliaments"
	StagePoliticians      = "politicians"
	StageSessions         = "sessions"
	StageMeetings         = "meetings"
	StageMeetingData      = "meeting-data"
	StageVotingData       = "voting-data"
	StageRegistrationData = "registration-data"
	StageDocuments        = "documents"
)

// Stages lists every stage in the order All runs them.
var Stages = []string{
	StageParliaments,
	StagePoliticians,
	StageSessions,
	StageMeetings,
	StageMeetingData,
	StageVotingData,
	StageRegistrationData,
	StageDocuments,
}

// Mode selects which ids a detail stage works on.
type Mode int

const (
	// Full refetches every known id.
	Full Mode = iota
	// Missing fetches only ids whose detail rows are absent.
	Missing
)

func (m Mode) String() string {
	if m == Missing {
		return "missing"
	}
	return "full"
}

// ParseMode accepts "full" or "missing".
func ParseMode(s string) (Mode, error) {
	switch s {
	case "", "full":
		return Full, nil
	case "missing":
		return Missing, nil
	default:
		return Full, fmt.Errorf("unknown mode %q", s)
	}
}

// Feeds is the set of single-feed fetches a crawl is built from.
type Feeds interface {
	Parliaments(ctx context.Context) error
	Politicians(ctx context.Context, parliamentID int32) error
	Sessions(ctx context.Context, parliamentID int32) error
	Meetings(ctx context.Context, sessionID int32) error
	MeetingData(ctx context.Context, meetingID int32) error
	VotingData(ctx context.Context, voteID int32) error
	RegistrationData(ctx context.Context, registrationID int32) error
}

// IDGenerator issues run ids.
type IDGenerator interface {
	NewID() (string, error)
}

// Config tunes stage behavior.
type Config struct {
	// SkipPopulatedSessions leaves sessions that already hold meetings out of the meetings stage.
	SkipPopulatedSessions bool
	DocumentChunkSize     int
}

// Pipeline runs crawls.
type Pipeline struct {
	cfg       Config
	feeds     Feeds
	store     crawler.RecordReader
	documents crawler.DocumentFetcher
	runner    *dispatcher.Dispatcher
	publisher crawler.Publisher
	ids       IDGenerator
	clock     crawler.Clock
	logger    *zap.Logger
}

// Deps groups the collaborators of a Pipeline. Documents, Publisher, IDs and Clock are optional.
type Deps struct {
	Feeds     Feeds
	Store     crawler.RecordReader
	Documents crawler.DocumentFetcher
	Runner    *dispatcher.Dispatcher
	Publisher crawler.Publisher
	IDs       IDGenerator
	Clock     crawler.Clock
	Logger    *zap.Logger
}

// New creates a Pipeline.
func New(cfg Config, deps Deps) (*Pipeline, error) {
	if deps.Feeds == nil || deps.Store == nil || deps.Runner == nil {
		return nil, fmt.Errorf("pipeline: feeds, store and runner are required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.DocumentChunkSize <= 0 {
		cfg.DocumentChunkSize = 8
	}
	clock := deps.Clock
	if clock == nil {
		clock = system.New()
	}
	return &Pipeline{
		cfg:       cfg,
		feeds:     deps.Feeds,
		store:     deps.Store,
		documents: deps.Documents,
		runner:    deps.Runner,
		publisher: deps.Publisher,
		ids:       deps.IDs,
		clock:     clock,
		logger:    logger.Named("pipeline"),
	}, nil
}

// run carries the identity of one crawl invocation.
type run struct {
	id     string
	logger *zap.Logger
}

func (p *Pipeline) newRun(entry string) *run {
	id := fmt.Sprintf("run-%d", p.clock.Now().UnixNano())
	if p.ids != nil {
		if generated, err := p.ids.NewID(); err == nil {
			id = generated
		} else {
			p.logger.Warn("run id generation failed", zap.Error(err))
		}
	}
	r := &run{id: id, logger: p.logger.With(zap.String("run_id", id))}
	r.logger.Info("crawl started", zap.String("entry", entry))
	return r
}

// All crawls every stage in full mode.
func (p *Pipeline) All(ctx context.Context) error {
	r := p.newRun("all")
	for _, name := range Stages {
		if err := p.runStage(ctx, r, name, Full); err != nil {
			return err
		}
	}
	r.logger.Info("crawl finished")
	return nil
}

// Stage runs one named stage.
func (p *Pipeline) Stage(ctx context.Context, name string, mode Mode) error {
	return p.runStage(ctx, p.newRun(name), name, mode)
}

// Parliament refreshes one term: its sessions and all their meetings, then whatever
// meeting, vote and registration detail is still missing, then its documents.
func (p *Pipeline) Parliament(ctx context.Context, parliamentID int32) error {
	r := p.newRun("parliament")
	r.logger = r.logger.With(zap.Int32("parliament_id", parliamentID))

	err := p.direct(ctx, r, StageSessions, func(ctx context.Context) error {
		return p.feeds.Sessions(ctx, parliamentID)
	})
	if err != nil {
		return err
	}
	sessions, err := p.store.SessionIDs(ctx, parliamentID)
	if err != nil {
		return fmt.Errorf("list sessions of parliament %d: %w", parliamentID, err)
	}
	// Every session of the term is refetched so meetings added since the last run are seen.
	p.dispatch(ctx, r, StageMeetings, idTasks(StageMeetings, sessions, p.feeds.Meetings), 0)
	if err := ctx.Err(); err != nil {
		return err
	}
	for _, name := range []string{StageMeetingData, StageVotingData, StageRegistrationData} {
		if err := p.runStage(ctx, r, name, Missing); err != nil {
			return err
		}
	}
	if err := p.documentsFor(ctx, r, []int32{parliamentID}); err != nil {
		return err
	}
	r.logger.Info("crawl finished")
	return nil
}

// Documents materializes the documents of one term.
func (p *Pipeline) Documents(ctx context.Context, parliamentID int32) error {
	return p.documentsFor(ctx, p.newRun("documents"), []int32{parliamentID})
}

// AllDocuments materializes the documents of every known term.
func (p *Pipeline) AllDocuments(ctx context.Context) error {
	r := p.newRun("documents")
	parliaments, err := p.store.ParliamentIDs(ctx)
	if err != nil {
		return fmt.Errorf("list parliaments: %w", err)
	}
	return p.documentsFor(ctx, r, parliaments)
}

func (p *Pipeline) runStage(ctx context.Context, r *run, name string, mode Mode) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	switch name {
	case StageParliaments:
		return p.direct(ctx, r, name, p.feeds.Parliaments)
	case StagePoliticians, StageSessions:
		parliaments, err := p.store.ParliamentIDs(ctx)
		if err != nil {
			return fmt.Errorf("list parliaments: %w", err)
		}
		fetch := p.feeds.Politicians
		if name == StageSessions {
			fetch = p.feeds.Sessions
		}
		p.dispatch(ctx, r, name, idTasks(name, parliaments, fetch), 0)
		return nil
	case StageMeetings:
		sessions, err := p.allSessions(ctx)
		if err != nil {
			return err
		}
		return p.meetings(ctx, r, sessions)
	case StageMeetingData:
		ids, err := p.meetingIDs(ctx, mode)
		if err != nil {
			return err
		}
		p.dispatch(ctx, r, name, idTasks(name, ids, p.feeds.MeetingData), 0)
		return nil
	case StageVotingData:
		list := p.store.VoteIDs
		if mode == Missing {
			list = p.store.MissingVoteIDs
		}
		ids, err := list(ctx)
		if err != nil {
			return fmt.Errorf("list %s votes: %w", mode, err)
		}
		p.dispatch(ctx, r, name, idTasks(name, ids, p.feeds.VotingData), 0)
		return nil
	case StageRegistrationData:
		list := p.store.RegistrationIDs
		if mode == Missing {
			list = p.store.MissingRegistrationIDs
		}
		ids, err := list(ctx)
		if err != nil {
			return fmt.Errorf("list %s registrations: %w", mode, err)
		}
		p.dispatch(ctx, r, name, idTasks(name, ids, p.feeds.RegistrationData), 0)
		return nil
	case StageDocuments:
		parliaments, err := p.store.ParliamentIDs(ctx)
		if err != nil {
			return fmt.Errorf("list parliaments: %w", err)
		}
		return p.documentsFor(ctx, r, parliaments)
	default:
		return fmt.Errorf("unknown stage %q", name)
	}
}

// meetings fetches the meeting feed of each session, leaving out populated sessions
// when configured to.
func (p *Pipeline) meetings(ctx context.Context, r *run, sessions []int32) error {
	todo := sessions
	if p.cfg.SkipPopulatedSessions {
		todo = make([]int32, 0, len(sessions))
		for _, id := range sessions {
			n, err := p.store.CountMeetings(ctx, id)
			if err != nil {
				return fmt.Errorf("count meetings of session %d: %w", id, err)
			}
			if n == 0 {
				todo = append(todo, id)
			}
		}
		if skipped := len(sessions) - len(todo); skipped > 0 {
			r.logger.Info("skipping populated sessions", zap.Int("skipped", skipped))
		}
	}
	p.dispatch(ctx, r, StageMeetings, idTasks(StageMeetings, todo, p.feeds.Meetings), 0)
	return nil
}

func (p *Pipeline) allSessions(ctx context.Context) ([]int32, error) {
	parliaments, err := p.store.ParliamentIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list parliaments: %w", err)
	}
	var sessions []int32
	for _, id := range parliaments {
		ids, err := p.store.SessionIDs(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("list sessions of parliament %d: %w", id, err)
		}
		sessions = append(sessions, ids...)
	}
	return sessions, nil
}

func (p *Pipeline) meetingIDs(ctx context.Context, mode Mode) ([]int32, error) {
	if mode == Missing {
		ids, err := p.store.MissingMeetingIDs(ctx)
		if err != nil {
			return nil, fmt.Errorf("list missing meetings: %w", err)
		}
		return ids, nil
	}
	sessions, err := p.allSessions(ctx)
	if err != nil {
		return nil, err
	}
	var meetings []int32
	for _, id := range sessions {
		ids, err := p.store.MeetingIDs(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("list meetings of session %d: %w", id, err)
		}
		meetings = append(meetings, ids...)
	}
	return meetings, nil
}

// dispatch runs tasks as one stage and publishes its report. A chunk size of zero
// uses the dispatcher default. Task failures stay in the report.
func (p *Pipeline) dispatch(ctx context.Context, r *run, name string, tasks []dispatcher.Task, chunkSize int) dispatcher.Report {
	started := p.clock.Now()
	report := p.runner.RunChunked(ctx, name, tasks, chunkSize)
	p.publish(ctx, r, name, len(tasks), report.Failed(), started)
	return report
}

// direct runs a single top-level fetch inline. Unlike a dispatched task its failure
// ends the run.
func (p *Pipeline) direct(ctx context.Context, r *run, name string, fetch func(context.Context) error) error {
	started := p.clock.Now()
	err := fetch(ctx)
	failed := 0
	if err != nil {
		failed = 1
	}
	p.publish(ctx, r, name, 1, failed, started)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}

func (p *Pipeline) publish(ctx context.Context, r *run, name string, tasks, failed int, started time.Time) {
	summary := crawler.StageReport{
		RunID:      r.id,
		Stage:      name,
		Tasks:      tasks,
		Failed:     failed,
		StartedAt:  started,
		FinishedAt: p.clock.Now(),
	}
	r.logger.Info("stage complete",
		zap.String("stage", name),
		zap.Int("tasks", summary.Tasks),
		zap.Int("failed", summary.Failed),
		zap.Duration("duration", summary.FinishedAt.Sub(started)),
	)
	if p.publisher != nil {
		if _, err := p.publisher.Publish(ctx, summary); err != nil {
			r.logger.Warn("stage report not published", zap.String("stage", name), zap.Error(err))
		}
	}
}

func idTasks(stage string, ids []int32, fetch func(context.Context, int32) error) []dispatcher.Task {
	tasks := make([]dispatcher.Task, 0, len(ids))
	for _, id := range ids {
		tasks = append(tasks, dispatcher.Task{
			Name: fmt.Sprintf("%s/%d", stage, id),
			Run:  func(ctx context.Context) error { return fetch(ctx, id) },
		})
	}
	return tasks
}
