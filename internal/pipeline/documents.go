package pipeline

import (
	"context"
	"fmt"

	"github.com/2448334/seimas-scraper/internal/crawler"
	"github.com/2448334/seimas-scraper/internal/dispatcher"
)

// Document stage runs: every protocol first, then every stenogram.
const (
	stageProtocols  = StageDocuments + "-protocol"
	stageStenograms = StageDocuments + "-stenogram"
)

// documentsFor collects the document links of every session of parliaments and
// materializes them. A session without meetings gets its meeting feed fetched first.
func (p *Pipeline) documentsFor(ctx context.Context, r *run, parliaments []int32) error {
	if p.documents == nil {
		r.logger.Warn("document fetcher not configured, skipping documents")
		return nil
	}
	var protocols, stenograms []crawler.DocumentRef
	for _, parliamentID := range parliaments {
		sessions, err := p.store.SessionIDs(ctx, parliamentID)
		if err != nil {
			return fmt.Errorf("list sessions of parliament %d: %w", parliamentID, err)
		}
		for _, sessionID := range sessions {
			n, err := p.store.CountMeetings(ctx, sessionID)
			if err != nil {
				return fmt.Errorf("count meetings of session %d: %w", sessionID, err)
			}
			if n == 0 {
				if err := p.feeds.Meetings(ctx, sessionID); err != nil {
					return fmt.Errorf("fetch meetings of session %d: %w", sessionID, err)
				}
			}
			links, err := p.store.DocumentLinks(ctx, sessionID)
			if err != nil {
				return fmt.Errorf("list documents of session %d: %w", sessionID, err)
			}
			for _, l := range links {
				if ref, ok := documentRef(crawler.DocumentProtocol, l.ProtocolLink, l); ok {
					protocols = append(protocols, ref)
				}
				if ref, ok := documentRef(crawler.DocumentStenogram, l.StenogramLink, l); ok {
					stenograms = append(stenograms, ref)
				}
			}
		}
	}

	p.dispatch(ctx, r, stageProtocols, p.documentTasks(protocols), p.cfg.DocumentChunkSize)
	if err := ctx.Err(); err != nil {
		return err
	}
	p.dispatch(ctx, r, stageStenograms, p.documentTasks(stenograms), p.cfg.DocumentChunkSize)
	return nil
}

func documentRef(kind crawler.DocumentKind, link *string, l crawler.DocumentLinks) (crawler.DocumentRef, bool) {
	if link == nil || *link == "" {
		return crawler.DocumentRef{}, false
	}
	return crawler.DocumentRef{Kind: kind, Link: *link, SessionID: l.SessionID, MeetingNum: l.MeetingNum}, true
}

func (p *Pipeline) documentTasks(refs []crawler.DocumentRef) []dispatcher.Task {
	tasks := make([]dispatcher.Task, 0, len(refs))
	for _, ref := range refs {
		tasks = append(tasks, dispatcher.Task{
			Name: fmt.Sprintf("%s/%d/%d", ref.Kind, ref.SessionID, ref.MeetingNum),
			Run: func(ctx context.Context) error {
				_, err := p.documents.FetchDocument(ctx, ref)
				return err
			},
		})
	}
	return tasks
}
