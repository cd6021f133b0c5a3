package ingest

import (
	"context"
	"encoding/xml"

	"go.uber.org/zap"

	"github.com/2448334/seimas-scraper/internal/crawler"
)

type votingDataParser struct {
	w      crawler.RecordWriter
	logger *zap.Logger
	voteID *int32
	cur    *crawler.VoteData
}

func (p *votingDataParser) start(_ context.Context, el xml.StartElement) error {
	a := attrsOf(el)
	switch el.Name.Local {
	case "SeimoNariųBalsavimas":
		p.voteID = a.integer("balsavimo_id")
	case "IndividualusBalsavimoRezultatas":
		person := a.integer("asmens_id")
		switch {
		case person == nil:
			dropped(p.logger, el.Name.Local, "asmens_id", a)
			return nil
		case p.voteID == nil:
			dropped(p.logger, el.Name.Local, "balsavimo_id", a)
			return nil
		}
		p.cur = &crawler.VoteData{ID: *p.voteID, PersonID: *person, Vote: voteType(a["kaip_balsavo"])}
	}
	return nil
}

func (p *votingDataParser) text(string, string) {}

func (p *votingDataParser) end(ctx context.Context, name string) error {
	switch name {
	case "SeimoNariųBalsavimas":
		p.voteID = nil
	case "IndividualusBalsavimoRezultatas":
		if p.cur == nil {
			return nil
		}
		rec := *p.cur
		p.cur = nil
		if _, err := p.w.UpsertVoteData(ctx, rec); err != nil {
			return err
		}
	}
	return nil
}

// voteType maps kaip_balsavo. An empty or unknown value means the member did not vote.
func voteType(s string) *crawler.VoteType {
	var v crawler.VoteType
	switch s {
	case "Už":
		v = crawler.VoteFor
	case "Prieš":
		v = crawler.VoteAgainst
	case "Susilaikė":
		v = crawler.VoteAbstain
	default:
		return nil
	}
	return &v
}
