package ingest

import (
	"context"
	"encoding/xml"

	"go.uber.org/zap"

	"github.com/2448334/seimas-scraper/internal/crawler"
)

// sessionParser handles SeimoKadencija groups holding SeimoSesija records.
type sessionParser struct {
	w            crawler.RecordWriter
	logger       *zap.Logger
	parliamentID *int32
	cur          *crawler.Session
}

func (p *sessionParser) start(_ context.Context, el xml.StartElement) error {
	switch el.Name.Local {
	case "SeimoKadencija":
		p.parliamentID = attrsOf(el).integer("kadencijos_id")
	case "SeimoSesija":
		a := attrsOf(el)
		id, num, name := a.integer("sesijos_id"), a.integer("numeris"), a.str("pavadinimas")
		switch {
		case id == nil:
			dropped(p.logger, el.Name.Local, "sesijos_id", a)
			return nil
		case num == nil:
			dropped(p.logger, el.Name.Local, "numeris", a)
			return nil
		case name == nil:
			dropped(p.logger, el.Name.Local, "pavadinimas", a)
			return nil
		case p.parliamentID == nil:
			dropped(p.logger, el.Name.Local, "kadencijos_id", a)
			return nil
		}
		p.cur = &crawler.Session{
			ID:         *id,
			Num:        *num,
			Name:       *name,
			From:       a.timestamp("data_nuo", dateLayout),
			To:         a.timestamp("data_iki", dateLayout),
			Parliament: *p.parliamentID,
		}
	}
	return nil
}

func (p *sessionParser) text(string, string) {}

func (p *sessionParser) end(ctx context.Context, name string) error {
	switch name {
	case "SeimoKadencija":
		p.parliamentID = nil
	case "SeimoSesija":
		if p.cur == nil {
			return nil
		}
		rec := *p.cur
		p.cur = nil
		if _, err := p.w.UpsertSession(ctx, rec); err != nil {
			return err
		}
	}
	return nil
}
