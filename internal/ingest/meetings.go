package ingest

import (
	"context"
	"encoding/xml"

	"go.uber.org/zap"

	"github.com/2448334/seimas-scraper/internal/crawler"
)

// meetingParser handles SeimoSesija groups holding SeimoPosėdis records. Document and
// video links arrive as attribute-only children of the meeting.
type meetingParser struct {
	w         crawler.RecordWriter
	logger    *zap.Logger
	sessionID *int32
	cur       *crawler.Meeting
}

func (p *meetingParser) start(_ context.Context, el xml.StartElement) error {
	a := attrsOf(el)
	switch el.Name.Local {
	case "SeimoSesija":
		p.sessionID = a.integer("sesijos_id")
	case "SeimoPosėdis":
		id, num, kind := a.integer("posėdžio_id"), a.integer("numeris"), a.str("tipas")
		switch {
		case id == nil:
			dropped(p.logger, el.Name.Local, "posėdžio_id", a)
			return nil
		case num == nil:
			dropped(p.logger, el.Name.Local, "numeris", a)
			return nil
		case kind == nil:
			dropped(p.logger, el.Name.Local, "tipas", a)
			return nil
		case p.sessionID == nil:
			dropped(p.logger, el.Name.Local, "sesijos_id", a)
			return nil
		}
		p.cur = &crawler.Meeting{
			ID:      *id,
			Num:     *num,
			Type:    *kind,
			From:    a.timestamp("pradžia", minuteLayout),
			To:      a.timestamp("pabaiga", minuteLayout),
			Session: *p.sessionID,
		}
	case "Protokolas":
		if p.cur != nil {
			p.cur.ProtocolLink = a.str("protokolo_nuoroda")
		}
	case "Stenograma":
		if p.cur != nil {
			p.cur.StenogramLink = a.str("stenogramos_nuoroda")
		}
	case "VaizdoĮrašas":
		if p.cur != nil {
			p.cur.VideoComment = a.str("komentaras")
			p.cur.VideoLink = a.str("vaizdo_įrašo_nuoroda")
		}
	}
	return nil
}

func (p *meetingParser) text(string, string) {}

func (p *meetingParser) end(ctx context.Context, name string) error {
	switch name {
	case "SeimoSesija":
		p.sessionID = nil
	case "SeimoPosėdis":
		if p.cur == nil {
			return nil
		}
		rec := *p.cur
		p.cur = nil
		if _, err := p.w.UpsertMeeting(ctx, rec); err != nil {
			return err
		}
	}
	return nil
}
