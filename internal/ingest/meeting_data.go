package ingest

import (
	"context"
	"encoding/xml"

	"go.uber.org/zap"

	"github.com/2448334/seimas-scraper/internal/crawler"
)

// meetingDataParser handles the meeting course feed:
//
//	posedis
//	├── darbotvarkes-klausimas
//	│   ├── kalbetojas
//	│   └── balsavimas
//	└── registracija
//
// Each record is written when it closes, so children are stored before the parent
// carrying their ids.
type meetingDataParser struct {
	w      crawler.RecordWriter
	logger *zap.Logger
	stack  scopes

	meeting      *crawler.MeetingData
	agenda       *crawler.AgendaItem
	vote         *crawler.Vote
	speech       *crawler.Speech
	registration *crawler.Registration
}

func (p *meetingDataParser) start(_ context.Context, el xml.StartElement) error {
	name := el.Name.Local
	switch name {
	case "posedis":
		p.stack.push(scopeMeetingData)
		a := attrsOf(el)
		id := a.integer("pos_id")
		if id == nil {
			dropped(p.logger, name, "pos_id", a)
			return nil
		}
		p.meeting = &crawler.MeetingData{ID: *id, Agenda: []int32{}, Registrations: []int32{}}
	case "darbotvarkes-klausimas":
		p.stack.push(scopeAgendaItem)
		a := attrsOf(el)
		id := a.integer("svarst_kl_stad_id")
		if id == nil {
			dropped(p.logger, name, "svarst_kl_stad_id", a)
			return nil
		}
		p.agenda = &crawler.AgendaItem{
			ID:            *id,
			AgendaStateID: a.integer("kl_stad_id"),
			AgendaGroupID: a.integer("kl_gr_id"),
			DocumentKey:   a.integer("dok_key"),
			Speeches:      []int32{},
			Voting:        []int32{},
		}
		if p.meeting != nil {
			p.meeting.Agenda = append(p.meeting.Agenda, *id)
		}
	case "balsavimas":
		p.stack.push(scopeVote)
		a := attrsOf(el)
		id := a.integer("bals_id")
		if id == nil {
			dropped(p.logger, name, "bals_id", a)
			return nil
		}
		p.vote = &crawler.Vote{ID: *id}
		if p.agenda != nil {
			p.agenda.Voting = append(p.agenda.Voting, *id)
		}
	case "kalbetojas":
		p.stack.push(scopeSpeech)
		a := attrsOf(el)
		id := a.integer("klb_id")
		if id == nil {
			dropped(p.logger, name, "klb_id", a)
			return nil
		}
		person := a.integer("asm_id")
		if _, ok := a["asm_id"]; !ok {
			person = a.integer("pran_id")
		}
		p.speech = &crawler.Speech{ID: *id, DiscussionID: a.integer("diskus_id"), PersonID: person}
		if p.agenda != nil {
			p.agenda.Speeches = append(p.agenda.Speeches, *id)
		}
	case "registracija":
		p.stack.push(scopeRegistration)
		a := attrsOf(el)
		id := a.integer("reg_id")
		if id == nil {
			dropped(p.logger, name, "reg_id", a)
			return nil
		}
		p.registration = &crawler.Registration{ID: *id}
		if p.meeting != nil {
			p.meeting.Registrations = append(p.meeting.Registrations, *id)
		}
	}
	return nil
}

func (p *meetingDataParser) text(element, data string) {
	handled := false
	switch p.stack.top() {
	case scopeMeetingData:
		if m := p.meeting; m != nil {
			handled = true
			switch element {
			case "pradzia":
				m.From = parseTime(secondLayout, data)
			case "pabaiga":
				m.To = parseTime(secondLayout, data)
			default:
				handled = false
			}
		}
	case scopeAgendaItem:
		if a := p.agenda; a != nil {
			handled = true
			switch element {
			case "nr":
				a.Nr = strPtr(data)
			case "pavadinimas":
				a.Name = strPtr(data)
			case "stadija":
				a.State = strPtr(data)
			case "tipas":
				a.Type = strPtr(data)
			case "nuo":
				a.From = parseTime(secondLayout, data)
			case "iki":
				a.To = parseTime(secondLayout, data)
			default:
				handled = false
			}
		}
	case scopeVote:
		if v := p.vote; v != nil {
			handled = true
			switch element {
			case "aprasas":
				v.Summary = strPtr(data)
			case "antraste":
				v.Result = strPtr(data)
			case "nuo":
				v.From = parseTime(secondLayout, data)
			case "iki":
				v.To = parseTime(secondLayout, data)
			default:
				handled = false
			}
		}
	case scopeSpeech:
		if s := p.speech; s != nil {
			handled = true
			switch element {
			case "asmuo":
				s.Person = strPtr(data)
			case "pareigos":
				s.Office = strPtr(data)
			case "nuo":
				s.From = parseTime(secondLayout, data)
			case "iki":
				s.To = parseTime(secondLayout, data)
			default:
				handled = false
			}
		}
	case scopeRegistration:
		if r := p.registration; r != nil {
			handled = true
			switch element {
			case "antraste":
				r.Result = strPtr(data)
			case "nuo":
				r.From = parseTime(secondLayout, data)
			case "iki":
				r.To = parseTime(secondLayout, data)
			default:
				handled = false
			}
		}
	}
	if !handled {
		p.logger.Debug("unrouted text",
			zap.Stringer("scope", p.stack.top()),
			zap.String("element", element),
		)
	}
}

func (p *meetingDataParser) end(ctx context.Context, name string) error {
	var err error
	switch name {
	case "posedis":
		p.stack.pop()
		if rec := p.meeting; rec != nil {
			p.meeting = nil
			_, err = p.w.UpsertMeetingData(ctx, *rec)
		}
	case "darbotvarkes-klausimas":
		p.stack.pop()
		if rec := p.agenda; rec != nil {
			p.agenda = nil
			_, err = p.w.UpsertAgendaItem(ctx, *rec)
		}
	case "balsavimas":
		p.stack.pop()
		if rec := p.vote; rec != nil {
			p.vote = nil
			_, err = p.w.UpsertVote(ctx, *rec)
		}
	case "kalbetojas":
		p.stack.pop()
		if rec := p.speech; rec != nil {
			p.speech = nil
			_, err = p.w.UpsertSpeech(ctx, *rec)
		}
	case "registracija":
		p.stack.pop()
		if rec := p.registration; rec != nil {
			p.registration = nil
			_, err = p.w.UpsertRegistration(ctx, *rec)
		}
	}
	return err
}
