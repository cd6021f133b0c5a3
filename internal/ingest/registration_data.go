package ingest

import (
	"context"
	"encoding/xml"

	"go.uber.org/zap"

	"github.com/2448334/seimas-scraper/internal/crawler"
)

type registrationDataParser struct {
	w              crawler.RecordWriter
	logger         *zap.Logger
	registrationID *int32
	cur            *crawler.RegistrationData
}

func (p *registrationDataParser) start(_ context.Context, el xml.StartElement) error {
	a := attrsOf(el)
	switch el.Name.Local {
	case "SeimoNariųRegistracija":
		p.registrationID = a.integer("registracijos_id")
	case "IndividualusRegistracijosRezultatas":
		person := a.integer("asmens_id")
		switch {
		case person == nil:
			dropped(p.logger, el.Name.Local, "asmens_id", a)
			return nil
		case p.registrationID == nil:
			dropped(p.logger, el.Name.Local, "registracijos_id", a)
			return nil
		}
		p.cur = &crawler.RegistrationData{
			ID:         *p.registrationID,
			PersonID:   *person,
			Registered: registered(a["ar_registravosi"]),
		}
	}
	return nil
}

func (p *registrationDataParser) text(string, string) {}

func (p *registrationDataParser) end(ctx context.Context, name string) error {
	switch name {
	case "SeimoNariųRegistracija":
		p.registrationID = nil
	case "IndividualusRegistracijosRezultatas":
		if p.cur == nil {
			return nil
		}
		rec := *p.cur
		p.cur = nil
		if _, err := p.w.UpsertRegistrationData(ctx, rec); err != nil {
			return err
		}
	}
	return nil
}

func registered(s string) *bool {
	var b bool
	switch s {
	case "Taip":
		b = true
	case "Ne":
		b = false
	default:
		return nil
	}
	return &b
}
