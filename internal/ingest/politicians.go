package ingest

import (
	"context"
	"encoding/xml"

	"go.uber.org/zap"

	"github.com/2448334/seimas-scraper/internal/crawler"
)

// Contact kinds used by the Kontaktai element.
const (
	contactEmail   = "El. p."
	contactPhone   = "Darbo telefonas"
	contactWebsite = "Asmeninė interneto svetainė"
)

// politicianParser handles SeimoKadencija groups holding SeimoNarys records. Offices
// (Pareigos) are written as soon as they open so their generated ids can be attached
// to the member before it closes.
type politicianParser struct {
	w            crawler.RecordWriter
	logger       *zap.Logger
	parliamentID *int32
	cur          *crawler.Politician
}

func (p *politicianParser) start(ctx context.Context, el xml.StartElement) error {
	name := el.Name.Local
	a := attrsOf(el)
	switch name {
	case "SeimoKadencija":
		p.parliamentID = a.integer("kadencijos_id")
	case "SeimoNarys":
		id, first, last := a.integer("asmens_id"), a.str("vardas"), a.str("pavardė")
		switch {
		case id == nil:
			dropped(p.logger, name, "asmens_id", a)
			return nil
		case first == nil:
			dropped(p.logger, name, "vardas", a)
			return nil
		case last == nil:
			dropped(p.logger, name, "pavardė", a)
			return nil
		case p.parliamentID == nil:
			dropped(p.logger, name, "kadencijos_id", a)
			return nil
		}
		p.cur = &crawler.Politician{
			ID:            *id,
			Parliament:    *p.parliamentID,
			Name:          *first,
			Surname:       *last,
			Gender:        gender(a["lytis"]),
			From:          a.timestamp("data_nuo", dateLayout),
			To:            a.timestamp("data_iki", dateLayout),
			Party:         a.str("iškėlusi_partija"),
			ElectedType:   a.str("išrinkimo_būdas"),
			BiographyLink: a.str("biografijos_nuoroda"),
			TermCount:     a.integer("kadencijų_skaičius"),
			Phone:         []string{},
			Offices:       []int32{},
		}
	case "Pareigos":
		if p.cur == nil {
			return nil
		}
		office := officeFrom(a)
		stored, err := p.w.UpsertOffice(ctx, office)
		if err != nil {
			return err
		}
		if stored != nil {
			p.cur.Offices = append(p.cur.Offices, stored.ID)
		}
	case "Kontaktai":
		if p.cur == nil {
			return nil
		}
		value := a.str("reikšmė")
		switch kind := a["rūšis"]; kind {
		case contactEmail:
			p.cur.Email = value
		case contactPhone:
			if value != nil {
				p.cur.Phone = append(p.cur.Phone, *value)
			}
		case contactWebsite:
			p.cur.Website = value
		default:
			p.logger.Debug("unknown contact kind", zap.String("kind", kind), zap.Int32("politician", p.cur.ID))
		}
	}
	return nil
}

func (p *politicianParser) text(string, string) {}

func (p *politicianParser) end(ctx context.Context, name string) error {
	switch name {
	case "SeimoKadencija":
		p.parliamentID = nil
	case "SeimoNarys":
		if p.cur == nil {
			return nil
		}
		rec := *p.cur
		p.cur = nil
		if _, err := p.w.UpsertPolitician(ctx, rec); err != nil {
			return err
		}
	}
	return nil
}

// gender maps the feed's lytis codes: V (vyras) is male, M (moteris) is female.
func gender(code string) *crawler.Gender {
	var g crawler.Gender
	switch code {
	case "V":
		g = crawler.GenderMale
	case "M":
		g = crawler.GenderFemale
	default:
		return nil
	}
	return &g
}

// officeFrom builds an office from a Pareigos element. A seat in a Seimas unit carries
// padalinio_* attributes, a parliamentary group parlamentinės_grupės_* ones.
func officeFrom(a attrs) crawler.Office {
	o := crawler.Office{
		Duties: a.str("pareigos"),
		From:   a.timestamp("data_nuo", dateLayout),
		To:     a.timestamp("data_iki", dateLayout),
	}
	var kind crawler.DepartmentType
	switch {
	case a.str("padalinio_id") != nil:
		kind = crawler.DepartmentOffice
		o.DepartmentID = a.integer("padalinio_id")
		o.DepartmentName = a.str("padalinio_pavadinimas")
	case a.str("parlamentinės_grupės_id") != nil:
		kind = crawler.DepartmentGroup
		o.DepartmentID = a.integer("parlamentinės_grupės_id")
		o.DepartmentName = a.str("parlamentinės_grupės_pavadinimas")
	default:
		return o
	}
	o.DepartmentType = &kind
	return o
}
