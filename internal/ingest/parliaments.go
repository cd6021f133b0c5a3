package ingest

import (
	"context"
	"encoding/xml"

	"go.uber.org/zap"

	"github.com/2448334/seimas-scraper/internal/crawler"
)

type parliamentParser struct {
	w      crawler.RecordWriter
	logger *zap.Logger
	cur    *crawler.Parliament
}

func (p *parliamentParser) start(_ context.Context, el xml.StartElement) error {
	if el.Name.Local != "SeimoKadencija" {
		return nil
	}
	a := attrsOf(el)
	id := a.integer("kadencijos_id")
	if id == nil {
		dropped(p.logger, el.Name.Local, "kadencijos_id", a)
		return nil
	}
	p.cur = &crawler.Parliament{
		ID:   *id,
		Name: a.str("pavadinimas"),
		From: a.timestamp("data_nuo", dateLayout),
		To:   a.timestamp("data_iki", dateLayout),
	}
	return nil
}

func (p *parliamentParser) text(string, string) {}

func (p *parliamentParser) end(ctx context.Context, name string) error {
	if name != "SeimoKadencija" {
		return nil
	}
	if p.cur == nil {
		return nil
	}
	rec := *p.cur
	p.cur = nil
	_, err := p.w.UpsertParliament(ctx, rec)
	return err
}
