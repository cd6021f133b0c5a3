// Package memory keeps stage reports in process, for local runs and tests.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/2448334/seimas-scraper/internal/crawler"
)

// Publisher stores published reports for inspection.
type Publisher struct {
	mu      sync.RWMutex
	reports []crawler.StageReport
}

var _ crawler.Publisher = (*Publisher)(nil)

// New returns a memory Publisher.
func New() *Publisher {
	return &Publisher{}
}

// Publish records the report and returns a pseudo message id.
func (p *Publisher) Publish(_ context.Context, report crawler.StageReport) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reports = append(p.reports, report)
	return fmt.Sprintf("memory-%d", len(p.reports)), nil
}

// Reports returns a copy of the recorded reports in publish order.
func (p *Publisher) Reports() []crawler.StageReport {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]crawler.StageReport, len(p.reports))
	copy(out, p.reports)
	return out
}
