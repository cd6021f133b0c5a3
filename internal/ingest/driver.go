// Package ingest decodes the Seimas XML feeds in a single forward pass and writes
// each record to the store as soon as its closing tag is seen.
//
// Every feed is handled by a small state machine: a stack of scopes tells which
// in-progress record character data belongs to, grouping elements only remember
// an outer id for their descendants, and child ids are appended to the enclosing
// record when the child opens.
package ingest

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/2448334/seimas-scraper/internal/crawler"
)

// Timestamp layouts used by the feeds.
const (
	dateLayout   = "2006-01-02"
	minuteLayout = "2006-01-02 15:04"
	secondLayout = "2006-01-02 15:04:05"
)

// scope names the record that character data currently belongs to.
type scope int

const (
	scopeNone scope = iota
	scopeMeetingData
	scopeAgendaItem
	scopeVote
	scopeSpeech
	scopeRegistration
)

func (s scope) String() string {
	switch s {
	case scopeMeetingData:
		return "meeting_data"
	case scopeAgendaItem:
		return "agenda_item"
	case scopeVote:
		return "vote"
	case scopeSpeech:
		return "speech"
	case scopeRegistration:
		return "registration"
	default:
		return "none"
	}
}

// scopes is the stack of open record scopes.
type scopes []scope

func (s *scopes) push(v scope) { *s = append(*s, v) }

func (s *scopes) pop() {
	if n := len(*s); n > 0 {
		*s = (*s)[:n-1]
	}
}

func (s scopes) top() scope {
	if len(s) == 0 {
		return scopeNone
	}
	return s[len(s)-1]
}

// handler is the per-feed state machine fed by walk.
type handler interface {
	start(ctx context.Context, el xml.StartElement) error
	text(element, data string)
	end(ctx context.Context, name string) error
}

// walk drives h over the token stream of r. The text of an element is delivered once,
// before its first child opens or when it closes; whitespace-only runs are dropped and
// text after a child element has closed is ignored.
func walk(ctx context.Context, r io.Reader, h handler) error {
	dec := xml.NewDecoder(r)
	// Bodies arrive already decoded to UTF-8 whatever the prolog declares.
	dec.CharsetReader = func(_ string, in io.Reader) (io.Reader, error) { return in, nil }

	var (
		current string
		buf     strings.Builder
	)
	flush := func() {
		if current != "" && strings.TrimSpace(buf.String()) != "" {
			h.text(current, buf.String())
		}
		buf.Reset()
	}
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("%w: %w", crawler.ErrDecode, err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if err := ctx.Err(); err != nil {
				return err
			}
			flush()
			current = t.Name.Local
			if err := h.start(ctx, t); err != nil {
				return err
			}
		case xml.CharData:
			if current != "" {
				buf.Write(t)
			}
		case xml.EndElement:
			flush()
			current = ""
			if err := h.end(ctx, t.Name.Local); err != nil {
				return err
			}
		}
	}
}

// attrs is the attribute map of one start tag keyed by local name.
type attrs map[string]string

func attrsOf(el xml.StartElement) attrs {
	a := make(attrs, len(el.Attr))
	for _, at := range el.Attr {
		a[at.Name.Local] = at.Value
	}
	return a
}

// str returns the attribute value, or nil when the attribute is absent.
func (a attrs) str(name string) *string {
	v, ok := a[name]
	if !ok {
		return nil
	}
	return &v
}

func (a attrs) integer(name string) *int32 {
	v, ok := a[name]
	if !ok {
		return nil
	}
	return parseInt32(v)
}

func (a attrs) timestamp(name, layout string) *time.Time {
	v, ok := a[name]
	if !ok {
		return nil
	}
	return parseTime(layout, v)
}

func parseInt32(s string) *int32 {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 32)
	if err != nil {
		return nil
	}
	v := int32(n)
	return &v
}

// parseTime returns nil for anything that does not match layout.
func parseTime(layout, s string) *time.Time {
	t, err := time.Parse(layout, strings.TrimSpace(s))
	if err != nil {
		return nil
	}
	return &t
}

func strPtr(s string) *string { return &s }

// dropped logs a record that cannot be written because a required field is missing.
func dropped(logger *zap.Logger, element string, missing string, a attrs) {
	logger.Warn("record dropped",
		zap.String("element", element),
		zap.String("missing", missing),
		zap.Any("attributes", map[string]string(a)),
	)
}
