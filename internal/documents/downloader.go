// Package documents materializes meeting protocols and stenograms as plain text.
//
// A document is downloaded as ODT, converted in a scratch directory, and stored as
// <name>.txt in the blob store. The presence of that object is the only cache key:
// a document that exists is never fetched again.
package documents

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/2448334/seimas-scraper/internal/crawler"
	"github.com/2448334/seimas-scraper/internal/metrics"
)

// DefaultSourceURL is the e-seimas ODT export; %s is the document id.
const DefaultSourceURL = "https://e-seimas.lrs.lt/rs/legalact/TAK/%s/format/OO3_ODT/"

// misencodedSoftHyphen is U+00AD read as Latin-1 and re-encoded, as found in stenograms.
const misencodedSoftHyphen = "Â­"

// Config controls where documents come from and where conversion happens.
type Config struct {
	SourceURL string
	// ScratchDir holds downloads during conversion; empty uses the OS temp dir.
	ScratchDir string
}

// Downloader implements crawler.DocumentFetcher.
type Downloader struct {
	cfg       Config
	fetcher   crawler.BytesFetcher
	blobs     crawler.BlobStore
	converter Converter
	logger    *zap.Logger
}

var _ crawler.DocumentFetcher = (*Downloader)(nil)

// New creates a Downloader.
func New(cfg Config, fetcher crawler.BytesFetcher, blobs crawler.BlobStore, converter Converter, logger *zap.Logger) (*Downloader, error) {
	if fetcher == nil || blobs == nil || converter == nil {
		return nil, errors.New("documents: fetcher, blob store and converter are required")
	}
	if cfg.SourceURL == "" {
		cfg.SourceURL = DefaultSourceURL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Downloader{
		cfg:       cfg,
		fetcher:   fetcher,
		blobs:     blobs,
		converter: converter,
		logger:    logger.Named("documents"),
	}, nil
}

// LocalName is the stored name of ref without extension: {kind}_{session}_{num}_{docid}.
func LocalName(ref crawler.DocumentRef) string {
	return fmt.Sprintf("%s_%d_%d_%s", ref.Kind, ref.SessionID, ref.MeetingNum, DocumentID(ref.Link))
}

// DocumentID is the last path segment of a document link.
func DocumentID(link string) string {
	trimmed := strings.TrimRight(link, "/")
	if i := strings.IndexAny(trimmed, "?#"); i >= 0 {
		trimmed = trimmed[:i]
	}
	return path.Base(trimmed)
}

// FetchDocument materializes the document ref points at.
func (d *Downloader) FetchDocument(ctx context.Context, ref crawler.DocumentRef) (bool, error) {
	return d.fetch(ctx, DocumentID(ref.Link), LocalName(ref), ref.Kind)
}

// Fetch materializes remoteID as localName.txt. It reports false when the text already
// exists. A failed conversion is logged and still reports true.
func (d *Downloader) Fetch(ctx context.Context, remoteID, localName string) (bool, error) {
	kind := crawler.DocumentProtocol
	if strings.HasPrefix(localName, string(crawler.DocumentStenogram)) {
		kind = crawler.DocumentStenogram
	}
	return d.fetch(ctx, remoteID, localName, kind)
}

func (d *Downloader) fetch(ctx context.Context, remoteID, localName string, kind crawler.DocumentKind) (bool, error) {
	target := localName + ".txt"
	logger := d.logger.With(zap.String("document", localName))

	exists, err := d.blobs.Exists(ctx, target)
	if err != nil {
		metrics.ObserveDocument(string(kind), metrics.DocumentFailed)
		return false, fmt.Errorf("check %s: %w", target, err)
	}
	if exists {
		metrics.ObserveDocument(string(kind), metrics.DocumentPresent)
		return false, nil
	}

	data, err := d.fetcher.FetchBytes(ctx, fmt.Sprintf(d.cfg.SourceURL, remoteID))
	if err != nil {
		metrics.ObserveDocument(string(kind), metrics.DocumentFailed)
		return false, err
	}

	text, err := d.convert(ctx, localName, data)
	if err != nil {
		metrics.ObserveDocument(string(kind), metrics.DocumentFailed)
		if errors.Is(err, crawler.ErrConversion) {
			logger.Warn("document conversion failed", zap.Error(err))
			return true, nil
		}
		return false, err
	}
	if kind == crawler.DocumentStenogram {
		text = bytes.ReplaceAll(text, []byte(misencodedSoftHyphen), nil)
	}

	location, err := d.blobs.PutObject(ctx, target, "text/plain; charset=utf-8", bytes.NewReader(text))
	if err != nil {
		metrics.ObserveDocument(string(kind), metrics.DocumentFailed)
		return false, fmt.Errorf("store %s: %w", target, err)
	}
	metrics.ObserveDocument(string(kind), metrics.DocumentDownloaded)
	logger.Info("document stored", zap.String("location", location), zap.Int("bytes", len(text)))
	return true, nil
}

// convert writes the ODT into a fresh scratch directory and returns the converted text.
func (d *Downloader) convert(ctx context.Context, localName string, odt []byte) ([]byte, error) {
	dir, err := os.MkdirTemp(d.cfg.ScratchDir, "seimas-doc-*")
	if err != nil {
		return nil, fmt.Errorf("create scratch dir: %w", err)
	}
	defer func() { _ = os.RemoveAll(dir) }()

	src := filepath.Join(dir, localName+".odt")
	if err := os.WriteFile(src, odt, 0o600); err != nil {
		return nil, fmt.Errorf("write %s: %w", src, err)
	}
	out, err := d.converter.Convert(ctx, src, dir)
	if err != nil {
		return nil, err
	}
	text, err := os.ReadFile(out)
	if err != nil {
		return nil, fmt.Errorf("%w: read converted %s: %w", crawler.ErrConversion, out, err)
	}
	return text, nil
}
