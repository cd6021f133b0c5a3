package documents

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/2448334/seimas-scraper/internal/crawler"
)

// Converter turns an office document into plain text and returns the path of the text file.
type Converter interface {
	Convert(ctx context.Context, src, outDir string) (string, error)
}

// LibreOffice converts documents with a headless LibreOffice install.
type LibreOffice struct {
	// Binary defaults to "libreoffice".
	Binary  string
	Timeout time.Duration
}

// Convert runs `libreoffice --headless --convert-to txt <src> --outdir <outDir>`.
func (l LibreOffice) Convert(ctx context.Context, src, outDir string) (string, error) {
	bin := l.Binary
	if bin == "" {
		bin = "libreoffice"
	}
	if l.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.Timeout)
		defer cancel()
	}
	cmd := exec.CommandContext(ctx, bin, "--headless", "--convert-to", "txt", src, "--outdir", outDir)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("%w: %s %s: %w: %s", crawler.ErrConversion, bin, filepath.Base(src), err, strings.TrimSpace(string(out)))
	}
	return filepath.Join(outDir, strings.TrimSuffix(filepath.Base(src), filepath.Ext(src))+".txt"), nil
}
