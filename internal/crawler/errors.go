package crawler

import "errors"

// Error categories surfaced by fetch tasks. Concrete errors wrap one of these,
// so callers classify with errors.Is.
var (
	// ErrTransport covers malformed URLs, network failures and non-success statuses.
	ErrTransport = errors.New("transport error")
	// ErrDecode marks a malformed feed that aborted a parse pass.
	ErrDecode = errors.New("decode error")
	// ErrStore marks a database failure that is not an idempotent conflict.
	ErrStore = errors.New("store error")
	// ErrConversion marks a failed external document conversion.
	ErrConversion = errors.New("conversion error")
)
