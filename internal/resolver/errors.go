package resolver

import "errors"

// Degradation causes. Only ErrMalformedInput ever leaves ResolveBatch; the
// others end up in logs and in per-item status.
var (
	ErrCatalogUnavailable  = errors.New("catalog unavailable")
	ErrBridgeUnavailable   = errors.New("terminology bridge unavailable")
	ErrSemanticUnavailable = errors.New("semantic normalizer unavailable")
	ErrMalformedInput      = errors.New("malformed input")
)
