package store

import "errors"

// ErrNotFound is the sentinel for a URL with no registry row. GetStore does
// not return it; it reports an unknown URL as a nil *types.Store.
var ErrNotFound = errors.New("store: url not found in registry")
