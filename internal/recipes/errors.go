package recipes

import "errors"

// Sentinel errors for recipe resolution. Callers should use errors.Is to check.
var (
	// ErrFetchFailed indicates the remote recipe could not be retrieved or persisted.
	ErrFetchFailed = errors.New("recipes: fetch failed")
	// ErrHTTPStatus indicates a non-2xx response from the recipe host.
	ErrHTTPStatus = errors.New("recipes: unexpected HTTP status")
	// ErrInvalidReference indicates an oumi:// reference whose relative path is unusable.
	ErrInvalidReference = errors.New("recipes: invalid reference")
)
