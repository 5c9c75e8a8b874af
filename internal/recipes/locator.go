// Package recipes resolves configuration references to local files.
//
// A reference is either a filesystem path, returned as is, or an oumi:// URI naming a recipe
// relative to the upstream recipes directory. Recipes are downloaded into a cache root and
// refreshed on every resolution.
package recipes

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/Spaarsh/oumi/internal/logger"
)

const (
	// Scheme prefixes remote recipe references.
	Scheme = "oumi://"
	// DefaultBaseURL is where oumi:// references are fetched from.
	DefaultBaseURL = "https://raw.githubusercontent.com/oumi-ai/oumi/main/configs/recipes"
	// EnvDir overrides the default cache root.
	EnvDir = "OUMI_DIR"
)

var recipeExtensions = []string{".yaml", ".yml"}

// IsRemote reports whether ref uses the oumi:// scheme.
func IsRemote(ref string) bool {
	return strings.HasPrefix(ref, Scheme)
}

// DefaultDir returns ~/.oumi/configs.
func DefaultDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, ".oumi", "configs"), nil
}

// CacheRoot picks the directory recipes are stored under:
// override, then $OUMI_DIR, then DefaultDir.
func CacheRoot(override string) (string, error) {
	if dir := strings.TrimSpace(override); dir != "" {
		return expandHome(dir)
	}
	if dir := strings.TrimSpace(os.Getenv(EnvDir)); dir != "" {
		return expandHome(dir)
	}
	return DefaultDir()
}

func expandHome(p string) (string, error) {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return filepath.Clean(p), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, strings.TrimPrefix(p[1:], "/")), nil
}

// ResolvePrefix splits an oumi:// reference into its relative recipe path and the cache root
// it resolves against. The local file is filepath.Join(root, filepath.FromSlash(rel)).
func ResolvePrefix(ref, override string) (rel string, root string, err error) {
	if !IsRemote(ref) {
		return "", "", fmt.Errorf("%w: %q does not start with %s", ErrInvalidReference, ref, Scheme)
	}
	rel, err = cleanRelative(strings.TrimPrefix(ref, Scheme))
	if err != nil {
		return "", "", err
	}
	root, err = CacheRoot(override)
	if err != nil {
		return "", "", err
	}
	return rel, root, nil
}

func cleanRelative(rel string) (string, error) {
	if rel == "" {
		return "", fmt.Errorf("%w: empty recipe path", ErrInvalidReference)
	}
	if strings.HasPrefix(rel, "/") || strings.Contains(rel, `\`) {
		return "", fmt.Errorf("%w: %q must be a relative slash-separated path", ErrInvalidReference, rel)
	}
	for _, seg := range strings.Split(rel, "/") {
		switch seg {
		case "..":
			return "", fmt.Errorf("%w: %q escapes the recipes directory", ErrInvalidReference, rel)
		case ".":
			return "", fmt.Errorf("%w: %q contains a \".\" segment", ErrInvalidReference, rel)
		}
	}
	cleaned := path.Clean(rel)
	ext := strings.ToLower(path.Ext(cleaned))
	if len(path.Base(cleaned)) == len(ext) {
		return "", fmt.Errorf("%w: %q has no file name", ErrInvalidReference, rel)
	}
	for _, allowed := range recipeExtensions {
		if ext == allowed {
			return cleaned, nil
		}
	}
	return "", fmt.Errorf("%w: %q is not a YAML recipe", ErrInvalidReference, rel)
}

// Locator resolves configuration references, fetching remote recipes into the cache root.
type Locator struct {
	fetcher Fetcher
	baseURL string
}

// LocatorOption configures a Locator.
type LocatorOption func(*Locator)

// WithFetcher replaces the default HTTPFetcher.
func WithFetcher(f Fetcher) LocatorOption {
	return func(l *Locator) {
		if f != nil {
			l.fetcher = f
		}
	}
}

// WithBaseURL changes where recipes are downloaded from. Empty keeps DefaultBaseURL.
func WithBaseURL(u string) LocatorOption {
	return func(l *Locator) {
		if u = strings.TrimSuffix(strings.TrimSpace(u), "/"); u != "" {
			l.baseURL = u
		}
	}
}

// NewLocator creates a Locator backed by an HTTPFetcher and DefaultBaseURL unless overridden.
func NewLocator(opts ...LocatorOption) *Locator {
	l := &Locator{
		fetcher: NewHTTPFetcher(),
		baseURL: DefaultBaseURL,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// URL returns the download location of a relative recipe path.
func (l *Locator) URL(rel string) string {
	return l.baseURL + "/" + rel
}

// Resolve returns a local path for ref. Non-remote references come back unchanged and are not
// checked for existence. Remote references are downloaded on every call, overwriting the cached
// copy, and the cached path is returned.
func (l *Locator) Resolve(ctx context.Context, ref, override string) (string, error) {
	if !IsRemote(ref) {
		return ref, nil
	}
	rel, root, err := ResolvePrefix(ref, override)
	if err != nil {
		return "", err
	}
	dest := filepath.Join(root, filepath.FromSlash(rel))
	src := l.URL(rel)

	log := logger.FromContext(ctx)
	log.Debug("fetching recipe", "url", src, "path", dest)
	if err := l.fetcher.Save(ctx, src, dest); err != nil {
		return "", err
	}
	log.Info("recipe saved", "path", dest)
	return dest, nil
}
