// Package chain runs an ordered list of request middlewares, merging what each
// one returns into a shared context and stopping at the first error.
//
// Order is policy: a middleware sees only what the middlewares before it
// produced, so verification must come before anything that trusts its output.
package chain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/bmatcuk/doublestar/v4"
)

var (
	ErrNoName             = errors.New("chain: middleware name is required")
	ErrNoHandler          = errors.New("chain: middleware handler is required")
	ErrPathFilterConflict = errors.New("chain: skipPaths and includePaths are mutually exclusive")
)

// Context is created per request and handed to every middleware in turn.
type Context struct {
	Method   string
	Path     string
	Headers  http.Header
	Request  *http.Request
	Body     []byte
	ClientIP string

	// Values holds the merged results of the middlewares that already ran.
	Values map[string]any
}

// Get returns a value merged by an earlier middleware.
func (c *Context) Get(key string) (any, bool) {
	v, ok := c.Values[key]
	return v, ok
}

// Result is merged key by key into Context.Values.
type Result map[string]any

// HandlerFunc returns the middleware's contribution to the shared context.
// A nil Result contributes nothing. A non-nil error stops the chain and is
// returned to the caller as-is.
type HandlerFunc func(ctx context.Context, c *Context) (Result, error)

type Config struct {
	Name string
	// SkipPaths and IncludePaths are doublestar globs matched against the
	// request path. At most one may be set.
	SkipPaths    []string
	IncludePaths []string
	Handler      HandlerFunc
}

type Middleware struct {
	name         string
	skipPaths    []string
	includePaths []string
	handler      HandlerFunc
}

// New validates cfg. Conflicting path filters and malformed globs are
// reported here, never at request time.
func New(cfg Config) (*Middleware, error) {
	if cfg.Name == "" {
		return nil, ErrNoName
	}
	if cfg.Handler == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoHandler, cfg.Name)
	}
	if len(cfg.SkipPaths) > 0 && len(cfg.IncludePaths) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrPathFilterConflict, cfg.Name)
	}

	for _, pattern := range append(append([]string{}, cfg.SkipPaths...), cfg.IncludePaths...) {
		if !doublestar.ValidatePattern(pattern) {
			return nil, fmt.Errorf("chain: middleware %s: invalid path pattern %q", cfg.Name, pattern)
		}
	}

	return &Middleware{
		name:         cfg.Name,
		skipPaths:    cfg.SkipPaths,
		includePaths: cfg.IncludePaths,
		handler:      cfg.Handler,
	}, nil
}

// MustNew is New for statically known configurations.
func MustNew(cfg Config) *Middleware {
	m, err := New(cfg)
	if err != nil {
		panic(err)
	}
	return m
}

func (m *Middleware) Name() string {
	return m.name
}

// Applies reports whether the middleware runs for path.
func (m *Middleware) Applies(path string) bool {
	if len(m.skipPaths) > 0 {
		return !matchAny(m.skipPaths, path)
	}
	if len(m.includePaths) > 0 {
		return matchAny(m.includePaths, path)
	}
	return true
}

func matchAny(patterns []string, path string) bool {
	for _, pattern := range patterns {
		// patterns were validated in New
		if ok, _ := doublestar.Match(pattern, path); ok {
			return true
		}
	}
	return false
}

// Chain executes middlewares strictly in order.
type Chain struct {
	middlewares []*Middleware
}

func NewChain(middlewares ...*Middleware) *Chain {
	return &Chain{middlewares: middlewares}
}

// Use appends middlewares to the end of the chain.
func (c *Chain) Use(middlewares ...*Middleware) {
	c.middlewares = append(c.middlewares, middlewares...)
}

func (c *Chain) Len() int {
	return len(c.middlewares)
}

// Execute runs every applicable middleware against mc and returns the merged
// context. When two middlewares return the same key the later one wins and a
// warning is logged.
func (c *Chain) Execute(ctx context.Context, mc *Context) (map[string]any, error) {
	if mc.Values == nil {
		mc.Values = make(map[string]any)
	}
	owners := make(map[string]string, len(mc.Values))

	for _, m := range c.middlewares {
		if !m.Applies(mc.Path) {
			continue
		}

		result, err := m.handler(ctx, mc)
		if err != nil {
			return mc.Values, err
		}

		for key, value := range result {
			if prev, exists := owners[key]; exists {
				slog.Warn("chain context key overwritten", "key", key, "previous", prev, "middleware", m.name)
			}
			owners[key] = m.name
			mc.Values[key] = value
		}
	}

	return mc.Values, nil
}
