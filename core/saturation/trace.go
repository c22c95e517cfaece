package saturation

import (
	"errors"
	"log/slog"

	"github.com/gobwas/glob"
)

// ErrInvalidTracePattern is returned when a trace pattern does not compile.
var ErrInvalidTracePattern = errors.New("invalid trace pattern")

// Tracer logs the conclusions inserted into contexts whose root matches one
// of the configured glob patterns. A nil Tracer traces nothing.
type Tracer struct {
	logger   *slog.Logger
	patterns []glob.Glob
}

// NewTracer compiles the patterns. It returns nil when there are none.
func NewTracer(patterns []string, logger *slog.Logger) (*Tracer, error) {
	if len(patterns) == 0 {
		return nil, nil
	}
	if logger == nil {
		logger = slog.Default()
	}
	compiled := make([]glob.Glob, 0, len(patterns))
	for _, pattern := range patterns {
		g, err := glob.Compile(pattern)
		if err != nil {
			return nil, errors.Join(ErrInvalidTracePattern, err)
		}
		compiled = append(compiled, g)
	}
	return &Tracer{logger: logger, patterns: compiled}, nil
}

// Matches reports whether conclusions of the context are traced.
func (t *Tracer) Matches(c *Context) bool {
	if t == nil {
		return false
	}
	name := c.root.String()
	for _, g := range t.patterns {
		if g.Match(name) {
			return true
		}
	}
	return false
}

func (t *Tracer) inserted(c *Context, cl Conclusion) {
	if !t.Matches(c) {
		return
	}
	t.logger.Debug("conclusion inserted",
		"context", c.root.String(),
		"kind", cl.kind.String(),
		"conclusion", cl.String(),
	)
}
