package mode

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"editguard/internal/constraint"
	"editguard/internal/faults"
	"editguard/internal/logging"
	"editguard/internal/rules"
)

var (
	ErrUnknownMode = errors.New("unknown mode")
	ErrInvalidMode = errors.New("invalid mode")
)

type cached struct {
	digest      string
	constraints []constraint.Constraint
	dropped     []constraint.Warning
}

// CacheStats counts compiled-constraint cache lookups.
type CacheStats struct {
	Hits   int `json:"hits"`
	Misses int `json:"misses"`
}

// Registry is safe for concurrent use.
type Registry struct {
	logger *zap.Logger

	mu    sync.RWMutex
	modes map[string]Mode
	cache map[string]cached
	stats CacheStats
}

// NewRegistry creates an empty registry.
func NewRegistry(l *zap.Logger) *Registry {
	return &Registry{
		logger: logging.For(l, logging.CategoryMode),
		modes:  make(map[string]Mode),
		cache:  make(map[string]cached),
	}
}

// Register adds or replaces a mode.
func (r *Registry) Register(m Mode) error {
	if m.ID == "" {
		return faults.Wrap(fmt.Errorf("%w: empty id", ErrInvalidMode), faults.CategoryInvalidInput, "invalid_mode", "", false)
	}
	if len(m.Constraints) == 0 && len(m.RuleTexts()) == 0 {
		return faults.Wrap(fmt.Errorf("%w: %s has neither rules nor constraints", ErrInvalidMode, m.ID),
			faults.CategoryInvalidInput, "invalid_mode", "", false)
	}
	r.mu.Lock()
	r.modes[m.ID] = m
	r.mu.Unlock()
	r.logger.Debug("mode registered", zap.String("mode", m.ID), zap.String("version", m.Version))
	return nil
}

// Get returns the mode with id. Unknown ids are fatal for the request.
func (r *Registry) Get(id string) (Mode, error) {
	r.mu.RLock()
	m, ok := r.modes[id]
	r.mu.RUnlock()
	if !ok {
		return Mode{}, faults.Wrap(fmt.Errorf("%w: %q", ErrUnknownMode, id), faults.CategoryUnknownMode,
			"unknown_mode", "list modes with `editguard modes`", false)
	}
	return m, nil
}

// List returns every mode sorted by id.
func (r *Registry) List() []Mode {
	r.mu.RLock()
	out := make([]Mode, 0, len(r.modes))
	for _, m := range r.modes {
		out = append(out, m)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Stats returns cache counters.
func (r *Registry) Stats() CacheStats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.stats
}

// Ruleset builds a fresh ruleset for mode id. Pre-compiled constraints are
// used verbatim; otherwise the rules are compiled once per mode digest and
// the constraints reused on later calls.
func (r *Registry) Ruleset(ctx context.Context, id string, c *constraint.Compiler, opts constraint.Options) (*constraint.Ruleset, []constraint.Warning, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	m, err := r.Get(id)
	if err != nil {
		return nil, nil, err
	}
	if len(m.Constraints) > 0 {
		return c.Assemble(m.Constraints, opts)
	}

	digest, err := m.Digest()
	if err != nil {
		return nil, nil, faults.Wrap(err, faults.CategoryInternalFailure, "digest_failed", "", false)
	}

	r.mu.Lock()
	hit, ok := r.cache[id]
	if ok && hit.digest == digest {
		r.stats.Hits++
		r.mu.Unlock()
		rs, warnings, err := c.Assemble(hit.constraints, opts)
		return rs, append(append([]constraint.Warning(nil), hit.dropped...), warnings...), err
	}
	r.stats.Misses++
	r.mu.Unlock()

	rs, warnings, err := c.Compile(rules.ParseAll(m.RuleTexts()), opts)
	if err != nil {
		return nil, warnings, err
	}
	var dropped []constraint.Warning
	for _, w := range warnings {
		if w.Code == constraint.WarnDroppedRule {
			dropped = append(dropped, w)
		}
	}

	r.mu.Lock()
	r.cache[id] = cached{digest: digest, constraints: rs.Constraints, dropped: dropped}
	r.mu.Unlock()
	r.logger.Debug("mode compiled", zap.String("mode", id), zap.Int("constraints", len(rs.Constraints)), zap.String("digest", digest))
	return rs, warnings, nil
}
