package backends

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"editguard/internal/adapter"
	"editguard/internal/config"
	"editguard/internal/store"
)

// Backend types.
const (
	TypeMemory  = "memory"
	TypeJournal = "journal"
)

// New builds the adapter described by cfg. st may be nil unless cfg needs it.
func New(cfg config.BackendConfig, st *store.Store, l *zap.Logger) (adapter.Adapter, error) {
	switch cfg.Type {
	case TypeMemory:
		return NewMemory(cfg.Name, l), nil
	case TypeJournal:
		if st == nil {
			return nil, fmt.Errorf("backend %s: journal needs store.enabled", cfg.Name)
		}
		return NewJournal(cfg.Name, st, l), nil
	}
	return nil, fmt.Errorf("backend %s: unknown type %q", cfg.Name, cfg.Type)
}

// RegisterAll builds and registers each backend with r.
func RegisterAll(ctx context.Context, r *adapter.Router, backends []config.BackendConfig, st *store.Store, l *zap.Logger) error {
	for _, b := range backends {
		a, err := New(b, st, l)
		if err != nil {
			return err
		}
		var settings json.RawMessage
		if len(b.Settings) > 0 {
			if settings, err = json.Marshal(b.Settings); err != nil {
				return fmt.Errorf("backend %s settings: %w", b.Name, err)
			}
		}
		if err := r.Register(ctx, a, b.Priority, settings); err != nil {
			return err
		}
	}
	return nil
}
