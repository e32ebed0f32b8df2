// Package intake validates incoming correction requests.
package intake

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kaptinlin/jsonschema"

	"editguard/internal/faults"
)

//go:embed schema/request.schema.json
var requestSchema []byte

var (
	ErrSchema         = errors.New("request does not match schema")
	ErrEmptyField     = errors.New("required field is empty")
	ErrTextTooLong    = errors.New("source text too long")
	ErrBadPreferences = errors.New("invalid preferences")
)

// Preferences tune dispatch for one request.
type Preferences struct {
	PreferredBackends []string `json:"preferred_backends,omitempty"`
	FallbackPolicy    string   `json:"fallback_policy,omitempty"`
	Timeout           string   `json:"timeout,omitempty"`
}

// Request is one correction request.
type Request struct {
	ID           string            `json:"id,omitempty"`
	Timestamp    time.Time         `json:"timestamp"`
	SessionID    string            `json:"session_id,omitempty"`
	Instructions string            `json:"instructions"`
	SourceText   string            `json:"source_text"`
	ModeID       string            `json:"mode_id,omitempty"`
	Context      map[string]string `json:"context,omitempty"`
	Preferences  Preferences       `json:"preferences,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

// Limits are the request checks that come from configuration.
type Limits struct {
	DefaultMode   string
	MaxTextLength int // runes; 0 means unlimited
	Now           func() time.Time
}

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

func compiled() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		compiler.AssertFormat = true
		schema, schemaErr = compiler.Compile(requestSchema)
	})
	return schema, schemaErr
}

// Parse checks data against the request schema, decodes it and applies
// Validate.
func Parse(data []byte, limits Limits) (Request, error) {
	s, err := compiled()
	if err != nil {
		return Request{}, faults.Wrap(fmt.Errorf("compile request schema: %w", err), faults.CategoryInternalFailure, "schema_compile", "", false)
	}
	if result := s.ValidateJSON(data); !result.IsValid() {
		return Request{}, invalid(fmt.Errorf("%w: %v", ErrSchema, result.Errors), "schema_mismatch")
	}
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return Request{}, invalid(fmt.Errorf("%w: %v", ErrSchema, err), "schema_mismatch")
	}
	if err := Validate(&req, limits); err != nil {
		return Request{}, err
	}
	return req, nil
}

// Validate trims and checks req in place, filling the id, timestamp and
// mode id when absent.
func Validate(req *Request, limits Limits) error {
	req.Instructions = strings.TrimSpace(req.Instructions)
	req.ModeID = strings.TrimSpace(req.ModeID)
	if req.Instructions == "" {
		return invalid(fmt.Errorf("%w: instructions", ErrEmptyField), "empty_instructions")
	}
	if strings.TrimSpace(req.SourceText) == "" {
		return invalid(fmt.Errorf("%w: source_text", ErrEmptyField), "empty_source_text")
	}
	if limits.MaxTextLength > 0 {
		if n := len([]rune(req.SourceText)); n > limits.MaxTextLength {
			return invalid(fmt.Errorf("%w: %d runes, limit %d", ErrTextTooLong, n, limits.MaxTextLength), "text_too_long")
		}
	}
	if t := req.Preferences.Timeout; t != "" {
		if d, err := time.ParseDuration(t); err != nil || d <= 0 {
			return invalid(fmt.Errorf("%w: timeout %q", ErrBadPreferences, t), "bad_timeout")
		}
	}
	if req.ModeID == "" {
		req.ModeID = limits.DefaultMode
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	if req.Timestamp.IsZero() {
		now := time.Now
		if limits.Now != nil {
			now = limits.Now
		}
		req.Timestamp = now().UTC()
	}
	return nil
}

// TimeoutDuration returns the preferred timeout, or zero when none is set.
func (p Preferences) TimeoutDuration() time.Duration {
	d, err := time.ParseDuration(p.Timeout)
	if err != nil {
		return 0
	}
	return d
}

func invalid(err error, code string) error {
	return faults.Wrap(err, faults.CategoryInvalidInput, code, "", false)
}
