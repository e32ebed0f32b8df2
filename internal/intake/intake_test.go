package intake

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"editguard/internal/faults"
)

var fixed = time.Date(2026, 4, 2, 10, 0, 0, 0, time.UTC)

func limits() Limits {
	return Limits{DefaultMode: "grammar", MaxTextLength: 50, Now: func() time.Time { return fixed }}
}

func TestParse_Valid(t *testing.T) {
	req, err := Parse([]byte(`{
		"instructions": "  fix grammar  ",
		"source_text": "i went to the store yesterday.",
		"context": {"audience": "team"},
		"preferences": {"preferred_backends": ["memory"], "timeout": "5s"}
	}`), limits())
	require.NoError(t, err)
	assert.Equal(t, "fix grammar", req.Instructions)
	assert.Equal(t, "grammar", req.ModeID)
	assert.NotEmpty(t, req.ID)
	assert.Equal(t, fixed, req.Timestamp)
	assert.Equal(t, "team", req.Context["audience"])
	assert.Equal(t, 5*time.Second, req.Preferences.TimeoutDuration())
}

func TestParse_SchemaViolations(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"missing text", `{"instructions": "fix"}`},
		{"unknown field", `{"instructions": "fix", "source_text": "x", "colour": "red"}`},
		{"empty instructions", `{"instructions": "", "source_text": "x"}`},
		{"bad timestamp", `{"instructions": "fix", "source_text": "x", "timestamp": "yesterday"}`},
		{"bad mode id", `{"instructions": "fix", "source_text": "x", "mode_id": "Bad Mode"}`},
		{"bad fallback", `{"instructions": "fix", "source_text": "x", "preferences": {"fallback_policy": "random"}}`},
		{"not an object", `[1, 2]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.body), limits())
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrSchema)
			assert.Equal(t, faults.CategoryInvalidInput, faults.CategoryOf(err))
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		req  Request
		want error
		code string
	}{
		{"blank instructions", Request{Instructions: "   ", SourceText: "x"}, ErrEmptyField, "empty_instructions"},
		{"blank text", Request{Instructions: "fix", SourceText: " \n\t"}, ErrEmptyField, "empty_source_text"},
		{"too long", Request{Instructions: "fix", SourceText: string(make([]rune, 51))}, ErrTextTooLong, "text_too_long"},
		{"bad timeout", Request{Instructions: "fix", SourceText: "x", Preferences: Preferences{Timeout: "-1s"}}, ErrBadPreferences, "bad_timeout"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := tt.req
			err := Validate(&req, limits())
			require.ErrorIs(t, err, tt.want)
			assert.Equal(t, tt.code, faults.CodeOf(err))
			assert.True(t, faults.IsFatal(err))
		})
	}
}

func TestValidate_KeepsGivenFields(t *testing.T) {
	req := Request{ID: "req-1", Instructions: "fix", SourceText: "café", ModeID: " polish ", Timestamp: fixed.Add(-time.Hour)}
	require.NoError(t, Validate(&req, limits()))
	assert.Equal(t, "req-1", req.ID)
	assert.Equal(t, "polish", req.ModeID)
	assert.Equal(t, fixed.Add(-time.Hour), req.Timestamp)
	assert.Equal(t, "café", req.SourceText)
}
