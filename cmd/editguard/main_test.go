package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"editguard/internal/config"
	"editguard/internal/diff"
	"editguard/internal/faults"
	"editguard/internal/processor"
)

// setup installs a default config and a no-op logger for the run* functions.
func setup(t *testing.T) *config.Config {
	t.Helper()
	prevCfg, prevLogger, prevJSON := cfg, logger, jsonOutput
	t.Cleanup(func() { cfg, logger, jsonOutput = prevCfg, prevLogger, prevJSON })

	cfg = config.DefaultConfig()
	logger = zap.NewNop()
	jsonOutput = false
	return cfg
}

func newTestCmd(t *testing.T) (*cobra.Command, *bytes.Buffer, *bytes.Buffer) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetContext(context.Background())
	return cmd, &out, &errOut
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestRunDiff(t *testing.T) {
	setup(t)
	dir := t.TempDir()
	orig := writeFile(t, dir, "orig.txt", "i went to the store yesterday.\n")
	fixed := writeFile(t, dir, "fixed.txt", "I went to the store yesterday.\n")

	cmd, out, _ := newTestCmd(t)
	cmd.Flags().Int("context", 1, "")
	require.NoError(t, runDiff(cmd, []string{orig, fixed}))
	assert.Contains(t, out.String(), "@@ -1,1 +1,1 @@")
	assert.Contains(t, out.String(), "- i went to the store yesterday.")
	assert.Contains(t, out.String(), `"i" -> "I"`)

	jsonOutput = true
	cmd, out, _ = newTestCmd(t)
	require.NoError(t, runDiff(cmd, []string{orig, fixed}))
	var changes []diff.Change
	require.NoError(t, json.Unmarshal(out.Bytes(), &changes))
	require.Len(t, changes, 1)
	assert.Equal(t, diff.ChangeReplace, changes[0].Kind)
	assert.Equal(t, 0, changes[0].Start)
	assert.Equal(t, 1, changes[0].End)
}

func TestRunDiff_MissingFile(t *testing.T) {
	setup(t)
	cmd, _, _ := newTestCmd(t)
	err := runDiff(cmd, []string{filepath.Join(t.TempDir(), "nope"), "also-nope"})
	assert.ErrorContains(t, err, "failed to read")
}

func TestPatchMakeAndApply(t *testing.T) {
	setup(t)
	dir := t.TempDir()
	original := "The quick brown fox jumps over the lazy dog.\nIt was 100% certain.\n"
	corrected := "The quick brown fox jumped over the lazy dog.\nIt was 100% certain!\n"
	orig := writeFile(t, dir, "orig.txt", original)
	fixed := writeFile(t, dir, "fixed.txt", corrected)

	cmd, out, _ := newTestCmd(t)
	require.NoError(t, runPatchMake(cmd, []string{orig, fixed}))
	assert.Contains(t, out.String(), "@@ -")
	patch := writeFile(t, dir, "fix.patch", out.String())

	cmd, out, errOut := newTestCmd(t)
	require.NoError(t, runPatchApply(cmd, []string{patch, orig}))
	assert.Equal(t, corrected, out.String())
	assert.Empty(t, errOut.String())
}

func TestRunCompile(t *testing.T) {
	setup(t)
	jsonOutput = true

	cmd, out, _ := newTestCmd(t)
	addCompileFlags(cmd)
	require.NoError(t, runCompile(cmd, []string{"grammar"}))

	var got compileOutput
	require.NoError(t, json.Unmarshal(out.Bytes(), &got))
	assert.Equal(t, "grammar", got.Mode)
	var ids []string
	for _, c := range got.Ruleset.Constraints {
		ids = append(ids, c.ID)
	}
	assert.Equal(t, []string{"grammar_only_1", "preserve_tone_2", "no_content_change_3", "length_limit_4"}, ids)
	ratio, ok := got.Ruleset.MaxChangeRatio()
	assert.True(t, ok)
	assert.InDelta(t, 0.10, ratio, 1e-9)
}

func TestRunCompile_AdHoc(t *testing.T) {
	setup(t)
	jsonOutput = true

	cmd, out, _ := newTestCmd(t)
	addCompileFlags(cmd)
	require.NoError(t, cmd.Flags().Set("allowed", "Fix spelling"))
	require.NoError(t, cmd.Flags().Set("boundary", "Change at most 5% of the text"))
	require.NoError(t, runCompile(cmd, nil))

	var got compileOutput
	require.NoError(t, json.Unmarshal(out.Bytes(), &got))
	assert.Equal(t, "ad-hoc", got.Mode)
	require.Len(t, got.Ruleset.Constraints, 2)
	assert.Equal(t, "length_limit_2", got.Ruleset.Constraints[1].ID)
	assert.InDelta(t, 0.05, got.Ruleset.Constraints[1].Params.MaxChangeRatio, 1e-9)
}

func TestRunCompile_UnknownMode(t *testing.T) {
	setup(t)
	cmd, _, _ := newTestCmd(t)
	addCompileFlags(cmd)
	err := runCompile(cmd, []string{"sonnet"})
	require.Error(t, err)
	assert.Equal(t, faults.CategoryUnknownMode, faults.CategoryOf(err))
}

func TestRunProcess_PersistsAndLists(t *testing.T) {
	c := setup(t)
	dir := t.TempDir()
	c.Store.Enabled = true
	c.Store.Path = filepath.Join(dir, "editguard.db")
	jsonOutput = true

	req := writeFile(t, dir, "request.json", `{"instructions": "fix my grammar", "source_text": "i went to the store yesterday."}`)
	fixed := writeFile(t, dir, "fixed.txt", "I went to the store yesterday.")
	core, logs := observer.New(zapcore.DebugLevel)
	logger = zap.New(core)

	cmd, out, _ := newTestCmd(t)
	cmd.Flags().String("corrected", fixed, "")
	require.NoError(t, runProcess(cmd, []string{req}))
	assert.Equal(t, 1, logs.FilterLoggerName("store").FilterMessage("store opened").Len())

	var res processor.Result
	require.NoError(t, json.Unmarshal(out.Bytes(), &res))
	assert.True(t, res.Success)
	require.Len(t, res.Changes, 1)
	assert.Equal(t, "I", res.Changes[0].Inserted)
	assert.Equal(t, "I went to the store yesterday.", res.Output)
	assert.Equal(t, "grammar", res.Metadata["mode_id"])

	cmd, out, _ = newTestCmd(t)
	cmd.Flags().Int("limit", 5, "")
	require.NoError(t, runHistory(cmd, nil))
	assert.Contains(t, out.String(), res.ID)
}

func TestRunProcess_Violation(t *testing.T) {
	setup(t)
	dir := t.TempDir()
	req := writeFile(t, dir, "request.json", `{"instructions": "fix my grammar", "source_text": "i went to the store yesterday."}`)
	fixed := writeFile(t, dir, "fixed.txt", "We drove to the big mall last weekend and it was great fun.")

	cmd, out, _ := newTestCmd(t)
	cmd.Flags().String("corrected", fixed, "")
	err := runProcess(cmd, []string{req})
	require.Error(t, err)
	assert.Equal(t, faults.CategoryConstraintViolation, faults.CategoryOf(err))
	assert.Contains(t, out.String(), "FAILED")
	assert.Contains(t, out.String(), "constraint_violation/max_change_ratio")
}

func TestRunProcess_BadRequest(t *testing.T) {
	setup(t)
	dir := t.TempDir()
	req := writeFile(t, dir, "request.json", `{"instructions": "fix"}`)
	fixed := writeFile(t, dir, "fixed.txt", "x")
	core, logs := observer.New(zapcore.DebugLevel)
	logger = zap.New(core)

	cmd, _, _ := newTestCmd(t)
	cmd.Flags().String("corrected", fixed, "")
	err := runProcess(cmd, []string{req})
	require.Error(t, err)
	assert.Equal(t, faults.CategoryInvalidInput, faults.CategoryOf(err))

	rejected := logs.FilterLoggerName("intake").FilterMessage("request rejected").All()
	require.Len(t, rejected, 1)
	assert.Equal(t, "schema_mismatch", rejected[0].ContextMap()["code"])
}

func TestRunModes(t *testing.T) {
	setup(t)
	cmd, out, _ := newTestCmd(t)
	require.NoError(t, runModes(cmd, nil))
	assert.Contains(t, out.String(), "grammar")
	assert.Contains(t, out.String(), "polish")
	assert.Contains(t, out.String(), "4 rules")
}

func TestRunHistory_StoreDisabled(t *testing.T) {
	setup(t)
	cmd, _, _ := newTestCmd(t)
	cmd.Flags().Int("limit", 5, "")
	assert.ErrorContains(t, runHistory(cmd, nil), "store is disabled")
}

func addCompileFlags(cmd *cobra.Command) {
	for _, name := range []string{"allowed", "forbidden", "focus", "boundary"} {
		cmd.Flags().StringSlice(name, nil, "")
	}
}

func TestRunInit(t *testing.T) {
	setup(t)
	prev := configPath
	t.Cleanup(func() { configPath = prev })
	configPath = filepath.Join(t.TempDir(), "conf", "editguard.yaml")

	cmd, out, _ := newTestCmd(t)
	cmd.Flags().Bool("force", false, "")
	require.NoError(t, runInit(cmd, nil))
	assert.Contains(t, out.String(), "wrote")

	loaded, err := config.Load(configPath)
	require.NoError(t, err)
	assert.Equal(t, cfg.Engine, loaded.Engine)
	assert.Len(t, loaded.Modes, 2)

	assert.ErrorContains(t, runInit(cmd, nil), "already exists")
	require.NoError(t, cmd.Flags().Set("force", "true"))
	assert.NoError(t, runInit(cmd, nil))
}
