package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"editguard/cmd/editguard/ui"
	"editguard/internal/diff"
)

// diffCmd prints the position-exact changes between two files
var diffCmd = &cobra.Command{
	Use:   "diff <original> <corrected>",
	Short: "Extract the changes between two texts",
	Args:  cobra.ExactArgs(2),
	RunE:  runDiff,
}

var patchCmd = &cobra.Command{
	Use:   "patch",
	Short: "Make and apply text patches",
}

// patchMakeCmd writes a patch in the %-escaped GNU hunk format
var patchMakeCmd = &cobra.Command{
	Use:   "make <original> <corrected>",
	Short: "Print a patch turning original into corrected",
	Args:  cobra.ExactArgs(2),
	RunE:  runPatchMake,
}

// patchApplyCmd applies a patch, fuzzily when the target drifted
var patchApplyCmd = &cobra.Command{
	Use:   "apply <patch-file> <target>",
	Short: "Apply a patch to a file and print the result",
	Long: `Applies each fragment of the patch to the target text. Fragments whose
context no longer matches exactly are located fuzzily; fragments that cannot
be placed are rejected and reported on stderr. The command fails when any
fragment is rejected.`,
	Args: cobra.ExactArgs(2),
	RunE: runPatchApply,
}

func readFiles(paths ...string) ([]string, error) {
	out := make([]string, len(paths))
	for i, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", p, err)
		}
		out[i] = string(data)
	}
	return out, nil
}

func runDiff(cmd *cobra.Command, args []string) error {
	texts, err := readFiles(args[0], args[1])
	if err != nil {
		return err
	}
	engine := diff.NewEngine(diffOptions(cfg))
	changes := engine.Changes(texts[0], texts[1])
	if jsonOutput {
		return writeJSON(cmd, changes)
	}

	contextLines, _ := cmd.Flags().GetInt("context")
	if contextLines < 0 {
		contextLines = cfg.Diff.ContextLines
	}
	s := ui.DefaultStyles()
	out := cmd.OutOrStdout()
	fmt.Fprint(out, s.RenderHunks(args[0], args[1], engine.Hunks(texts[0], texts[1], contextLines)))
	fmt.Fprintln(out)
	fmt.Fprint(out, s.RenderChanges(changes))
	return nil
}

func runPatchMake(cmd *cobra.Command, args []string) error {
	texts, err := readFiles(args[0], args[1])
	if err != nil {
		return err
	}
	engine := diff.NewEngine(diffOptions(cfg))
	fmt.Fprint(cmd.OutOrStdout(), diff.PatchesToText(engine.MakePatches(texts[0], texts[1])))
	return nil
}

func runPatchApply(cmd *cobra.Command, args []string) error {
	texts, err := readFiles(args[0], args[1])
	if err != nil {
		return err
	}
	patches, err := diff.PatchesFromText(texts[0])
	if err != nil {
		return fmt.Errorf("failed to parse patch %s: %w", args[0], err)
	}
	engine := diff.NewEngine(diffOptions(cfg))
	text, results := engine.ApplyPatches(patches, texts[1])

	var rejected []string
	for _, r := range results {
		if r.Outcome == diff.PatchRejected {
			rejected = append(rejected, fmt.Sprint(r.Index))
		}
		if r.Outcome != diff.PatchApplied {
			fmt.Fprintf(cmd.ErrOrStderr(), "fragment %d %s (expected %d, found %d)\n", r.Index, r.Outcome, r.Expected, r.Location)
		}
	}
	fmt.Fprint(cmd.OutOrStdout(), text)
	if len(rejected) > 0 {
		return fmt.Errorf("%d of %d fragments rejected: %s", len(rejected), len(results), strings.Join(rejected, ", "))
	}
	return nil
}
