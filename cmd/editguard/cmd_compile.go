package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"editguard/cmd/editguard/ui"
	"editguard/internal/constraint"
	"editguard/internal/mode"
	"editguard/internal/rules"
)

// compileCmd compiles a mode, or ad-hoc rules, into a ruleset
var compileCmd = &cobra.Command{
	Use:   "compile [mode-id]",
	Short: "Compile a mode's rules into constraints",
	Long: `Compiles the natural-language rules of a mode into constraints with
machine-checkable predicates and prints the ruleset and any conflicts.

With --allowed/--forbidden/--focus/--boundary the given rules are compiled
instead of a configured mode.

Example:
  editguard compile grammar
  editguard compile --allowed "Fix spelling" --boundary "Change at most 5% of the text"`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCompile,
}

type compileOutput struct {
	Mode     string               `json:"mode"`
	Ruleset  *constraint.Ruleset  `json:"ruleset"`
	Warnings []constraint.Warning `json:"warnings"`
}

func runCompile(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx, cfg, logger, nil)
	if err != nil {
		return err
	}
	defer a.Close(ctx)

	adhoc := adhocRules(cmd)
	id := cfg.Engine.DefaultMode
	if len(args) > 0 {
		id = args[0]
	}

	var rs *constraint.Ruleset
	var warnings []constraint.Warning
	if len(adhoc) > 0 {
		id = "ad-hoc"
		rs, warnings, err = a.compiler.Compile(rules.ParseAll(adhoc), compileOptions(cfg))
	} else {
		rs, warnings, err = a.modes.Ruleset(ctx, id, a.compiler, compileOptions(cfg))
	}
	if err != nil {
		return err
	}

	if jsonOutput {
		return writeJSON(cmd, compileOutput{Mode: id, Ruleset: rs, Warnings: warnings})
	}
	fmt.Fprint(cmd.OutOrStdout(), ui.DefaultStyles().RenderRuleset(id, rs, warnings))
	return nil
}

func adhocRules(cmd *cobra.Command) []rules.RuleText {
	var m mode.Mode
	m.Rules.Allowed, _ = cmd.Flags().GetStringSlice("allowed")
	m.Rules.Forbidden, _ = cmd.Flags().GetStringSlice("forbidden")
	m.Rules.Focus, _ = cmd.Flags().GetStringSlice("focus")
	m.Rules.Boundaries, _ = cmd.Flags().GetStringSlice("boundary")
	return m.RuleTexts()
}

func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
