package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"editguard/cmd/editguard/ui"
	"editguard/internal/constraint"
	"editguard/internal/faults"
	"editguard/internal/intake"
	"editguard/internal/logging"
	"editguard/internal/processor"
)

// processCmd runs one correction request through the full pipeline
var processCmd = &cobra.Command{
	Use:   "process <request.json>",
	Short: "Process a correction request",
	Long: `Validates the request, compiles its mode, checks the corrected text
against the compiled constraints and dispatches the extracted changes to the
configured backends.

The corrected text is taken from --corrected; editguard does not generate
corrections itself.

Example:
  editguard process request.json --corrected fixed.txt`,
	Args: cobra.ExactArgs(1),
	RunE: runProcess,
}

// fileCorrector returns the corrected text it was loaded with.
type fileCorrector struct {
	text string
}

func (f fileCorrector) Correct(context.Context, string, *constraint.Ruleset) (string, error) {
	return f.text, nil
}

func runProcess(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	correctedPath, _ := cmd.Flags().GetString("corrected")
	texts, err := readFiles(args[0], correctedPath)
	if err != nil {
		return err
	}
	req, err := intake.Parse([]byte(texts[0]), intake.Limits{
		DefaultMode:   cfg.Engine.DefaultMode,
		MaxTextLength: cfg.Engine.MaxTextLength,
	})
	if err != nil {
		logging.For(logger, logging.CategoryIntake).Warn("request rejected",
			zap.String("path", args[0]),
			zap.String("code", faults.CodeOf(err)),
			zap.Error(err))
		return err
	}

	a, err := newApp(ctx, cfg, logger, fileCorrector{text: texts[1]})
	if err != nil {
		return err
	}
	defer a.Close(ctx)

	res, perr := a.proc.Process(ctx, req)
	if jsonOutput {
		if err := writeJSON(cmd, res); err != nil {
			return err
		}
	} else {
		fmt.Fprint(cmd.OutOrStdout(), renderResult(res))
	}
	return perr
}

func renderResult(res *processor.Result) string {
	s := ui.DefaultStyles()
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s %s  %s\n", s.Status(res.Success), res.ID, s.Muted.Render(res.ProcessingTime.String()))
	for _, st := range res.Provenance {
		line := fmt.Sprintf("  %-10s %v", st.Name, st.Duration)
		if st.Backend != "" {
			line += " backend=" + st.Backend
		}
		if st.Note != "" {
			line += " " + st.Note
		}
		sb.WriteString(s.Muted.Render(line))
		sb.WriteString("\n")
	}
	if res.Error != nil {
		fmt.Fprintf(&sb, "%s %s/%s: %s\n", s.Error.Render("error"), res.Error.Category, res.Error.Code, res.Error.Message)
		if res.Error.Hint != "" {
			sb.WriteString(s.Info.Render("hint: " + res.Error.Hint))
			sb.WriteString("\n")
		}
		for _, at := range res.Error.Attempts {
			fmt.Fprintf(&sb, "  attempt %s: %s\n", at.Adapter, at.Error)
		}
	} else {
		sb.WriteString(s.RenderChanges(res.Changes))
		if ratio := res.Metadata["change_ratio"]; ratio != "" {
			sb.WriteString(s.Muted.Render("change ratio " + ratio))
			sb.WriteString("\n")
		}
	}
	if len(res.Summary.Warnings) > 0 {
		sb.WriteString(s.RenderWarnings(res.Summary.Warnings))
	}
	if res.Output != "" {
		sb.WriteString("\n")
		sb.WriteString(res.Output)
		if !strings.HasSuffix(res.Output, "\n") {
			sb.WriteString("\n")
		}
	}
	return sb.String()
}
