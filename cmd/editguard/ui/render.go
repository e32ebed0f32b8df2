package ui

import (
	"fmt"
	"sort"
	"strings"

	"editguard/internal/constraint"
	"editguard/internal/diff"
)

// RenderHunks renders line hunks with +/- markers.
func (s Styles) RenderHunks(oldName, newName string, hunks []diff.Hunk) string {
	var sb strings.Builder
	sb.WriteString(s.Muted.Render(fmt.Sprintf("--- %s\n+++ %s", oldName, newName)))
	sb.WriteString("\n")
	if len(hunks) == 0 {
		sb.WriteString(s.Muted.Render("(no differences)"))
		sb.WriteString("\n")
		return sb.String()
	}
	for _, h := range hunks {
		sb.WriteString(s.Info.Render(fmt.Sprintf("@@ -%d,%d +%d,%d @@", h.OldStart, h.OldCount, h.NewStart, h.NewCount)))
		sb.WriteString("\n")
		for _, line := range h.Lines {
			sb.WriteString(s.renderLine(line))
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

func (s Styles) renderLine(line diff.Line) string {
	switch line.Type {
	case diff.LineAdded:
		return s.Added.Render("+ " + line.Content)
	case diff.LineRemoved:
		return s.Removed.Render("- " + line.Content)
	}
	return s.Body.Render("  " + line.Content)
}

// RenderChanges lists position-exact changes, one per line.
func (s Styles) RenderChanges(changes []diff.Change) string {
	if len(changes) == 0 {
		return s.Muted.Render("no changes") + "\n"
	}
	var sb strings.Builder
	for _, c := range changes {
		fmt.Fprintf(&sb, "%s %-7s [%d,%d) ", s.Bold.Render(c.ID), c.Kind, c.Start, c.End)
		if c.Removed != "" {
			sb.WriteString(s.Removed.Render(fmt.Sprintf("%q", c.Removed)))
		}
		if c.Removed != "" && c.Inserted != "" {
			sb.WriteString(" -> ")
		}
		if c.Inserted != "" {
			sb.WriteString(s.Added.Render(fmt.Sprintf("%q", c.Inserted)))
		}
		sb.WriteString(s.Muted.Render(fmt.Sprintf("  (%.2f)", c.Confidence)))
		sb.WriteString("\n")
	}
	return sb.String()
}

// RenderRuleset summarizes a compiled ruleset and its warnings.
func (s Styles) RenderRuleset(id string, rs *constraint.Ruleset, warnings []constraint.Warning) string {
	var sb strings.Builder
	sb.WriteString(s.Title.Render("Mode " + id))
	sb.WriteString("\n")
	for _, c := range rs.Constraints {
		fmt.Fprintf(&sb, "%s  priority %d  %s\n", s.Bold.Render(c.ID), c.Priority, s.Muted.Render(c.Source))
		for _, p := range c.Predicates {
			fmt.Fprintf(&sb, "    %s %s%s\n", p.Name, s.Muted.Render(string(p.Severity)), formatParams(p.Params))
		}
	}
	fmt.Fprintf(&sb, "timeout %v, retries %d, fallback %s\n", rs.Execution.Timeout, rs.Execution.RetryCount, rs.Execution.FallbackPolicy)
	sb.WriteString(s.Muted.Render("digest " + rs.Digest))
	sb.WriteString("\n")
	if len(warnings) > 0 {
		sb.WriteString(s.RenderWarnings(warnings2strings(warnings)))
	}
	return sb.String()
}

// RenderWarnings boxes a list of warnings.
func (s Styles) RenderWarnings(warnings []string) string {
	var sb strings.Builder
	sb.WriteString("Warnings:\n")
	for _, w := range warnings {
		fmt.Fprintf(&sb, "  • %s\n", w)
	}
	return s.Box.Render(strings.TrimRight(sb.String(), "\n")) + "\n"
}

// Status renders ok or failed.
func (s Styles) Status(ok bool) string {
	if ok {
		return s.Success.Render("OK")
	}
	return s.Error.Render("FAILED")
}

func formatParams(params map[string]float64) string {
	if len(params) == 0 {
		return ""
	}
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%g", k, params[k])
	}
	return " (" + strings.Join(parts, ", ") + ")"
}

func warnings2strings(ws []constraint.Warning) []string {
	out := make([]string, len(ws))
	for i, w := range ws {
		out[i] = w.String()
	}
	return out
}
