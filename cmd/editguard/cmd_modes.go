package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"editguard/cmd/editguard/ui"
	"editguard/internal/mode"
	"editguard/internal/store"
)

// modesCmd lists the configured modes
var modesCmd = &cobra.Command{
	Use:   "modes",
	Short: "List the configured modes",
	Args:  cobra.NoArgs,
	RunE:  runModes,
}

// historyCmd lists persisted results, newest first
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List persisted results",
	Long: `Lists results stored by earlier process runs. Requires store.enabled
in the config, or EDITGUARD_DB pointing at the database.`,
	Args: cobra.NoArgs,
	RunE: runHistory,
}

type modeSummary struct {
	ID          string `json:"id"`
	Name        string `json:"name,omitempty"`
	Category    string `json:"category,omitempty"`
	Version     string `json:"version,omitempty"`
	Description string `json:"description,omitempty"`
	Rules       int    `json:"rules"`
}

func runModes(cmd *cobra.Command, args []string) error {
	reg := mode.NewRegistry(logger)
	for _, mc := range cfg.Modes {
		if err := reg.Register(mode.FromConfig(mc)); err != nil {
			return fmt.Errorf("mode %s: %w", mc.ID, err)
		}
	}

	var out []modeSummary
	for _, m := range reg.List() {
		out = append(out, modeSummary{
			ID: m.ID, Name: m.Name, Category: m.Category, Version: m.Version,
			Description: m.Description, Rules: len(m.RuleTexts()),
		})
	}
	if jsonOutput {
		return writeJSON(cmd, out)
	}

	s := ui.DefaultStyles()
	w := cmd.OutOrStdout()
	for _, m := range out {
		marker := " "
		if m.ID == cfg.Engine.DefaultMode {
			marker = "*"
		}
		fmt.Fprintf(w, "%s %-12s %-24s %s\n", marker, s.Bold.Render(m.ID), m.Name, s.Muted.Render(fmt.Sprintf("%d rules", m.Rules)))
		if m.Description != "" {
			fmt.Fprintf(w, "  %s\n", s.Muted.Render(m.Description))
		}
	}
	return nil
}

func runHistory(cmd *cobra.Command, args []string) error {
	if !cfg.Store.Enabled {
		return fmt.Errorf("store is disabled (set store.enabled or EDITGUARD_DB)")
	}
	st, err := store.Open(cfg.Store.Path)
	if err != nil {
		return err
	}
	defer st.Close()

	limit, _ := cmd.Flags().GetInt("limit")
	records, err := st.History(cmd.Context(), limit)
	if err != nil {
		return err
	}
	if jsonOutput {
		return writeJSON(cmd, records)
	}

	s := ui.DefaultStyles()
	w := cmd.OutOrStdout()
	if len(records) == 0 {
		fmt.Fprintln(w, s.Muted.Render("no results stored"))
		return nil
	}
	for _, r := range records {
		fmt.Fprintf(w, "%s %s %s %-10s %d changes %s\n",
			r.CreatedAt.Local().Format("2006-01-02 15:04:05"),
			s.Status(r.Success),
			r.ID,
			r.ModeID,
			r.ChangeCount,
			s.Muted.Render(strings.TrimSpace(r.Processing.String())))
	}
	return nil
}
