package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"topomerge/internal/domain"
	"topomerge/internal/filter"
	"topomerge/internal/fixture"
	"topomerge/internal/overlay"
)

var conflictsWhere []string

var conflictsCmd = &cobra.Command{
	Use:   "conflicts <file>",
	Short: "Show where the filtered records disagree",
	Long: `Conflicts filters the records of a file and prints their conflict record:
every field whose values differ, with the observed values. A field whose
value is a single list is informational (list contents are combined by a
merge) and cannot be overridden.

Identity fields (id, name, description, metadata, links, topologyType,
endpoints) are never reported.`,
	Args: cobra.ExactArgs(1),
	RunE: runConflicts,
}

func init() {
	conflictsCmd.Flags().StringArrayVarP(&conflictsWhere, "where", "w", nil, "filter expression (repeatable)")
}

func runConflicts(cmd *cobra.Command, args []string) error {
	records, err := readRecords(args[0], cmd.InOrStdin())
	if err != nil {
		return err
	}
	set, err := buildFilterSet(conflictsWhere)
	if err != nil {
		return err
	}
	selected := filter.Evaluate(records, set)

	conflict, err := fixture.Diff(selected, fixture.IgnoredKeys)
	if err != nil {
		return fmt.Errorf("%d of %d records selected: %w", len(selected), len(records), err)
	}
	if !overlay.HasAnyConflict(conflict) {
		fmt.Fprintf(cmd.ErrOrStderr(), "%d records agree on every field\n", len(selected))
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(map[string]any{
		"selected":  domain.RecordIDs(selected),
		"conflicts": conflict,
	})
}
