package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"topomerge/internal/domain"
	"topomerge/internal/filter"
)

var (
	filterWhere   []string
	filterFormat  string
	filterExplain bool
)

var filterCmd = &cobra.Command{
	Use:   "filter <file>",
	Short: "Print the records matching every filter",
	Long: `Filter reads records from a JSON or YAML file ("-" for JSON on stdin)
and prints those matching all --where filters.

Filter syntax:
  name~^branch-                  regular expression on a string field
  ipsecSettings.lifetimeSeconds=3600..28800
                                 inclusive numeric range, either bound optional
  ikeV2Enabled=true              boolean

Example:
  topomerge filter topologies.json --where 'name~^branch-' --where ikeV2Enabled=true`,
	Args: cobra.ExactArgs(1),
	RunE: runFilter,
}

func init() {
	filterCmd.Flags().StringArrayVarP(&filterWhere, "where", "w", nil, "filter expression (repeatable)")
	filterCmd.Flags().StringVarP(&filterFormat, "format", "o", "json", "output format: json or yaml")
	filterCmd.Flags().BoolVar(&filterExplain, "explain", false, "show why each record matched or not")
}

func runFilter(cmd *cobra.Command, args []string) error {
	records, err := readRecords(args[0], cmd.InOrStdin())
	if err != nil {
		return err
	}
	set, err := buildFilterSet(filterWhere)
	if err != nil {
		return err
	}

	if filterExplain {
		for _, res := range filter.EvaluateDetailed(records, set) {
			line := fmt.Sprintf("%-12s %s", res.Outcome, domain.RecordName(res.Record))
			if res.Err != nil {
				line += fmt.Sprintf(" (%v)", res.Err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), line)
		}
		return nil
	}
	return writeRecords(cmd.OutOrStdout(), filterFormat, filter.Evaluate(records, set))
}
