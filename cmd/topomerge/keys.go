package main

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"topomerge/internal/domain"
	"topomerge/internal/filter"
)

var keysSample int

var keysCmd = &cobra.Command{
	Use:   "keys <file> [path]",
	Short: "List the keys a filter can address",
	Long: `Keys inspects one representative record and lists the children of path
with the kind of value found there. Objects with a single member are
descended automatically. At a scalar it prints the filter a new selection
would start with.

Example:
  topomerge keys topologies.json ikeSettings
  topomerge keys topologies.json 'endpoints[0].name'`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runKeys,
}

func init() {
	keysCmd.Flags().IntVar(&keysSample, "sample", 0, "index of the record to inspect")
}

func runKeys(cmd *cobra.Command, args []string) error {
	records, err := readRecords(args[0], cmd.InOrStdin())
	if err != nil {
		return err
	}
	if keysSample < 0 || keysSample >= len(records) {
		return fmt.Errorf("sample %d: file has %d records", keysSample, len(records))
	}
	sample := records[keysSample]

	var path domain.KeyPath
	if len(args) == 2 {
		if path, err = domain.ParseKeyPath(args[1]); err != nil {
			return err
		}
	}
	if leaf, ok := path.Leaf(); ok {
		sel, err := filter.SelectChild(sample, path, len(path)-1, leaf)
		if err != nil {
			return err
		}
		path = sel.Path
	}

	out := cmd.OutOrStdout()
	keys, err := filter.DiscoverChildren(sample, path)
	if errors.Is(err, filter.ErrNoChildren) {
		f, err := filter.ForLeaf(sample, path)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, f)
		return nil
	}
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	for _, k := range keys {
		child, err := domain.Resolve(sample, path.Append(k))
		if err != nil {
			return err
		}
		fmt.Fprintf(tw, "%s\t%s\n", path.Append(k), domain.KindOf(child))
	}
	return tw.Flush()
}
