package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"topomerge/internal/codec"
	"topomerge/internal/domain"
	"topomerge/internal/filter"
	"topomerge/internal/overlay"
)

// readRecords loads records from path; "-" reads JSON from stdin
func readRecords(path string, stdin io.Reader) ([]domain.Record, error) {
	if path == "-" {
		return codec.NewJSONCodec().Parse(stdin)
	}
	c, err := codec.ForPath(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open records: %w", err)
	}
	defer f.Close()

	records, err := c.Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return records, nil
}

func writeRecords(w io.Writer, format string, records []domain.Record) error {
	c, err := codec.ForFormat(format)
	if err != nil {
		return err
	}
	return c.Export(records, w)
}

// buildFilterSet parses --where expressions. Without any the default
// filter matching every named record is used.
func buildFilterSet(exprs []string) (*filter.FilterSet, error) {
	if len(exprs) == 0 {
		return filter.NewDefaultFilterSet(), nil
	}
	filters := make([]filter.Filter, 0, len(exprs))
	for _, expr := range exprs {
		f, err := filter.ParseExpr(expr)
		if err != nil {
			return nil, err
		}
		filters = append(filters, f)
	}
	return filter.NewFilterSet(filters...), nil
}

// applyFilters replaces the filters of dst with those of src
func applyFilters(dst, src *filter.FilterSet) error {
	for dst.Len() > 1 {
		if err := dst.Remove(dst.Len() - 1); err != nil {
			return err
		}
	}
	for i, f := range src.Filters() {
		var err error
		if i == 0 {
			err = dst.Replace(0, f)
		} else {
			err = dst.Insert(i, f)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// parseOverride reads "path=json", e.g. ipsecSettings.lifetimeSeconds=7200
func parseOverride(arg string) (domain.KeyPath, string, error) {
	path, raw, ok := strings.Cut(arg, "=")
	if !ok || path == "" {
		return nil, "", fmt.Errorf("override %q: expected path=json", arg)
	}
	p, err := domain.ParseKeyPath(path)
	if err != nil {
		return nil, "", err
	}
	return p, raw, nil
}

// applyOverrides sets every override on ov. Invalid JSON is kept on the
// overlay and only reported, so the rest of the merge can go ahead.
func applyOverrides(ov *overlay.Overlay, args []string) error {
	for _, arg := range args {
		path, raw, err := parseOverride(arg)
		if err != nil {
			return err
		}
		if err := ov.SetOverrideAt(path, raw); err != nil {
			return fmt.Errorf("override %s: %w", path, err)
		}
	}
	return nil
}
