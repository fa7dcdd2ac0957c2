package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"sort"

	"github.com/spf13/cobra"

	"topomerge/internal/client"
	"topomerge/internal/domain"
	"topomerge/internal/overlay"
	"topomerge/internal/progress"
	"topomerge/internal/service"
)

var (
	mergeDevice    string
	mergeHNS       string
	mergeDomain    string
	mergeWhere     []string
	mergeOverrides []string
	mergeDeploy    bool
	mergeDryRun    bool
	mergeFormat    string
)

var mergeCmd = &cobra.Command{
	Use:   "merge",
	Short: "Merge filtered topologies into a hub-and-spoke topology",
	Long: `Merge logs into the merge backend, loads the point-to-point topologies of
a hub device (--device) or those mergeable into an existing hub-and-spoke
topology (--hns), narrows them with --where filters and merges them.

Conflicting fields are resolved with --override path=json. A conflicting
field without an override keeps the value of the topology the merge
starts from.

Example:
  topomerge merge --device hub-1 --where 'name~^branch-' \
    --override ipsecSettings.lifetimeSeconds=7200 --deploy`,
	Args: cobra.NoArgs,
	RunE: runMerge,
}

func init() {
	f := mergeCmd.Flags()
	f.StringVar(&mergeDevice, "device", "", "hub device of a new hub-and-spoke topology")
	f.StringVar(&mergeHNS, "hns", "", "existing hub-and-spoke topology to merge into")
	f.StringVar(&mergeDomain, "domain", "", "domain uuid (default: the only domain)")
	f.StringArrayVarP(&mergeWhere, "where", "w", nil, "filter expression (repeatable)")
	f.StringArrayVar(&mergeOverrides, "override", nil, "override path=json (repeatable)")
	f.BoolVar(&mergeDeploy, "deploy", false, "deploy after merging")
	f.BoolVar(&mergeDryRun, "dry-run", false, "print conflicts and a local preview instead of merging")
	f.StringVarP(&mergeFormat, "format", "o", "json", "output format: json or yaml")
}

func runMerge(cmd *cobra.Command, args []string) error {
	if (mergeDevice == "") == (mergeHNS == "") {
		return errors.New("exactly one of --device or --hns is required")
	}
	if cfg.Backend.Host == "" || cfg.Backend.Username == "" {
		return errors.New("backend host and user are required (--host, --user or the config file)")
	}
	if cfg.Backend.Password == "" {
		return errors.New("password required: set TOPOMERGE_BACKEND_PASSWORD or --password")
	}
	set, err := buildFilterSet(mergeWhere)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	stderr := cmd.ErrOrStderr()

	bus := service.NewEventBus()
	events := make(chan service.Event, 64)
	bus.Subscribe(events)
	defer bus.Unsubscribe(events)

	progressCtx, stopProgress := context.WithCancel(ctx)
	reported := make(chan struct{})
	go func() {
		defer close(reported)
		reportProgress(progressCtx, stderr, events)
	}()
	defer func() {
		stopProgress()
		<-reported
	}()

	c := client.New(cfg.Backend.URL,
		client.WithHTTPClient(&http.Client{Timeout: cfg.Backend.Timeout.Duration()}),
		client.WithEstimate(cfg.Progress.Estimate.Duration()),
		client.WithProgress(service.ProgressSink(bus)),
	)
	if err := login(ctx, c); err != nil {
		return err
	}

	w := service.NewWorkflow(c, bus)
	defer w.Close()

	src := service.Source{DeviceID: mergeDevice, HNSTopologyID: mergeHNS}
	records, err := w.LoadRecords(ctx, src)
	if err != nil {
		return err
	}
	if err := applyFilters(w.Filters(), set); err != nil {
		return err
	}
	log.Printf("%d of %d topologies selected", len(w.Filtered()), len(records))

	needsOverride, err := w.CheckConflicts(ctx)
	if err != nil {
		return err
	}
	ov := w.Overlay()
	if err := applyOverrides(ov, mergeOverrides); err != nil {
		return err
	}
	for _, p := range ov.Problems() {
		fmt.Fprintf(stderr, "warning: %v\n", p)
	}

	if mergeDryRun {
		return preview(cmd.OutOrStdout(), ov, w.Filtered())
	}
	if needsOverride && len(mergeOverrides) == 0 {
		log.Printf("Merging with unresolved conflicts; the first topology's values are kept")
	}

	merged, err := w.Merge(ctx)
	if err != nil {
		return err
	}
	if err := writeRecords(cmd.OutOrStdout(), mergeFormat, []domain.Record{merged}); err != nil {
		return err
	}

	if mergeDeploy {
		if err := w.Deploy(ctx); err != nil {
			return err
		}
		log.Printf("Deployed %s", domain.RecordName(merged))
	}
	return nil
}

// login opens the backend session and selects the domain
func login(ctx context.Context, c *client.Client) error {
	resp, err := c.Login(ctx, cfg.Backend.Host, cfg.Backend.Username, cfg.Backend.Password)
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}

	id := mergeDomain
	if id == "" {
		if len(resp.Domains) != 1 {
			ids := make([]string, 0, len(resp.Domains))
			for d, name := range resp.Domains {
				ids = append(ids, d+" ("+name+")")
			}
			sort.Strings(ids)
			return fmt.Errorf("--domain required, one of: %v", ids)
		}
		for d := range resp.Domains {
			id = d
		}
	} else if _, ok := resp.Domains[id]; !ok {
		return fmt.Errorf("unknown domain %s", id)
	}
	c.SelectDomain(id)
	return nil
}

// preview prints the conflicts and the override applied to the first
// selected record, which is close to what the backend produces
func preview(out io.Writer, ov *overlay.Overlay, records []domain.Record) error {
	doc := map[string]any{
		"conflicts": ov.Conflict(),
		"override":  ov.Submission(),
	}
	if len(records) > 0 {
		p, err := overlay.Preview(records[0], ov.Submission())
		if err != nil {
			return err
		}
		doc["preview"] = p
	}
	return writeRecords(out, mergeFormat, []domain.Record{doc})
}

// reportProgress draws backend call progress on w until ctx ends
func reportProgress(ctx context.Context, w io.Writer, events <-chan service.Event) {
	for {
		select {
		case ev := <-events:
			if ev.Type != service.EventProgress {
				continue
			}
			v, _ := ev.Payload.(float64)
			fmt.Fprintf(w, "\r%3.0f%%", v)
			if v >= progress.Complete {
				fmt.Fprint(w, "\r    \r")
			}
		case <-ctx.Done():
			return
		}
	}
}
