package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"topomerge/internal/client"
	"topomerge/internal/domain"
	"topomerge/internal/filter"
	"topomerge/internal/overlay"
)

var (
	ErrClosed      = errors.New("workflow closed")
	ErrNoSelection = errors.New("no records selected")
	ErrNoConflicts = errors.New("conflicts not checked")
	ErrNotMerged   = errors.New("nothing merged yet")
)

// Backend is the part of the merge backend a workflow drives
type Backend interface {
	SelectDevice(id string)
	P2PTopologies(ctx context.Context) ([]domain.Record, error)
	HNSP2PTopologies(ctx context.Context, id string) ([]domain.Record, error)
	Conflicts(ctx context.Context, ids []string) (overlay.Conflict, error)
	Merge(ctx context.Context, req client.MergeRequest) (domain.Record, error)
	Deploy(ctx context.Context) error
}

// Source names where the candidate records come from. With HNSTopologyID
// set the records are merged into that existing hub-and-spoke topology;
// otherwise a new one is built around DeviceID.
type Source struct {
	DeviceID      string
	HNSTopologyID string
}

// Workflow is the state of one merge session: loaded records, the filters
// narrowing them, the conflict overlay and the merge result. Close abandons
// it and cancels every call still in flight.
type Workflow struct {
	backend Backend
	bus     *EventBus

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	source   Source
	records  []domain.Record
	filters  *filter.FilterSet
	overlay  *overlay.Overlay
	selected []string
	merged   domain.Record
}

// NewWorkflow creates a workflow publishing its progress on bus
func NewWorkflow(b Backend, bus *EventBus) *Workflow {
	ctx, cancel := context.WithCancel(context.Background())
	return &Workflow{
		backend: b,
		bus:     bus,
		ctx:     ctx,
		cancel:  cancel,
		filters: filter.NewDefaultFilterSet(),
	}
}

// scope derives a call context that also ends when the workflow is closed
func (w *Workflow) scope(ctx context.Context) (context.Context, context.CancelFunc, error) {
	if w.ctx.Err() != nil {
		return nil, nil, ErrClosed
	}
	ctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(w.ctx, cancel)
	return ctx, func() { stop(); cancel() }, nil
}

// closedErr reports ErrClosed in place of the cancellation Close caused
func (w *Workflow) closedErr(err error) error {
	if w.ctx.Err() != nil && errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %v", ErrClosed, err)
	}
	return err
}

// LoadRecords fetches the candidate records and resets everything derived
// from a previous load. Filters are kept.
func (w *Workflow) LoadRecords(ctx context.Context, src Source) ([]domain.Record, error) {
	ctx, done, err := w.scope(ctx)
	if err != nil {
		return nil, err
	}
	defer done()

	var records []domain.Record
	if src.HNSTopologyID != "" {
		records, err = w.backend.HNSP2PTopologies(ctx, src.HNSTopologyID)
	} else {
		w.backend.SelectDevice(src.DeviceID)
		records, err = w.backend.P2PTopologies(ctx)
	}
	if err != nil {
		return nil, w.closedErr(fmt.Errorf("load records: %w", err))
	}

	w.mu.Lock()
	w.source = src
	w.records = records
	w.overlay = nil
	w.selected = nil
	w.merged = nil
	w.mu.Unlock()

	log.Printf("Loaded %d records", len(records))
	w.bus.Publish(Event{Type: EventRecordsLoaded, Payload: map[string]any{"count": len(records)}})
	return records, nil
}

// Records returns the loaded records
func (w *Workflow) Records() []domain.Record {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.records
}

// Filters returns the live filter set
func (w *Workflow) Filters() *filter.FilterSet {
	return w.filters
}

// Sample returns the record used to discover filter paths
func (w *Workflow) Sample() (domain.Record, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.records) == 0 {
		return nil, false
	}
	return w.records[0], true
}

// Filtered returns the records passing every active filter
func (w *Workflow) Filtered() []domain.Record {
	w.mu.Lock()
	records := w.records
	w.mu.Unlock()
	return filter.Evaluate(records, w.filters)
}

// CheckConflicts selects the filtered records and fetches their conflict
// record. It reports whether the override step is needed; without
// conflicts Merge can follow immediately.
func (w *Workflow) CheckConflicts(ctx context.Context) (bool, error) {
	ids := domain.RecordIDs(w.Filtered())
	if len(ids) == 0 {
		return false, ErrNoSelection
	}

	ctx, done, err := w.scope(ctx)
	if err != nil {
		return false, err
	}
	defer done()

	conflict, err := w.backend.Conflicts(ctx, ids)
	if err != nil {
		return false, w.closedErr(fmt.Errorf("check conflicts: %w", err))
	}
	ov := overlay.New(conflict)

	w.mu.Lock()
	w.selected = ids
	w.overlay = ov
	w.merged = nil
	w.mu.Unlock()

	w.bus.Publish(Event{Type: EventConflictsLoaded, Payload: map[string]any{
		"selected":  len(ids),
		"conflicts": len(conflict),
	}})
	return ov.HasAnyConflict(), nil
}

// Selected returns the record ids the conflicts were computed for
func (w *Workflow) Selected() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.selected
}

// Overlay returns the conflict overlay, nil before CheckConflicts
func (w *Workflow) Overlay() *overlay.Overlay {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.overlay
}

// Merge submits the selected records and the override
func (w *Workflow) Merge(ctx context.Context) (domain.Record, error) {
	w.mu.Lock()
	ov, ids, src := w.overlay, w.selected, w.source
	w.mu.Unlock()
	if ov == nil {
		return nil, ErrNoConflicts
	}

	for _, p := range ov.Problems() {
		log.Printf("Override %s withheld: %v", p.Path, p.Err)
	}
	req := client.MergeRequest{P2PTopologyIDs: ids, Override: ov.Submission()}
	if src.HNSTopologyID != "" {
		id := src.HNSTopologyID
		req.HNSTopologyID = &id
	}

	ctx, done, err := w.scope(ctx)
	if err != nil {
		return nil, err
	}
	defer done()

	merged, err := w.backend.Merge(ctx, req)
	if err != nil {
		return nil, w.closedErr(fmt.Errorf("merge: %w", err))
	}

	w.mu.Lock()
	w.merged = merged
	w.mu.Unlock()

	log.Printf("Merged %d records into %s", len(ids), domain.RecordName(merged))
	w.bus.Publish(Event{Type: EventMerged, Payload: map[string]any{
		"id":   domain.RecordID(merged),
		"name": domain.RecordName(merged),
	}})
	return merged, nil
}

// Merged returns the merge result, nil before Merge
func (w *Workflow) Merged() domain.Record {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.merged
}

// Deploy removes the merged records on the backend and deploys the result
func (w *Workflow) Deploy(ctx context.Context) error {
	if w.Merged() == nil {
		return ErrNotMerged
	}
	ctx, done, err := w.scope(ctx)
	if err != nil {
		return err
	}
	defer done()

	if err := w.backend.Deploy(ctx); err != nil {
		return w.closedErr(fmt.Errorf("deploy: %w", err))
	}
	w.bus.Publish(Event{Type: EventDeployed})
	return nil
}

// Close abandons the workflow. Pending readiness waits and progress timers
// of in-flight calls are released; later calls return ErrClosed.
func (w *Workflow) Close() {
	if w.ctx.Err() != nil {
		return
	}
	w.cancel()
	w.bus.Publish(Event{Type: EventWorkflowAbandoned})
}
