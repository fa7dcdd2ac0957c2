package fixture

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"topomerge/internal/domain"
	"topomerge/internal/overlay"
)

// TaskTopologies is the background topology fetch started when a session
// selects a domain
const TaskTopologies = "topologies"

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUnauthorized       = errors.New("token invalid")
	ErrNotFound           = errors.New("not found")
	ErrNoDevice           = errors.New("no hub device or hub-and-spoke topology selected")
	ErrNothingMerged      = errors.New("nothing merged in this session")
)

// Session is the per-token state the backend keeps between requests
type Session struct {
	Token         string
	Host          string
	User          string
	DomainID      string
	DeviceID      string
	HNSTopologyID string
	Merged        []string // point-to-point ids consumed by the last merge
}

// Store is an in-memory merge backend over fixture data
type Store struct {
	mu       sync.RWMutex
	data     *Data
	delay    time.Duration
	sessions map[string]*Session
	pending  map[string]map[string]int // token -> task -> outstanding runs
	timers   map[*time.Timer]struct{}
	onDone   func(token, task string)
}

// NewStore serves d. Simulated background tasks take delay to complete.
func NewStore(d *Data, delay time.Duration) *Store {
	if d == nil {
		d = &Data{Domains: map[string]string{"default": "Global"}}
	}
	return &Store{
		data:     d,
		delay:    delay,
		sessions: make(map[string]*Session),
		pending:  make(map[string]map[string]int),
		timers:   make(map[*time.Timer]struct{}),
	}
}

// OnTaskDone registers fn to be called whenever a task finishes
func (s *Store) OnTaskDone(fn func(token, task string)) {
	s.mu.Lock()
	s.onDone = fn
	s.mu.Unlock()
}

// Replace swaps in new fixture data; sessions survive
func (s *Store) Replace(d *Data) {
	s.mu.Lock()
	s.data = d
	s.mu.Unlock()
	log.Printf("Fixture replaced: %d devices, %d hub-and-spoke topologies", len(d.Devices), len(d.HNSTopologies))
}

// Close stops every pending task timer
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for t := range s.timers {
		t.Stop()
	}
	s.timers = make(map[*time.Timer]struct{})
}

// Login opens a session. username is "<host> <user>".
func (s *Store) Login(username, password string) (*Session, map[string]string, error) {
	host, user, ok := strings.Cut(strings.TrimSpace(username), " ")
	if !ok || host == "" || user == "" || password == "" {
		return nil, nil, ErrInvalidCredentials
	}

	sess := &Session{Token: uuid.NewString(), Host: host, User: strings.TrimSpace(user)}
	s.mu.Lock()
	s.sessions[sess.Token] = sess
	domains := copyDomains(s.data.Domains)
	s.mu.Unlock()

	log.Printf("Session opened for %s on %s", sess.User, sess.Host)
	return sess, domains, nil
}

// Session returns a copy of the session for token
func (s *Store) Session(token string) (Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[token]
	if !ok {
		return Session{}, ErrUnauthorized
	}
	return *sess, nil
}

// Authorized reports whether token belongs to a session
func (s *Store) Authorized(token string) bool {
	_, err := s.Session(token)
	return err == nil
}

// Domains lists the domains by uuid
func (s *Store) Domains(token string) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.sessions[token]; !ok {
		return nil, ErrUnauthorized
	}
	return copyDomains(s.data.Domains), nil
}

// SelectDomain scopes the session to domainID. Changing domain restarts
// the topology fetch.
func (s *Store) SelectDomain(token, domainID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[token]
	if !ok {
		return ErrUnauthorized
	}
	if _, ok := s.data.Domains[domainID]; !ok {
		return fmt.Errorf("domain %s: %w", domainID, ErrNotFound)
	}
	if sess.DomainID == domainID {
		return nil
	}
	sess.DomainID = domainID
	s.startLocked(token, TaskTopologies)
	return nil
}

// Devices lists the hub candidates
func (s *Store) Devices(token string) ([]domain.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.sessions[token]; !ok {
		return nil, ErrUnauthorized
	}
	ids := s.data.DeviceIDs()
	out := make([]domain.Record, 0, len(ids))
	for _, id := range ids {
		out = append(out, domain.Record{"id": id, "name": id, "type": "Device"})
	}
	return out, nil
}

// HNSTopologies lists the existing hub-and-spoke topologies
func (s *Store) HNSTopologies(token string) ([]domain.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.sessions[token]; !ok {
		return nil, ErrUnauthorized
	}
	return copyRecords(s.data.HNSTopologies), nil
}

// HNSP2PTopologies selects hnsID as the merge target and lists the
// point-to-point topologies that can be merged into it
func (s *Store) HNSP2PTopologies(token, hnsID string) ([]domain.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[token]
	if !ok {
		return nil, ErrUnauthorized
	}
	if findRecord(s.data.HNSTopologies, hnsID) == nil {
		return nil, fmt.Errorf("hub-and-spoke topology %s: %w", hnsID, ErrNotFound)
	}
	sess.HNSTopologyID = hnsID
	sess.DeviceID = ""
	return copyRecords(s.data.HNSP2PTopologies[hnsID]), nil
}

// P2PTopologies selects deviceID as the hub of a new topology and lists
// its point-to-point topologies
func (s *Store) P2PTopologies(token, deviceID string) ([]domain.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[token]
	if !ok {
		return nil, ErrUnauthorized
	}
	recs, ok := s.data.Devices[deviceID]
	if !ok {
		return nil, fmt.Errorf("device %s: %w", deviceID, ErrNotFound)
	}
	sess.DeviceID = deviceID
	sess.HNSTopologyID = ""
	return copyRecords(recs), nil
}

// Conflicts diffs the selected topologies of the session's current source
func (s *Store) Conflicts(token string, ids []string) (overlay.Conflict, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[token]
	if !ok {
		return nil, ErrUnauthorized
	}
	candidates, err := s.candidatesLocked(sess)
	if err != nil {
		return nil, err
	}
	return Diff(pick(candidates, ids), IgnoredKeys)
}

// Merge builds the hub-and-spoke topology. A new topology starts from the
// first point-to-point topology of the hub device; merging into an
// existing one starts from that topology. The override is patched on top
// and the endpoints of the merged topologies are appended.
func (s *Store) Merge(token string, ids []string, ov overlay.Override, hnsID *string) (domain.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[token]
	if !ok {
		return nil, ErrUnauthorized
	}
	candidates, err := s.candidatesLocked(sess)
	if err != nil {
		return nil, err
	}
	selected := pick(candidates, ids)
	if len(selected) == 0 {
		return nil, ErrNoRecords
	}

	var base domain.Record
	if hnsID != nil {
		existing := findRecord(s.data.HNSTopologies, *hnsID)
		if existing == nil {
			return nil, fmt.Errorf("hub-and-spoke topology %s: %w", *hnsID, ErrNotFound)
		}
		base = domain.CopyRecord(existing)
	} else {
		base = domain.CopyRecord(candidates[0])
		base["id"] = uuid.NewString()
		base["name"] = "HNS-" + uuid.NewString()[:4]
		base["topologyType"] = "HUB_AND_SPOKE"
	}

	merged, err := overlay.Preview(base, ov)
	if err != nil {
		return nil, fmt.Errorf("apply override: %w", err)
	}
	merged["endpoints"] = mergeEndpoints(merged["endpoints"], selected)

	if hnsID != nil {
		replaceRecord(s.data.HNSTopologies, merged)
	} else {
		s.data.HNSTopologies = append(s.data.HNSTopologies, merged)
	}
	sess.Merged = domain.RecordIDs(selected)

	log.Printf("Merged %d topologies into %s", len(selected), domain.RecordName(merged))
	return domain.CopyRecord(merged), nil
}

// Deploy removes the point-to-point topologies consumed by the last merge
func (s *Store) Deploy(token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[token]
	if !ok {
		return ErrUnauthorized
	}
	if len(sess.Merged) == 0 {
		return ErrNothingMerged
	}

	gone := make(map[string]struct{}, len(sess.Merged))
	for _, id := range sess.Merged {
		gone[id] = struct{}{}
	}
	for dev, recs := range s.data.Devices {
		s.data.Devices[dev] = without(recs, gone)
	}
	for hns, recs := range s.data.HNSP2PTopologies {
		s.data.HNSP2PTopologies[hns] = without(recs, gone)
	}

	log.Printf("Deployed: removed %d point-to-point topologies", len(gone))
	sess.Merged = nil
	return nil
}

// Pending reports whether task still runs for token
func (s *Store) Pending(token, task string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pending[token][task] > 0
}

// StartTask simulates a background precomputation for token
func (s *Store) StartTask(token, task string) {
	s.mu.Lock()
	s.startLocked(token, task)
	s.mu.Unlock()
}

func (s *Store) startLocked(token, task string) {
	if s.pending[token] == nil {
		s.pending[token] = make(map[string]int)
	}
	s.pending[token][task]++

	var t *time.Timer
	t = time.AfterFunc(s.delay, func() {
		s.mu.Lock()
		delete(s.timers, t)
		s.pending[token][task]--
		done := s.pending[token][task] == 0
		if done {
			delete(s.pending[token], task)
		}
		fn := s.onDone
		s.mu.Unlock()

		if done && fn != nil {
			fn(token, task)
		}
	})
	s.timers[t] = struct{}{}
}

func (s *Store) candidatesLocked(sess *Session) ([]domain.Record, error) {
	switch {
	case sess.HNSTopologyID != "":
		return s.data.HNSP2PTopologies[sess.HNSTopologyID], nil
	case sess.DeviceID != "":
		return s.data.Devices[sess.DeviceID], nil
	}
	return nil, ErrNoDevice
}

// pick returns the records whose id is in ids, in record order
func pick(records []domain.Record, ids []string) []domain.Record {
	want := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}
	var out []domain.Record
	for _, r := range records {
		if _, ok := want[domain.RecordID(r)]; ok {
			out = append(out, r)
		}
	}
	return out
}

func without(records []domain.Record, gone map[string]struct{}) []domain.Record {
	out := records[:0:0]
	for _, r := range records {
		if _, drop := gone[domain.RecordID(r)]; !drop {
			out = append(out, r)
		}
	}
	return out
}

func mergeEndpoints(existing any, selected []domain.Record) []any {
	var out []any
	if list, ok := existing.([]any); ok {
		out = append(out, list...)
	}
	for _, r := range selected {
		eps, _ := r["endpoints"].([]any)
		for _, ep := range eps {
			if !contains(out, ep) {
				out = append(out, domain.DeepCopy(ep))
			}
		}
	}
	if out == nil {
		out = []any{}
	}
	return out
}

func findRecord(records []domain.Record, id string) domain.Record {
	for _, r := range records {
		if domain.RecordID(r) == id {
			return r
		}
	}
	return nil
}

func replaceRecord(records []domain.Record, rec domain.Record) {
	id := domain.RecordID(rec)
	for i, r := range records {
		if domain.RecordID(r) == id {
			records[i] = rec
			return
		}
	}
}

func copyRecords(records []domain.Record) []domain.Record {
	out := make([]domain.Record, len(records))
	for i, r := range records {
		out[i] = domain.CopyRecord(r)
	}
	return out
}

func copyDomains(d map[string]string) map[string]string {
	out := make(map[string]string, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}
