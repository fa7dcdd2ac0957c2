package fixture

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"topomerge/internal/codec"
	"topomerge/internal/domain"
)

// Data is the content of a fixture file:
//
//	domains:            {<uuid>: <name>}
//	devices:            {<device id>: [point-to-point topologies with that device as an endpoint]}
//	hns_topologies:     [hub-and-spoke topologies]
//	hns_p2p_topologies: {<hub-and-spoke id>: [point-to-point topologies mergeable into it]}
//
// JSON is accepted as well, being a subset of YAML.
type Data struct {
	Domains          map[string]string
	Devices          map[string][]domain.Record
	HNSTopologies    []domain.Record
	HNSP2PTopologies map[string][]domain.Record
}

// LoadFile reads a fixture file
func LoadFile(path string) (*Data, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open fixture: %w", err)
	}
	defer f.Close()

	d, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return d, nil
}

// Parse decodes fixture data
func Parse(r io.Reader) (*Data, error) {
	var doc any
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse fixture: %w", err)
	}
	root, ok := codec.Normalize(doc).(map[string]any)
	if doc != nil && !ok {
		return nil, fmt.Errorf("parse fixture: top level is %s, not an object", domain.KindOf(doc))
	}

	d := &Data{
		Domains:          map[string]string{},
		Devices:          map[string][]domain.Record{},
		HNSP2PTopologies: map[string][]domain.Record{},
	}
	if domains, ok := root["domains"].(map[string]any); ok {
		for id, name := range domains {
			d.Domains[id] = fmt.Sprint(name)
		}
	}
	if len(d.Domains) == 0 {
		d.Domains["default"] = "Global"
	}

	var err error
	if d.Devices, err = recordGroups(root["devices"], "devices"); err != nil {
		return nil, err
	}
	if d.HNSP2PTopologies, err = recordGroups(root["hns_p2p_topologies"], "hns_p2p_topologies"); err != nil {
		return nil, err
	}
	if d.HNSTopologies, err = recordList(root["hns_topologies"], "hns_topologies"); err != nil {
		return nil, err
	}
	return d, nil
}

// DeviceIDs lists the devices in order
func (d *Data) DeviceIDs() []string {
	ids := make([]string, 0, len(d.Devices))
	for id := range d.Devices {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func recordGroups(v any, field string) (map[string][]domain.Record, error) {
	out := map[string][]domain.Record{}
	if v == nil {
		return out, nil
	}
	groups, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("parse fixture: %s is %s, not an object", field, domain.KindOf(v))
	}
	for key, list := range groups {
		recs, err := recordList(list, field+"."+key)
		if err != nil {
			return nil, err
		}
		out[key] = recs
	}
	return out, nil
}

func recordList(v any, field string) ([]domain.Record, error) {
	if v == nil {
		return []domain.Record{}, nil
	}
	list, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("parse fixture: %s is %s, not a list", field, domain.KindOf(v))
	}
	out := make([]domain.Record, 0, len(list))
	for i, item := range list {
		rec, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("parse fixture: %s[%d] is %s, not an object", field, i, domain.KindOf(item))
		}
		out = append(out, rec)
	}
	return out, nil
}
