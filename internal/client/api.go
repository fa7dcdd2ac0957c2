package client

import (
	"context"
	"errors"
	"net/http"
	"net/url"

	"topomerge/internal/domain"
	"topomerge/internal/overlay"
)

// TaskTopologies is the background fetch every topology listing depends on
const TaskTopologies = "topologies"

// ErrEmptyMerge is returned when the backend answers a merge with no topology
var ErrEmptyMerge = errors.New("merge returned no topology")

// LoginResponse is the answer of POST /token
type LoginResponse struct {
	AccessToken string            `json:"access_token"`
	TokenType   string            `json:"token_type"`
	Domains     map[string]string `json:"domains"`
}

// MergeRequest is the body of POST /hns-topology. A nil HNSTopologyID
// creates a new hub-and-spoke topology.
type MergeRequest struct {
	P2PTopologyIDs []string         `json:"p2p_topology_ids"`
	Override       overlay.Override `json:"override"`
	HNSTopologyID  *string          `json:"hns_topology_id"`
}

// Login authenticates against host as user and stores the token in the session
func (c *Client) Login(ctx context.Context, host, user, password string) (LoginResponse, error) {
	form := url.Values{
		"username":   {host + " " + user},
		"password":   {password},
		"grant_type": {"password"},
	}
	var resp LoginResponse
	if err := c.Call(ctx, Request{Method: http.MethodPost, Path: "token", Form: form}, &resp); err != nil {
		return LoginResponse{}, err
	}
	c.update(func(s *Session) { s.Token = resp.AccessToken })
	return resp, nil
}

// Domains lists domain names by uuid
func (c *Client) Domains(ctx context.Context) (map[string]string, error) {
	var out map[string]string
	err := c.Call(ctx, Request{Path: "domains"}, &out)
	return out, err
}

// SelectDomain scopes later calls to domain id
func (c *Client) SelectDomain(id string) {
	c.update(func(s *Session) { s.DomainID = id })
}

// SelectDevice scopes later calls to the hub device id. A new
// hub-and-spoke topology will be built, so any merge target is dropped.
func (c *Client) SelectDevice(id string) {
	c.update(func(s *Session) {
		s.DeviceID = id
		s.HNSTopologyID = ""
	})
}

// Devices lists the registered devices of the selected domain
func (c *Client) Devices(ctx context.Context) ([]domain.Record, error) {
	return c.records(ctx, Request{Path: "devices"})
}

// HNSTopologies lists existing hub-and-spoke topologies. The listing waits
// for the backend's topology fetch.
func (c *Client) HNSTopologies(ctx context.Context) ([]domain.Record, error) {
	return c.records(ctx, Request{Path: "hns-topologies", Task: TaskTopologies})
}

// HNSP2PTopologies selects hub-and-spoke topology id as the merge target and
// lists the point-to-point topologies that can be merged into it
func (c *Client) HNSP2PTopologies(ctx context.Context, id string) ([]domain.Record, error) {
	c.update(func(s *Session) { s.HNSTopologyID = id })
	return c.records(ctx, Request{Path: "hns-p2p-topologies", Params: url.Values{"hns_topology_id": {id}}})
}

// P2PTopologies lists the point-to-point topologies of the selected device
func (c *Client) P2PTopologies(ctx context.Context) ([]domain.Record, error) {
	return c.records(ctx, Request{Path: "p2p-topologies"})
}

// Conflicts asks for the structural diff of the given topologies
func (c *Client) Conflicts(ctx context.Context, ids []string) (overlay.Conflict, error) {
	body := map[string]any{"topology_ids": nonNil(ids)}
	out := overlay.Conflict{}
	if err := c.Call(ctx, Request{Method: http.MethodPost, Path: "conflicts", Body: body}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Merge merges the topologies applying the override and returns the
// resulting hub-and-spoke topology. The session's merge target is used
// when req has none.
func (c *Client) Merge(ctx context.Context, req MergeRequest) (domain.Record, error) {
	req.P2PTopologyIDs = nonNil(req.P2PTopologyIDs)
	if req.Override == nil {
		req.Override = overlay.Override{}
	}
	if req.HNSTopologyID == nil {
		if id := c.Session().HNSTopologyID; id != "" {
			req.HNSTopologyID = &id
		}
	}

	var out []domain.Record
	if err := c.Call(ctx, Request{Method: http.MethodPost, Path: "hns-topology", Body: req}, &out); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, ErrEmptyMerge
	}
	return out[0], nil
}

// Deploy removes the merged point-to-point topologies and deploys
func (c *Client) Deploy(ctx context.Context) error {
	return c.Call(ctx, Request{Method: http.MethodPost, Path: "deploy"}, nil)
}

func (c *Client) records(ctx context.Context, req Request) ([]domain.Record, error) {
	var out []domain.Record
	if err := c.Call(ctx, req, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func nonNil(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}
