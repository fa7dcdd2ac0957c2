// Package handler implements the HTTP API of the reference merge backend.
//
// The routes follow the production backend the client talks to:
//
//	POST /token                 OAuth2 password form, username "<host> <user>"
//	GET  /domains               domain names by uuid
//	GET  /devices               hub candidates
//	GET  /hns-topologies        existing hub-and-spoke topologies
//	GET  /hns-p2p-topologies    members mergeable into ?hns_topology_id
//	GET  /p2p-topologies        point-to-point topologies of ?device_id
//	POST /conflicts             {topology_ids}
//	POST /hns-topology          {p2p_topology_ids, override, hns_topology_id}
//	POST /deploy
//	GET  /status                SSE readiness of ?task for ?token
//
// Every route except /token and /status needs an "Authorization: bearer"
// header, and every route past /domains a domain_id query parameter, which
// selects the session's domain.
//
// Errors are JSON objects of the form {"detail": "..."}. A missing required
// parameter answers 422.
package handler
