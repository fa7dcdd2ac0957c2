// Package client is the authenticated HTTP client of the merge backend.
//
// Every call carries the session token and the selected domain and device.
// Calls that depend on a background precomputation name a task; they are
// issued only after the backend's /status channel reports that task ready.
package client
