// Package fixture is an in-memory merge backend for local development and
// end-to-end tests.
//
// Store keeps sessions keyed by uuid token, the records of a fixture file
// and a tracker of simulated background tasks. Selecting a domain starts
// the "topologies" task; OnTaskDone reports completion so a readiness hub
// can wake waiting clients.
//
// Conflicts are computed with Diff. A merge copies its base record, patches
// the override on top and appends the endpoints of the merged topologies.
// It is a stand-in for the production merge, not a reimplementation.
package fixture
