// Package gate sequences a dependent backend call behind a server-pushed
// readiness notification. Run opens one channel per call, waits for the
// "ready" event, closes the channel and only then invokes the callback.
package gate
