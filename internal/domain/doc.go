// Package domain defines the records topomerge works on and how they are
// addressed.
//
// A Record is one VPN topology as decoded from JSON or YAML: a schema-less
// tree of objects, sequences and scalar leaves. Nodes inside a record are
// addressed with a KeyPath, an ordered list of field names and sequence
// positions running from the root towards the leaf.
//
// # Paths
//
// Resolve and Assign share one walker, so a path that reads a value also
// writes it. The text form of a path is a JSONPath restricted to child and
// index steps:
//
//	$.ipsecSettings.lifetimeSeconds
//	endpoints[0].device.id
//
// Paths produced leaf first, as tree widgets tend to report them, are
// turned around once with LeafFirst.
//
// # Errors
//
// Failures are reported with the sentinel errors in errors.go, wrapped with
// context. PathError carries the path that failed to resolve.
package domain
