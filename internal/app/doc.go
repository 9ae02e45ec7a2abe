// Package app bootstraps the aggregating proxy process: it loads
// configuration, wires the Upstream Connection Manager, Schema Cache, Tool
// Registry, Capability Aggregator, and Inbound Session Router together, and
// runs the downstream HTTP server until signalled to stop.
//
// Bootstrap follows a two-phase pattern mirrored from the process this
// module generalizes: a Config carries the flags and file path needed to
// load everything, and NewApplication performs the actual wiring, returning
// an Application whose Run blocks for the process's lifetime.
package app
