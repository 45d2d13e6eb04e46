// Package domain holds the core entities of the CAN monitor: frames,
// per-identifier message records, payload history, display modes, and the
// domain error set.
//
// Entities here have no dependencies on transports, sinks, or the pipeline;
// they are plain values shared by every layer.
package domain
