// Package ports defines the interfaces (ports) that connect the monitor
// core to infrastructure adapters.
//
// In Clean Architecture / Hexagonal Architecture, ports are the boundaries
// between the application core and the outside world. They define what the
// core needs from external systems without specifying how those needs are
// fulfilled.
//
// # Port Interfaces
//
//   - [Transport]: a connected CAN adapter handle (receive/send/close)
//   - [LogSink]: best-effort per-frame logging
//   - [Decoder]: optional signal decoding capability
//   - [Display]: per-frame record notifications for a rendering surface
//   - [Logger]: structured logging abstraction
//
// The pipeline (internal/app) depends only on these interfaces.
// Infrastructure adapters (internal/adapters) implement them with concrete
// implementations (serial adapters, log files, replay sources).
package ports
