// Package log provides the structured logging abstraction used throughout
// canmon, plus adapters for common backends.
//
// The monitor core logs through the [Logger] interface so embedders can
// plug in their own backend. Two adapters ship with the module:
//
//	logger := log.NewZerologAdapter()        // console output via zerolog
//	logger := log.NewNoopLogger()            // discard everything
//
// Wrap an existing zerolog.Logger with NewZerologAdapterWithLogger to share
// one configured logger between canmon and the host application.
package log
