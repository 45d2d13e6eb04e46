package ports

import "github.com/canlabs/canmon/pkg/log"

// Logger is the structured logging port. It aliases pkg/log so application
// code can write ports.Logger / ports.String without a second import.
type Logger = log.Logger

// Field is a structured logging key-value pair.
type Field = log.Field

// Field constructors re-exported from pkg/log.
var (
	String   = log.String
	Int      = log.Int
	Uint32   = log.Uint32
	Uint64   = log.Uint64
	Float64  = log.Float64
	Bool     = log.Bool
	Duration = log.Duration
	Err      = log.Err
	Any      = log.Any
)
