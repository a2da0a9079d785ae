// Package xerrors defines the error kind taxonomy used across the storage
// engine (spec §7) and the propagation helpers built on cockroachdb/errors.
package xerrors

import (
	"github.com/cockroachdb/errors"
)

// Kind is a sentinel error identifying one of the error categories the
// storage engine distinguishes. Callers match kinds with errors.Is.
type Kind error

var (
	// NotConnected is returned when a public operation is attempted while
	// the engine is not in the Connected state.
	NotConnected Kind = errors.New("nuvex: not connected")

	// L3Write is fatal on a default set/increment: the write did not reach
	// the source of truth, so the whole operation must fail.
	L3Write Kind = errors.New("nuvex: l3 write failed")

	// L3Read is non-fatal: the caller falls back to treating it as a miss.
	L3Read Kind = errors.New("nuvex: l3 read failed")

	// L2Transient is non-fatal: treated as a miss, or as a best-effort
	// failure on cache fan-out.
	L2Transient Kind = errors.New("nuvex: l2 transient error")

	// L1Internal is non-fatal: treated as a miss.
	L1Internal Kind = errors.New("nuvex: l1 internal error")

	// SchemaInvalidIdentifier is fatal during schema setup (I6 violation).
	SchemaInvalidIdentifier Kind = errors.New("nuvex: invalid identifier")

	// SchemaSetup is fatal during schema setup.
	SchemaSetup Kind = errors.New("nuvex: schema setup failed")

	// BackupIO is fatal to the backup operation only.
	BackupIO Kind = errors.New("nuvex: backup i/o error")

	// RestoreFormat is fatal to the restore operation only.
	RestoreFormat Kind = errors.New("nuvex: restore format error")

	// Serialization is a per-entry failure: get returns absent, set fails
	// the call.
	Serialization Kind = errors.New("nuvex: serialization error")
)

// Wrap attaches kind to err as a markable sentinel while preserving err's
// message and stack trace.
func Wrap(err error, kind Kind, msg string) error {
	if err == nil {
		return nil
	}
	return errors.Mark(errors.Wrap(err, msg), kind)
}

// New creates a new error of the given kind with a stack trace attached at
// the call site.
func New(kind Kind, msg string) error {
	return errors.Mark(errors.New(msg), kind)
}

// Newf is New with formatting.
func Newf(kind Kind, format string, args ...interface{}) error {
	return errors.Mark(errors.Newf(format, args...), kind)
}

// Is reports whether err is marked with kind, per errors.Is semantics.
func Is(err error, kind Kind) bool {
	return errors.Is(err, kind)
}
