// Package bridge implements the execution control protocol: the
// asynchronous command/event contract that lets a controller drive an
// isolated execution engine without blocking and without corrupting
// engine state under overlapping requests.
//
// Two structurally identical bridge instances exist, built from the
// same Host: CPU fronts the Micro4 machine, Assembler fronts the
// assembler. Each Host owns one engine goroutine (the "execution
// context"); the only communication with it is a command channel in and
// an event channel out, so commands preserve program order and all
// engine state stays confined to its goroutine.
//
// Correlated commands carry a monotonically increasing sequence number
// that completion events echo; the correlator resolves each pending
// operation from the first event with its sequence, bounded by a
// per-operation timeout. A timeout abandons only the controller-side
// wait: the engine is synchronous per tick and is never cancelled
// mid-instruction, so a late event may still arrive and is dropped
// idempotently.
package bridge
