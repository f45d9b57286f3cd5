// vi: sw=4 ts=4:

/*

	Mnemonic:	executor
	Abstract:	Application Executor: the out-of-scope collaborator invoked
				as execute(bytes) -> bytes by the provider's execution-
				responder once a reservation is in place. Real application
				execution is explicitly out of scope (see non-goals); this
				stub takes a bounded random amount of time, configured by
				SIMULATION_EXEC_MIN/MAX, and always returns bytes.
	Date:		29 July 2026
	Author:		netapp-sim contributors
*/

package managers

import (
	"math/rand"
	"time"
)

/*
	Executor is the provider-side stand-in for real application execution.
*/
type Executor struct {
	min time.Duration
	max time.Duration
}

func Mk_executor(min time.Duration, max time.Duration) *Executor {
	if max < min {
		min, max = 0, time.Second
	}
	return &Executor{min: min, max: max}
}

/*
	Execute blocks for a uniformly random duration in [min, max) (exactly
	min when the two are equal) and
	returns a result derived from data. The transform itself is a stand-in
	-- out of scope per the spec -- so it need only be deterministic and
	clearly distinguishable from the input for tests/observability.
*/
func (e *Executor) Execute(data []byte) []byte {
	span := e.max - e.min
	d := e.min
	if span > 0 {
		d += time.Duration(rand.Int63n(int64(span)))
	}
	time.Sleep(d)

	out := make([]byte, 0, len(data)+7)
	out = append(out, "result:"...)
	out = append(out, data...)
	return out
}
