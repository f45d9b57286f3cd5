// vi: sw=4 ts=4:

/*

	Mnemonic:	cos
	Abstract:	Class of Service: a named bundle of minimum/maximum requirement
				bounds that a candidate provider must satisfy. Unset numeric
				bounds are permissive (0 for minimums, +Inf for maximums,
				1 for the loss rate).
	Date:		29 July 2026
	Author:		netapp-sim contributors
*/

package gizmos

import "math"

/*
	CoS holds the requirement bounds that a provider's offered resources are
	checked against. Immutable once loaded; callers never mutate a CoS in
	place.
*/
type CoS struct {
	Id   int
	Name string

	Max_response_time    float64
	Min_concurrent_users int
	Min_requests_per_sec float64
	Min_bandwidth        float64
	Max_delay            float64
	Max_jitter           float64
	Max_loss_rate        float64
	Min_cpu              int // cores
	Min_ram              float64 // MB
	Min_disk             float64 // GB
}

/*
	Mk_cos builds a CoS with every max-X bound defaulted to +Inf (the loss
	rate to 1) and every min-X bound defaulted to 0; callers set any tighter
	bounds on the returned value.
*/
func Mk_cos(id int, name string) *CoS {
	return &CoS{
		Id:                id,
		Name:              name,
		Max_response_time: math.Inf(1),
		Max_delay:         math.Inf(1),
		Max_jitter:        math.Inf(1),
		Max_loss_rate:     1,
	}
}

func (c *CoS) Get_id() int {
	if c == nil {
		return 0
	}
	return c.Id
}

func (c *CoS) Get_name() string {
	if c == nil {
		return ""
	}
	return c.Name
}

/*
	Satisfied_by reports whether an offer of cpu cores, ram MB and disk GB
	meets this CoS's min_cpu/min_ram/min_disk bounds. Other CoS bounds
	(response time, jitter, loss...) describe the exchange at a level this
	core does not itself measure and are carried for persistence/reporting
	only, per the out-of-scope monitor/transport collaborators.
*/
func (c *CoS) Satisfied_by(cpu int, ram float64, disk float64) bool {
	if c == nil {
		return true
	}
	return cpu >= c.Min_cpu && ram >= c.Min_ram && disk >= c.Min_disk
}
