// vi: sw=4 ts=4:

/*

	Mnemonic:	consumer
	Abstract:	Consumer FSM: Send_request drives one request from creation
				through up to PROTOCOL_RETRIES outer attempts, each cycling
				HREQ -> RREQ -> DREQ, to either a result or FAIL. Retry,
				timeout and attempt counters are per-phase and independent,
				per the component design. A request accepted late (by the
				answering machine's onDres, running on a different
				goroutine, possibly after this function would otherwise
				have returned FAIL) is handled by a short linger after
				outer-attempt exhaustion rather than by the caller blocking
				indefinitely.
	Date:		29 July 2026
	Author:		netapp-sim contributors
*/

package managers

import (
	"errors"
	"time"

	"github.com/youcefouarab/netapp-sim/gizmos"
)

// ErrNoProvider is returned by Send_request when every outer attempt is
// exhausted without a result; the Request itself is persisted as FAIL.
var ErrNoProvider = errors.New("netapp-sim: no provider accepted the request")

/*
	Send_request is the consumer half of the protocol: generate a request
	id, broadcast discovery, negotiate a reservation with the first
	responder, hand off the data, and return the result (or ErrNoProvider
	once every retry is exhausted).
*/
func (n *Node) Send_request(cosId int, data []byte) ([]byte, error) {
	cos := n.Cos(cosId)
	id := n.reg.Fresh_id()
	req := gizmos.Mk_request(id, cos, data)
	n.reg.Put_request(req)
	ch := n.reg.Reg_cons_wait(id)

	if err := n.per.InsertRequest(req.Snapshot()); err != nil {
		nas_sheep.Baa(1, "WRN: persisting new request %s: %s", id, err)
	}

	for outer := 0; outer < n.cfg.ProtocolRetries; outer++ {
		att := req.New_attempt()
		n.per.InsertAttempt(att.Snapshot())

		host, ok := n.hreqPhase(req, att, ch)
		if !ok {
			continue
		}

		ok = n.rreqPhase(req, att, ch, host)
		n.per.UpdateAttempt(att.Snapshot())
		if !ok {
			continue
		}

		result, done := n.dreqPhase(req, att, ch, host)
		n.per.UpdateAttempt(att.Snapshot())
		if done {
			n.reg.Unreg_cons_wait(id)
			n.reg.Drop_request(id)
			n.finishSuccess(req, result)
			return result, nil
		}

		req.Set_late(true)
	}

	if req.Dres_is_set() {
		result := req.Snapshot().Result
		n.reg.Unreg_cons_wait(id)
		n.reg.Drop_request(id)
		n.finishSuccess(req, result)
		return result, nil
	}

	req.Set_state(gizmos.FAIL)
	if err := n.per.UpdateRequest(req.Snapshot()); err != nil {
		nas_sheep.Baa(1, "WRN: persisting FAIL for %s: %s", id, err)
	}
	n.per.ExportCSV(id)

	go n.lingerForLateDres(req, ch)
	return nil, ErrNoProvider
}

/*
	lingerForLateDres keeps a FAILed request's wait channel and registry
	entry alive for one more PROTOCOL_TIMEOUT so a spontaneous late DRES
	that the outer loop just missed can still be accepted and persisted
	as DRES, per the terminal rule: "if dres_at became set at any point
	... persist as DRES". After the grace window (or immediate success)
	the entry is dropped for good.
*/
func (n *Node) lingerForLateDres(req *gizmos.Request, ch chan Inbound) {
	select {
	case <-req.DoneChan():
		n.finishSuccess(req, req.Snapshot().Result)
	case <-time.After(n.cfg.ProtocolTimeout):
	}
	n.reg.Unreg_cons_wait(req.Id)
	n.reg.Drop_request(req.Id)
}

/*
	onRequestAccepted is called by the answering machine's onDres right
	after it wins Accept_dres, whether the DRES came from the active host
	or was a late/foreign one: persist the request as DRES and export CSV.
	Send_request (or lingerForLateDres) calls finishSuccess again once it
	notices the acceptance; the repeated update and export are harmless.
*/
func (n *Node) onRequestAccepted(req *gizmos.Request) {
	n.finishSuccess(req, req.Snapshot().Result)
}

func (n *Node) finishSuccess(req *gizmos.Request, result []byte) {
	if err := n.per.UpdateRequest(req.Snapshot()); err != nil {
		nas_sheep.Baa(1, "WRN: persisting DRES for %s: %s", req.Id, err)
	}
	n.per.ExportCSV(req.Id)
}

/*
	hreqPhase broadcasts HREQ and waits up to PROTOCOL_TIMEOUT for the
	first matching HRES; first responder wins (tie-break: arrival order on
	the consumer's own inbox, per the design notes' resolution of the
	HRES tie-break open question). No match within the timeout means
	retry from the top of the outer loop.
*/
func (n *Node) hreqPhase(req *gizmos.Request, att *gizmos.Attempt, ch chan Inbound) (string, bool) {
	req.Set_state(gizmos.HREQ)

	pkt := gizmos.Mk_hreq(req.Id, uint32(att.AttemptNo), uint32(req.Get_cos().Get_id()))
	n.transport.Broadcast(pkt)

	deadline := time.Now().Add(n.cfg.ProtocolTimeout)
	in, ok := waitFor(ch, deadline, func(in Inbound) bool {
		return in.Pkt.State == gizmos.HRES
	})
	if !ok {
		return "", false
	}

	att.SetHost(in.Src)
	att.SetHresAt()
	req.SetActiveHost(in.Src)
	return in.Src, true
}

/*
	rreqPhase unicasts RREQ to host and waits for RRES|RCAN from that
	host, up to PROTOCOL_RETRIES times within this outer attempt. A late
	RRES|RCAN from a different host never reaches this loop -- the
	answering machine intercepts and answers it with RCAN before this
	loop would ever see it (see onConsumerReply).
*/
func (n *Node) rreqPhase(req *gizmos.Request, att *gizmos.Attempt, ch chan Inbound, host string) bool {
	req.Set_state(gizmos.RREQ)
	att.SetState(gizmos.RREQ)

	for i := 0; i < n.cfg.ProtocolRetries; i++ {
		n.sendSimple(host, gizmos.RREQ, req.Id)

		deadline := time.Now().Add(n.cfg.ProtocolTimeout)
		in, matched := waitFor(ch, deadline, func(in Inbound) bool {
			return in.Src == host && (in.Pkt.State == gizmos.RRES || in.Pkt.State == gizmos.RCAN)
		})
		if !matched {
			continue
		}
		if in.Pkt.State == gizmos.RCAN {
			att.SetState(gizmos.RCAN)
			return false
		}
		att.SetRresAt()
		return true
	}
	return false
}

/*
	dreqPhase unicasts DREQ(data) to host and waits for the final DRES. It
	does not itself process a DRES from host -- that always goes through
	onDres (see answering.go), which accepts it and closes the request's
	done channel; this loop just needs to notice that and stop. DWAIT
	resets the retry budget without counting against it; DCAN and
	exhausting the budget both fall back to the outer HREQ loop.
*/
func (n *Node) dreqPhase(req *gizmos.Request, att *gizmos.Attempt, ch chan Inbound, host string) ([]byte, bool) {
	req.Set_state(gizmos.DREQ)
	att.SetState(gizmos.DREQ)

	attempts := 0
	for attempts < n.cfg.ProtocolRetries {
		pkt := gizmos.Mk_dreq(req.Id, uint32(att.AttemptNo), req.Data)
		n.transport.Unicast(host, pkt)

		deadline := time.Now().Add(n.cfg.ProtocolTimeout)
		in, matched, done := waitForOrDone(ch, req.DoneChan(), deadline, func(in Inbound) bool {
			return in.Src == host && (in.Pkt.State == gizmos.DWAIT || in.Pkt.State == gizmos.DCAN)
		})

		if done || req.Dres_is_set() {
			return req.Snapshot().Result, true
		}
		if !matched {
			attempts++
			continue
		}

		switch in.Pkt.State {
		case gizmos.DWAIT:
			attempts = 0 // budget reset
			continue
		case gizmos.DCAN:
			att.SetState(gizmos.DCAN)
			return nil, false
		}
	}
	return nil, false
}

// ---------------------------------------------------------------- waiting

/*
	waitFor blocks on ch until a message satisfying match arrives or
	deadline passes, silently discarding non-matching messages (stale
	replies from a prior phase, duplicate HRES after the first, etc.)
	without extending the deadline.
*/
func waitFor(ch <-chan Inbound, deadline time.Time, match func(Inbound) bool) (Inbound, bool) {
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return Inbound{}, false
		}
		select {
		case in := <-ch:
			if match(in) {
				return in, true
			}
		case <-time.After(remaining):
			return Inbound{}, false
		}
	}
}

/*
	waitForOrDone is waitFor with an extra early-exit signal: a request's
	DoneChan, closed by a background DRES acceptance that this call's
	caller needs to notice immediately rather than at its next timeout.
*/
func waitForOrDone(ch <-chan Inbound, done <-chan struct{}, deadline time.Time, match func(Inbound) bool) (Inbound, bool, bool) {
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return Inbound{}, false, false
		}
		select {
		case <-done:
			return Inbound{}, false, true
		case in := <-ch:
			if match(in) {
				return in, true, false
			}
		case <-time.After(remaining):
			return Inbound{}, false, false
		}
	}
}
