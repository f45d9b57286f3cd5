// vi: sw=4 ts=4:

/*

	Mnemonic:	provider
	Abstract:	Provider FSM: the HREQ/RREQ/DREQ/DACK branches of the
				answering machine, plus the two background responders
				(reservation-responder, execution-responder) that retry a
				unicast reply against the bounded PROTOCOL_RETRIES/
				PROTOCOL_TIMEOUT budget. Keyed by (peer_address, req_id),
				per the data model; one ProviderRequest per key, created on
				first HREQ and dropped on DACK/DCAN/retry exhaustion.
	Date:		29 July 2026
	Author:		netapp-sim contributors
*/

package managers

import (
	"time"

	"github.com/youcefouarab/netapp-sim/gizmos"
)

/*
	onHreq: a new entry starts in HREQ; check_resources decides whether we
	reply HRES (and move to HRES) or stay silent. Repeated HREQs for an
	entry already in RRES or DRES are ignored -- the exchange has already
	moved on, or completed.
*/
func (n *Node) onHreq(src string, pkt *gizmos.Packet) {
	cos := n.Cos(int(pkt.Hreq_cos_id()))
	pr, created := n.reg.Get_or_make_provider_request(src, pkt.ReqId, cos)
	if !created {
		pr.Set_cos(cos) // the consumer's CoS choice may change across retries
	}

	switch pr.Get_state() {
	case gizmos.RRES, gizmos.DRES:
		return
	}

	cap := n.mon.Available()
	need := requirementsFor(cos)
	if n.ledger.Check(cap, need) {
		pr.Set_state(gizmos.HRES)
		snap := n.ledger.Snapshot(cap)
		n.transport.Unicast(src, gizmos.Mk_hres(pkt.ReqId, pkt.AttemptNo, uint32(snap.Cpu), snap.Ram, snap.Disk))
	} else {
		pr.Set_state(gizmos.HREQ) // stay put; no reply
	}
}

/*
	onRreq: only valid for an entry in HRES. A successful reserve moves the
	entry to RRES and hands it off to a background reservation-responder;
	a failed reserve (resources went away between HRES and RREQ) answers
	RCAN immediately and reverts to HREQ.
*/
func (n *Node) onRreq(src string, pkt *gizmos.Packet) {
	pr := n.reg.Get_provider_request(src, pkt.ReqId)
	if pr == nil || pr.Get_state() != gizmos.HRES {
		return
	}

	cos := pr.Get_cos()
	cap := n.mon.Available()
	need := requirementsFor(cos)

	if !n.ledger.Reserve(cap, need) {
		pr.Set_state(gizmos.HREQ)
		n.transport.Unicast(src, gizmos.Mk_simple(gizmos.RCAN, pkt.ReqId))
		return
	}

	pr.Reset_freed()
	pr.Set_state(gizmos.RRES)
	go n.reservationResponder(src, pkt.ReqId, pr, need)
}

/*
	reservationResponder retries RRES up to PROTOCOL_RETRIES times at
	PROTOCOL_TIMEOUT apiece. It stops early, without touching the
	reservation, the moment the entry's cancel channel fires with
	Is_executing set (DREQ arrived -- treated as implicit acceptance per
	the resolved open question); it also stops early, having already been
	reverted and freed by onProviderCancel, if the channel fires without
	Is_executing set (an explicit RCAN arrived). Only if the retry budget
	is exhausted with neither does it revert/free/RCAN itself.
*/
func (n *Node) reservationResponder(peer string, reqId string, pr *gizmos.ProviderRequest, need gizmos.Capacity) {
	cancelCh := pr.Cancel_chan()

	for i := 0; i < n.cfg.ProtocolRetries; i++ {
		n.transport.Unicast(peer, gizmos.Mk_simple(gizmos.RRES, reqId))

		select {
		case <-cancelCh:
			return
		case <-time.After(n.cfg.ProtocolTimeout):
			continue
		}
	}

	if pr.Cas_state(gizmos.RRES, gizmos.HREQ) {
		if pr.Mark_freed() {
			n.ledger.Free(need)
		}
		n.transport.Unicast(peer, gizmos.Mk_simple(gizmos.RCAN, reqId))
	}
}

/*
	onDreq covers all four entry states named in the component design:
	DRES resends the cached result (idempotent), RRES with a task already
	running answers DWAIT, RRES without one starts the execution-
	responder, and HREQ (reservation released by an earlier cancellation
	racing ahead of this DREQ) attempts a fresh silent reserve before
	falling through to either execution or DCAN.
*/
func (n *Node) onDreq(src string, pkt *gizmos.Packet) {
	pr := n.reg.Get_provider_request(src, pkt.ReqId)
	if pr == nil {
		return
	}

	switch pr.Get_state() {
	case gizmos.DRES:
		n.transport.Unicast(src, gizmos.Mk_dres(pkt.ReqId, pkt.AttemptNo, pr.Get_result()))
		return

	case gizmos.RRES:
		if pr.Is_executing() {
			n.transport.Unicast(src, gizmos.Mk_simple(gizmos.DWAIT, pkt.ReqId))
			return
		}
		pr.Set_executing(true)
		pr.Cancel() // implicit acceptance: stop any reservation-responder retries
		go n.executionResponder(src, pkt.ReqId, pr, pkt.Data, pkt.AttemptNo, requirementsFor(pr.Get_cos()))
		return

	case gizmos.HREQ:
		cos := pr.Get_cos()
		cap := n.mon.Available()
		need := requirementsFor(cos)
		if n.ledger.Reserve(cap, need) {
			pr.Reset_freed()
			pr.Set_state(gizmos.RRES)
			pr.Set_executing(true)
			go n.executionResponder(src, pkt.ReqId, pr, pkt.Data, pkt.AttemptNo, need)
		} else {
			n.transport.Unicast(src, gizmos.Mk_simple(gizmos.DCAN, pkt.ReqId))
		}
		return
	}
	// HRES: out of sequence (no reservation attempted yet); conservatively dropped
}

/*
	executionResponder runs the (out-of-scope) executor, then retries DRES
	up to PROTOCOL_RETRIES times at PROTOCOL_TIMEOUT apiece. A DCAN ends
	the loop early; it arrives via onProviderCancel, which has already
	freed the reservation and dropped the entry, so this goroutine only
	needs to stop. Retry exhaustion frees and drops on its own.
*/
func (n *Node) executionResponder(peer string, reqId string, pr *gizmos.ProviderRequest, data []byte, attemptNo uint32, need gizmos.Capacity) {
	result := n.exec.Execute(data)
	pr.Set_result(result)
	pr.Set_state(gizmos.DRES)
	cancelCh := pr.Rearm_cancel()

	for i := 0; i < n.cfg.ProtocolRetries; i++ {
		n.transport.Unicast(peer, gizmos.Mk_dres(reqId, attemptNo, result))

		select {
		case <-cancelCh:
			return
		case <-time.After(n.cfg.ProtocolTimeout):
			continue
		}
	}

	if pr.Mark_freed() {
		n.ledger.Free(need)
	}
	n.reg.Drop_provider_request(peer, reqId)
}

/*
	onDack: releases and drops a DRES entry; the other two ways are a DCAN
	and the execution-responder exhausting its retries. Ignored for any
	other state.
*/
func (n *Node) onDack(src string, pkt *gizmos.Packet) {
	pr := n.reg.Get_provider_request(src, pkt.ReqId)
	if pr == nil || pr.Get_state() != gizmos.DRES {
		return
	}
	need := requirementsFor(pr.Get_cos())
	if pr.Mark_freed() {
		n.ledger.Free(need)
	}
	pr.Cancel() // stop the execution-responder's DRES resend loop
	n.reg.Drop_provider_request(src, pkt.ReqId)
}
