// vi: sw=4 ts=4:

/*

	Mnemonic:	answering
	Abstract:	Answering Machine: the inbound-packet dispatcher. Reads every
				admitted frame off the transport and, per packet state,
				either drives a provider-side branch (HREQ/RREQ/DREQ/DACK),
				resolves a consumer-side late/foreign DRES, or forwards an
				ordinary reply to the consumer task that is sniffing for it.
				Self-echo and malformed-frame filtering already happened in
				the transport (see transport.go); this dispatcher only ever
				sees admitted packets, per the single-threaded-per-packet
				design in the component design.
	Date:		29 July 2026
	Author:		netapp-sim contributors
*/

package managers

import (
	"time"

	"github.com/youcefouarab/netapp-sim/gizmos"
)

func (n *Node) runAnsweringMachine() {
	for in := range n.transport.Inbound() {
		n.dispatch(in)
	}
}

/*
	dispatch is the tagged-variant handler table the design notes call for:
	one case per wire state, replacing what the source expresses as a long
	conditional chain.
*/
func (n *Node) dispatch(in Inbound) {
	pkt := in.Pkt
	switch pkt.State {
	case gizmos.HREQ:
		n.onHreq(in.Src, pkt)
	case gizmos.RREQ:
		n.onRreq(in.Src, pkt)
	case gizmos.DREQ:
		n.onDreq(in.Src, pkt)
	case gizmos.DACK:
		n.onDack(in.Src, pkt)
	case gizmos.DRES:
		n.onDres(in.Src, pkt)
	case gizmos.HRES, gizmos.DWAIT:
		n.onConsumerReply(in.Src, pkt)
	case gizmos.RRES:
		n.onConsumerReply(in.Src, pkt)
	case gizmos.RCAN, gizmos.DCAN:
		// RCAN/DCAN is ambiguous by state alone: it answers a consumer's
		// RREQ/DREQ, but a consumer can also send either one unsolicited
		// to a provider-side entry (revoking a losing candidate, or
		// declining a foreign/late DRES). A live consumer request for
		// this id means we're the consumer it's replying to; otherwise
		// it's addressed to our provider-side entry.
		if n.reg.Get_request(pkt.ReqId) != nil {
			n.onConsumerReply(in.Src, pkt)
		} else {
			n.onProviderCancel(in.Src, pkt)
		}
	}
}

/*
	requirementsFor converts a CoS's resource bounds into the Capacity
	shape the ledger checks/reserves/frees against.
*/
func requirementsFor(cos *gizmos.CoS) gizmos.Capacity {
	if cos == nil {
		return gizmos.Capacity{}
	}
	return gizmos.Capacity{Cpu: cos.Min_cpu, Ram: cos.Min_ram, Disk: cos.Min_disk}
}

func (n *Node) sendSimple(addr string, state uint8, reqId string) {
	n.transport.Unicast(addr, gizmos.Mk_simple(state, reqId))
}

// ------------------------------------------------------------- consumer side

/*
	onConsumerReply handles every reply state a consumer task might be
	sniffing for (HRES, RRES, DWAIT; RCAN/DCAN routed here only when a
	live request owns the id). DRES is handled separately by onDres since
	its late-acceptance rules apply whether or not a consumer task is
	actively waiting.
*/
func (n *Node) onConsumerReply(src string, pkt *gizmos.Packet) {
	req := n.reg.Get_request(pkt.ReqId)
	if req == nil {
		return // no such live request on this node; drop
	}

	if pkt.State == gizmos.HRES {
		n.logResponse(req, src, pkt)
	}

	if pkt.State == gizmos.RRES || pkt.State == gizmos.RCAN {
		active := req.ActiveHost()
		if active != "" && src != active {
			// late reply from a previous/losing candidate: revoke it
			// without disturbing whatever the request is currently
			// waiting on.
			n.sendSimple(src, gizmos.RCAN, pkt.ReqId)
			return
		}
	}

	n.deliver(req, src, pkt)
}

func (n *Node) deliver(req *gizmos.Request, src string, pkt *gizmos.Packet) {
	ch := n.reg.Cons_wait_chan(req.Id)
	if ch == nil {
		return
	}
	select {
	case ch <- Inbound{Src: src, Pkt: pkt}:
	default:
		nas_sheep.Baa(1, "WRN: consumer wait queue full for %s, dropping %s from %s", req.Id, gizmos.State_name(pkt.State), src)
	}
}

func (n *Node) logResponse(req *gizmos.Request, src string, pkt *gizmos.Packet) {
	resp := &gizmos.Response{
		ReqId:     req.Id,
		AttemptNo: int(pkt.AttemptNo),
		Host:      src,
		Cpu:       int(pkt.CpuOffer),
		Ram:       pkt.RamOffer,
		Disk:      pkt.DiskOffer,
		Timestamp: time.Now().Unix(),
	}
	if err := n.per.InsertResponse(resp); err != nil {
		nas_sheep.Baa(1, "WRN: persisting response for %s from %s: %s", req.Id, src, err)
	}
}

/*
	onDres implements the late/foreign DRES rules in full: the host a
	request is actively negotiating with always wins if dres_at is still
	unset; a foreign host only wins if the request has been marked late.
	A foreign DRES arriving while the request is neither late nor already
	accepted is dropped without a reply. Anything else is answered per the
	terminal table (DACK for a repeat from the already-accepted host, DCAN
	for anyone else).
*/
func (n *Node) onDres(src string, pkt *gizmos.Packet) {
	req := n.reg.Get_request(pkt.ReqId)
	if req == nil {
		return
	}

	foreign := src != req.ActiveHost()
	if foreign && !req.Is_late() && !req.Dres_is_set() {
		return // not eligible yet and nothing to answer about
	}

	if req.Accept_dres(src, pkt.Data) {
		n.sendSimple(src, gizmos.DACK, pkt.ReqId)
		n.onRequestAccepted(req)
		return
	}

	if req.GetHost() == src {
		n.sendSimple(src, gizmos.DACK, pkt.ReqId) // idempotent repeat
	} else {
		n.sendSimple(src, gizmos.DCAN, pkt.ReqId) // lost the race
	}
}

// ------------------------------------------------------------- provider side

/*
	onProviderCancel handles an RCAN/DCAN the answering machine decided is
	addressed to one of our provider-side entries rather than replying to
	something we ourselves sent as a consumer.
*/
func (n *Node) onProviderCancel(src string, pkt *gizmos.Packet) {
	pr := n.reg.Get_provider_request(src, pkt.ReqId)
	if pr == nil {
		return
	}

	switch pkt.State {
	case gizmos.RCAN:
		if pr.Cas_state(gizmos.RRES, gizmos.HREQ) {
			pr.Cancel() // stop the reservation-responder's retry loop
			need := requirementsFor(pr.Get_cos())
			if pr.Mark_freed() {
				n.ledger.Free(need)
			}
		}
	case gizmos.DCAN:
		need := requirementsFor(pr.Get_cos())
		if pr.Mark_freed() {
			n.ledger.Free(need)
		}
		pr.Cancel()
		n.reg.Drop_provider_request(src, pkt.ReqId)
	}
}
