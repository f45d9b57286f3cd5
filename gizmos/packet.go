// vi: sw=4 ts=4:

/*

	Mnemonic:	packet
	Abstract:	Wire codec for the single protocol packet type: a 1 byte state,
				a fixed 10 byte req_id, and a set of fields that are only
				present for certain states. Network byte order throughout;
				floats are IEEE 754 binary64. This is the Go analogue of the
				source's scapy MyProtocol layer.
	Date:		29 July 2026
	Author:		netapp-sim contributors
*/

package gizmos

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// protocol states
const (
	FAIL  uint8 = 0
	HREQ  uint8 = 1
	HRES  uint8 = 2
	RREQ  uint8 = 3
	RRES  uint8 = 4
	DREQ  uint8 = 5
	DRES  uint8 = 6
	DACK  uint8 = 7
	RCAN  uint8 = 8
	DCAN  uint8 = 9
	DWAIT uint8 = 10
)

func State_name(s uint8) string {
	switch s {
	case FAIL:
		return "FAIL"
	case HREQ:
		return "HREQ"
	case HRES:
		return "HRES"
	case RREQ:
		return "RREQ"
	case RRES:
		return "RRES"
	case DREQ:
		return "DREQ"
	case DRES:
		return "DRES"
	case DACK:
		return "DACK"
	case RCAN:
		return "RCAN"
	case DCAN:
		return "DCAN"
	case DWAIT:
		return "DWAIT"
	}
	return "UNKNOWN"
}

/*
	Packet is the single on-wire message shape. Which of the conditional
	fields are meaningful depends on State; Encode/Decode only touch the
	fields relevant to that state.
*/
type Packet struct {
	State uint8
	ReqId string // exactly REQ_ID_LEN bytes

	AttemptNo uint32

	CpuOffer  uint32
	RamOffer  float64
	DiskOffer float64

	Data []byte // DREQ/DRES payload
}

/*
	Answers reports whether receiving `self` is a valid reply to having sent
	`req`, per the expected-reply table in the wire format. Match key is the
	req_id; callers are expected to have already verified ReqId equality.
*/
func (p *Packet) Answers(req *Packet) bool {
	if p == nil || req == nil {
		return false
	}
	switch req.State {
	case HREQ:
		return p.State == HRES
	case RREQ:
		return p.State == RRES || p.State == RCAN
	case RRES:
		return p.State == DREQ || p.State == RCAN
	case DREQ:
		return p.State == DRES || p.State == DWAIT || p.State == DCAN
	case DRES:
		return p.State == DACK || p.State == DCAN
	}
	return false
}

/*
	Encode serialises the packet to its wire representation.
*/
func (p *Packet) Encode() ([]byte, error) {
	if p == nil {
		return nil, fmt.Errorf("packet: encode of nil packet")
	}
	if len(p.ReqId) != REQ_ID_LEN {
		return nil, fmt.Errorf("packet: req_id must be %d bytes, got %d", REQ_ID_LEN, len(p.ReqId))
	}

	buf := &bytes.Buffer{}
	buf.WriteByte(p.State)
	buf.WriteString(p.ReqId)

	switch p.State {
	case HREQ:
		binary.Write(buf, binary.BigEndian, p.AttemptNo)
		binary.Write(buf, binary.BigEndian, p.CpuOffer) // cos_id, see Hreq_cos_id
	case HRES:
		binary.Write(buf, binary.BigEndian, p.AttemptNo)
		binary.Write(buf, binary.BigEndian, p.CpuOffer)
		binary.Write(buf, binary.BigEndian, p.RamOffer)
		binary.Write(buf, binary.BigEndian, p.DiskOffer)
	case DREQ, DRES:
		binary.Write(buf, binary.BigEndian, p.AttemptNo)
		buf.Write(p.Data)
	// RREQ, RRES, RCAN, DACK, DCAN, DWAIT carry no conditional fields
	}

	return buf.Bytes(), nil
}

/*
	Decode parses b into a Packet. Returns an error for frames shorter than
	the fixed header; the answering machine treats that as a malformed
	packet to be silently dropped, not a propagated error.
*/
func Decode(b []byte) (*Packet, error) {
	if len(b) < 1+REQ_ID_LEN {
		return nil, fmt.Errorf("packet: short frame (%d bytes)", len(b))
	}

	p := &Packet{
		State: b[0],
		ReqId: string(b[1 : 1+REQ_ID_LEN]),
	}
	rest := bytes.NewReader(b[1+REQ_ID_LEN:])

	switch p.State {
	case HREQ:
		if err := binary.Read(rest, binary.BigEndian, &p.AttemptNo); err != nil {
			return nil, fmt.Errorf("packet: truncated HREQ: %w", err)
		}
		if err := binary.Read(rest, binary.BigEndian, &p.CpuOffer); err != nil { // cos_id
			return nil, fmt.Errorf("packet: truncated HREQ cos_id: %w", err)
		}
	case HRES:
		if err := binary.Read(rest, binary.BigEndian, &p.AttemptNo); err != nil {
			return nil, fmt.Errorf("packet: truncated HRES: %w", err)
		}
		if err := binary.Read(rest, binary.BigEndian, &p.CpuOffer); err != nil {
			return nil, fmt.Errorf("packet: truncated HRES cpu_offer: %w", err)
		}
		if err := binary.Read(rest, binary.BigEndian, &p.RamOffer); err != nil {
			return nil, fmt.Errorf("packet: truncated HRES ram_offer: %w", err)
		}
		if err := binary.Read(rest, binary.BigEndian, &p.DiskOffer); err != nil {
			return nil, fmt.Errorf("packet: truncated HRES disk_offer: %w", err)
		}
	case DREQ, DRES:
		if err := binary.Read(rest, binary.BigEndian, &p.AttemptNo); err != nil {
			return nil, fmt.Errorf("packet: truncated %s attempt_no: %w", State_name(p.State), err)
		}
		p.Data = make([]byte, rest.Len())
		rest.Read(p.Data)
	}

	return p, nil
}

/*
	Mk_hreq builds an HREQ packet. cos_id travels in CpuOffer to keep the
	codec to a single conditional-fields table per state; callers use
	Hreq_cos_id/Packet literal construction instead of touching CpuOffer
	directly outside this file.
*/
func Mk_hreq(reqId string, attemptNo uint32, cosId uint32) *Packet {
	return &Packet{State: HREQ, ReqId: reqId, AttemptNo: attemptNo, CpuOffer: cosId}
}

func (p *Packet) Hreq_cos_id() uint32 {
	if p == nil {
		return 0
	}
	return p.CpuOffer
}

func Mk_hres(reqId string, attemptNo uint32, cpu uint32, ram float64, disk float64) *Packet {
	return &Packet{State: HRES, ReqId: reqId, AttemptNo: attemptNo, CpuOffer: cpu, RamOffer: ram, DiskOffer: disk}
}

func Mk_simple(state uint8, reqId string) *Packet {
	return &Packet{State: state, ReqId: reqId}
}

func Mk_dreq(reqId string, attemptNo uint32, data []byte) *Packet {
	return &Packet{State: DREQ, ReqId: reqId, AttemptNo: attemptNo, Data: data}
}

func Mk_dres(reqId string, attemptNo uint32, data []byte) *Packet {
	return &Packet{State: DRES, ReqId: reqId, AttemptNo: attemptNo, Data: data}
}
