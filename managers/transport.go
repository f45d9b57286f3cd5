// vi: sw=4 ts=4:

/*

	Mnemonic:	transport
	Abstract:	Frame transport for the protocol: broadcast HREQ, unicast
				everything else, and an inbound stream of (source, Packet)
				pairs. Two implementations share the Transport interface:
				a UDP-broadcast simulation transport (used whenever
				SIMULATION_ACTIVE is set, where a raw socket or live NIC is
				not available; the tests use an in-memory fake instead) built
				the way the
				source's agent.go fans frames out to many sessions, and a
				real-mode transport built on gopacket/pcap that is the Go
				analogue of the source's scapy sendp/AnsweringMachine
				sniffer.
	Date:		29 July 2026
	Author:		netapp-sim contributors
*/

package managers

import (
	"net"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcap"
	"github.com/pkg/errors"

	"github.com/youcefouarab/netapp-sim/gizmos"
)

/*
	Inbound is one admitted frame handed to the answering machine: the
	packet and the address it arrived from.
*/
type Inbound struct {
	Src string
	Pkt *gizmos.Packet
}

/*
	Transport is the interface the answering machine and the consumer/
	provider FSMs use to send and receive frames; it hides whether frames
	travel over UDP broadcast (simulation) or raw link-layer capture (real).
*/
type Transport interface {
	LocalAddr() string
	Broadcast(pkt *gizmos.Packet) error
	Unicast(addr string, pkt *gizmos.Packet) error
	Inbound() <-chan Inbound
	Close()
}

/*
	NewTransport builds the configured transport. Simulation mode is the
	default; real mode requires libpcap and an interface capable of raw
	capture. Neither is exercised by the tests, which plug an in-memory
	Transport into the Node directly.
*/
func NewTransport(cfg *Config) (Transport, error) {
	if cfg.SimulationActive {
		return newSimTransport(cfg)
	}
	return newPcapTransport(cfg)
}

// ---------------------------------------------------------------- sim ----

const simBroadcastPort = 37219

/*
	simTransport fans HREQ out to a fixed broadcast UDP port and otherwise
	unicasts directly to a peer's address:port, mirroring the source's use
	of a single L2 broadcast domain without needing raw sockets. Grounded
	on agent.go's send2one/send2all broadcast-vs-targeted send pattern.
*/
type simTransport struct {
	local    string
	conn     *net.UDPConn
	bcastUDP *net.UDPAddr
	in       chan Inbound
	done     chan struct{}
}

func newSimTransport(cfg *Config) (*simTransport, error) {
	addr := &net.UDPAddr{IP: net.ParseIP(cfg.LocalIP), Port: simBroadcastPort}
	conn, err := net.ListenUDP("udp4", addr)
	if err != nil {
		// fall back to the same port bound on all interfaces, common
		// in container/test environments where the configured local IP
		// cannot be bound directly.
		conn, err = net.ListenUDP("udp4", &net.UDPAddr{Port: simBroadcastPort})
		if err != nil {
			return nil, errors.Wrap(err, "transport: sim listen")
		}
	}

	t := &simTransport{
		local:    cfg.LocalIP,
		conn:     conn,
		bcastUDP: &net.UDPAddr{IP: net.IPv4bcast, Port: simBroadcastPort},
		in:       make(chan Inbound, 64),
		done:     make(chan struct{}),
	}
	go t.readLoop()
	return t, nil
}

func (t *simTransport) LocalAddr() string { return t.local }

func (t *simTransport) Broadcast(pkt *gizmos.Packet) error {
	b, err := pkt.Encode()
	if err != nil {
		return errors.Wrap(err, "transport: encode")
	}
	_, err = t.conn.WriteToUDP(b, t.bcastUDP)
	return errors.Wrap(err, "transport: broadcast write")
}

func (t *simTransport) Unicast(addr string, pkt *gizmos.Packet) error {
	b, err := pkt.Encode()
	if err != nil {
		return errors.Wrap(err, "transport: encode")
	}
	dst := &net.UDPAddr{IP: net.ParseIP(addr), Port: simBroadcastPort}
	_, err = t.conn.WriteToUDP(b, dst)
	return errors.Wrap(err, "transport: unicast write")
}

func (t *simTransport) Inbound() <-chan Inbound { return t.in }

func (t *simTransport) Close() {
	close(t.done)
	t.conn.Close()
}

func (t *simTransport) readLoop() {
	buf := make([]byte, 65535)
	for {
		n, src, err := t.conn.ReadFromUDP(buf)
		if err != nil {
			select {
			case <-t.done:
				return
			default:
				nas_sheep.Baa(1, "WRN: transport: read error: %s", err)
				continue
			}
		}

		if src.IP.String() == t.local {
			continue // self-echo of our own broadcast; this is the only
			// self check, the answering machine trusts the transport's filter
		}

		pkt, err := gizmos.Decode(buf[:n])
		if err != nil {
			nas_sheep.Baa(2, "dropping malformed frame from %s: %s", src.IP, err)
			continue
		}
		if !gizmos.Valid_req_id(pkt.ReqId) {
			continue
		}

		select {
		case t.in <- Inbound{Src: src.IP.String(), Pkt: pkt}:
		default:
			nas_sheep.Baa(1, "WRN: transport: inbound queue full, dropping frame from %s", src.IP)
		}
	}
}

// --------------------------------------------------------------- pcap ----

const ethertypeNetappSim = 0x88b6 // unassigned, "local experimental" range

/*
	pcapTransport sends/receives the protocol packet as the payload of a
	raw Ethernet frame with broadcast destination for HREQ and unicast
	destination for everything else, via gopacket/pcap -- the Go analogue
	of the source's scapy Ether()/sendp().
*/
type pcapTransport struct {
	local   string
	iface   string
	handle  *pcap.Handle
	localHW net.HardwareAddr
	in      chan Inbound
}

func newPcapTransport(cfg *Config) (*pcapTransport, error) {
	ifi, err := defaultInterface()
	if err != nil {
		return nil, errors.Wrap(err, "transport: no usable interface for real mode")
	}

	handle, err := pcap.OpenLive(ifi.Name, 1600, true, pcap.BlockForever)
	if err != nil {
		return nil, errors.Wrapf(err, "transport: pcap open %s", ifi.Name)
	}
	if err := handle.SetBPFFilter("ether proto 0x88b6"); err != nil {
		handle.Close()
		return nil, errors.Wrap(err, "transport: bpf filter")
	}

	t := &pcapTransport{
		local:   cfg.LocalIP,
		iface:   ifi.Name,
		handle:  handle,
		localHW: ifi.HardwareAddr,
		in:      make(chan Inbound, 64),
	}
	go t.readLoop()
	return t, nil
}

func defaultInterface() (*net.Interface, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}
	for _, ifi := range ifaces {
		if ifi.Flags&net.FlagLoopback != 0 || ifi.Flags&net.FlagUp == 0 {
			continue
		}
		return &ifi, nil
	}
	return nil, errors.New("transport: no non-loopback interface is up")
}

func (t *pcapTransport) LocalAddr() string { return t.local }

func (t *pcapTransport) send(dst net.HardwareAddr, pkt *gizmos.Packet) error {
	payload, err := pkt.Encode()
	if err != nil {
		return errors.Wrap(err, "transport: encode")
	}

	eth := &layers.Ethernet{
		SrcMAC:       t.localHW,
		DstMAC:       dst,
		EthernetType: ethertypeNetappSim,
	}
	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{}
	if err := gopacket.SerializeLayers(buf, opts, eth, gopacket.Payload(payload)); err != nil {
		return errors.Wrap(err, "transport: serialize")
	}
	return errors.Wrap(t.handle.WritePacketData(buf.Bytes()), "transport: write")
}

var broadcastMAC = net.HardwareAddr{0xff, 0xff, 0xff, 0xff, 0xff, 0xff}

func (t *pcapTransport) Broadcast(pkt *gizmos.Packet) error {
	return t.send(broadcastMAC, pkt)
}

func (t *pcapTransport) Unicast(addr string, pkt *gizmos.Packet) error {
	mac, err := net.ParseMAC(addr)
	if err != nil {
		return errors.Wrapf(err, "transport: bad peer address %q", addr)
	}
	return t.send(mac, pkt)
}

func (t *pcapTransport) Inbound() <-chan Inbound { return t.in }

func (t *pcapTransport) Close() { t.handle.Close() }

func (t *pcapTransport) readLoop() {
	src := gopacket.NewPacketSource(t.handle, layers.LayerTypeEthernet)
	for raw := range src.Packets() {
		ethLayer := raw.Layer(layers.LayerTypeEthernet)
		if ethLayer == nil {
			continue
		}
		eth := ethLayer.(*layers.Ethernet)
		if eth.SrcMAC.String() == t.localHW.String() {
			continue // self-echo
		}

		appLayer := raw.ApplicationLayer()
		if appLayer == nil {
			continue
		}
		pkt, err := gizmos.Decode(appLayer.Payload())
		if err != nil {
			nas_sheep.Baa(2, "dropping malformed frame from %s: %s", eth.SrcMAC, err)
			continue
		}
		if !gizmos.Valid_req_id(pkt.ReqId) {
			continue
		}

		select {
		case t.in <- Inbound{Src: eth.SrcMAC.String(), Pkt: pkt}:
		default:
			nas_sheep.Baa(1, "WRN: transport: inbound queue full, dropping frame from %s", eth.SrcMAC)
		}
	}
}
