package managers

import (
	"sync"

	"github.com/youcefouarab/netapp-sim/gizmos"
)

/*
	fakeHub wires a small set of in-process fakeTransports together so the
	FSMs can be exercised end to end without a real socket or NIC, the way
	the teacher's agent.go fans frames out to many sessions in memory.
*/
type fakeHub struct {
	mu    sync.Mutex
	peers map[string]*fakeTransport
	drop  map[string]bool // addresses whose inbound frames are silently discarded
}

func newFakeHub() *fakeHub {
	return &fakeHub{peers: make(map[string]*fakeTransport), drop: make(map[string]bool)}
}

func (h *fakeHub) register(addr string, t *fakeTransport) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.peers[addr] = t
}

func (h *fakeHub) deliver(src string, dst string, pkt *gizmos.Packet) {
	h.mu.Lock()
	t, ok := h.peers[dst]
	dropped := h.drop[dst]
	h.mu.Unlock()
	if !ok || dropped {
		return
	}
	select {
	case t.in <- Inbound{Src: src, Pkt: pkt}:
	default:
	}
}

func (h *fakeHub) broadcast(src string, pkt *gizmos.Packet) {
	h.mu.Lock()
	addrs := make([]string, 0, len(h.peers))
	for a := range h.peers {
		if a != src {
			addrs = append(addrs, a)
		}
	}
	h.mu.Unlock()
	for _, a := range addrs {
		h.deliver(src, a, pkt)
	}
}

type fakeTransport struct {
	addr string
	hub  *fakeHub
	in   chan Inbound
}

func newFakeTransport(addr string, hub *fakeHub) *fakeTransport {
	t := &fakeTransport{addr: addr, hub: hub, in: make(chan Inbound, 64)}
	hub.register(addr, t)
	return t
}

func (t *fakeTransport) LocalAddr() string { return t.addr }

func (t *fakeTransport) Broadcast(pkt *gizmos.Packet) error {
	t.hub.broadcast(t.addr, pkt)
	return nil
}

func (t *fakeTransport) Unicast(addr string, pkt *gizmos.Packet) error {
	t.hub.deliver(t.addr, addr, pkt)
	return nil
}

func (t *fakeTransport) Inbound() <-chan Inbound { return t.in }

func (t *fakeTransport) Close() {}

/*
	testConfig returns a Config tuned for fast, deterministic tests: short
	timeouts, few retries, simulation-mode capacity.
*/
func testConfig() *Config {
	return &Config{
		DatabasePath:     ":memory:",
		SimulationActive: true,
		HostsUseDefault:  true,
		HostsDefault:     HostCaps{Cpu: 4, Ram: 4096, Disk: 100},
		HostsOverride:    map[string]HostCaps{},
		ProtocolTimeout:  testTimeout,
		ProtocolRetries:  3,
	}
}

func mustNode(addr string, hub *fakeHub, cos *gizmos.CoS) *Node {
	cfg := testConfig()
	cfg.LocalIP = addr
	transport := newFakeTransport(addr, hub)
	ledger := gizmos.Mk_ledger()
	per, err := Mk_persistence(cfg)
	if err != nil {
		panic(err)
	}
	per.Start()
	per.InsertCos(cos)
	reg := Mk_registry(per.DB())
	mon := Mk_monitor(cfg, cfg.ProtocolTimeout)
	n := Mk_node(cfg, transport, ledger, reg, mon, per)
	n.Run()
	return n
}
