// vi: sw=4 ts=4:

/*

	Mnemonic:	monitor
	Abstract:	Node-resource monitor: a periodic sampler of CPU/RAM/disk
				(and, for the per-interface bandwidth figures, network IO
				counters) built on gopsutil, the Go analogue of the
				source's psutil-based Monitor. In simulation mode no
				sampling is done; a static Capacity is always returned.
	Date:		29 July 2026
	Author:		netapp-sim contributors
*/

package managers

import (
	"sync"
	"time"

	"github.com/att/gopkgs/ipc"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/net"

	"github.com/youcefouarab/netapp-sim/gizmos"
)

/*
	Monitor is constructed once in main and handed down to whatever needs
	live capacity figures; it is not a singleton accessed via global
	init-on-first-use.
*/
type Monitor struct {
	mu       sync.RWMutex
	period   time.Duration
	simCaps  HostCaps
	simMode  bool
	measures gizmos.Capacity

	stop chan struct{}
}

func Mk_monitor(cfg *Config, period time.Duration) *Monitor {
	caps := cfg.CapsFor(cfg.LocalIP)
	m := &Monitor{
		period:  period,
		simMode: cfg.SimulationActive,
		simCaps: caps,
		stop:    make(chan struct{}),
	}
	if m.simMode {
		m.measures = gizmos.Capacity{Cpu: caps.Cpu, Ram: caps.Ram, Disk: caps.Disk}
	}
	return m
}

/*
	Start launches the sampling goroutine. In simulation mode there is
	nothing to sample (the static figures set by Mk_monitor never change)
	and it returns without starting a background loop. In real mode, resampling is driven by the shared
	tickler (see Start_tickler) rather than a private time.Ticker, the way
	every other periodic manager task is driven in this codebase.
*/
func (m *Monitor) Start() {
	m.sample()
	if m.simMode {
		return
	}
	ch := make(chan *ipc.Chmsg, 4)
	secs := int64(m.period / time.Second)
	if secs <= 0 {
		secs = 1
	}
	tklr.Add_spot(secs, ch, REQ_MONITOR_SAMPLE, nil, ipc.FOREVER)
	go m.loop(ch)
}

func (m *Monitor) Stop() {
	select {
	case <-m.stop:
	default:
		close(m.stop)
	}
}

func (m *Monitor) loop(ch chan *ipc.Chmsg) {
	for {
		select {
		case <-m.stop:
			return
		case <-ch:
			m.sample()
		}
	}
}

func (m *Monitor) sample() {
	if m.simMode {
		return
	}

	caps := gizmos.Capacity{Cpu: m.simCaps.Cpu, Ram: m.simCaps.Ram, Disk: m.simCaps.Disk}

	if n, err := cpu.Counts(true); err == nil {
		caps.Cpu = n
	} else {
		mon_sheep.Baa(1, "WRN: cpu sample failed: %s", err)
	}

	// static RAM/disk are the node's declared totals; the live free figure
	// only ever lowers them, never raises them above what was configured.
	if vm, err := mem.VirtualMemory(); err == nil {
		free := float64(vm.Available) / 1e6 // MB
		if free < caps.Ram {
			caps.Ram = free
		}
	} else {
		mon_sheep.Baa(1, "WRN: memory sample failed: %s", err)
	}

	if du, err := disk.Usage("/"); err == nil {
		free := float64(du.Free) / 1e9 // GB
		if free < caps.Disk {
			caps.Disk = free
		}
	} else {
		mon_sheep.Baa(1, "WRN: disk sample failed: %s", err)
	}

	m.mu.Lock()
	m.measures = caps
	m.mu.Unlock()

	mon_sheep.Baa(2, "sample: cpu=%d ram=%.1fMB disk=%.1fGB", caps.Cpu, caps.Ram, caps.Disk)
}

/*
	Available returns the most recent resources snapshot: in real mode the
	node's static configured RAM/disk floored by the live free reading
	gopsutil just sampled (cpu always live), in simulation mode the static
	configured capacity untouched.
*/
func (m *Monitor) Available() gizmos.Capacity {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.measures
}

/*
	IfaceCounters returns the current per-interface cumulative byte/packet
	counters, used by callers wanting bandwidth deltas across two samples.
	Carried for completeness of the monitor façade; the core protocol does
	not itself gate on bandwidth/delay/jitter figures.
*/
func IfaceCounters() (map[string]net.IOCountersStat, error) {
	stats, err := net.IOCounters(true)
	if err != nil {
		return nil, err
	}
	out := make(map[string]net.IOCountersStat, len(stats))
	for _, s := range stats {
		out[s.Name] = s
	}
	return out, nil
}
