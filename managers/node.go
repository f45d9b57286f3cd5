// vi: sw=4 ts=4:

/*

	Mnemonic:	node
	Abstract:	Node wires the per-process singletons -- transport, ledger,
				registry, monitor, persistence, CoS table -- constructed
				once in main and passed down to every FSM method, per the
				design note against global init-on-first-use.
	Date:		29 July 2026
	Author:		netapp-sim contributors
*/

package managers

import (
	"github.com/youcefouarab/netapp-sim/gizmos"
)

type Node struct {
	cfg       *Config
	transport Transport
	ledger    *gizmos.Ledger
	reg       *Registry
	mon       *Monitor
	per       *Persistence
	exec      *Executor
	cosTable  map[int]*gizmos.CoS
}

func Mk_node(cfg *Config, transport Transport, ledger *gizmos.Ledger, reg *Registry, mon *Monitor, per *Persistence) *Node {
	n := &Node{
		cfg:       cfg,
		transport: transport,
		ledger:    ledger,
		reg:       reg,
		mon:       mon,
		per:       per,
		exec:      Mk_executor(cfg.SimExecMin, cfg.SimExecMax),
		cosTable:  loadCosTable(per),
	}
	return n
}

/*
	loadCosTable reads the cos table from persistence; if it is empty (a
	brand new database) a single permissive default CoS id 1 is inserted,
	matching the CLI's "empty input selects CoS id 1" behaviour.
*/
func loadCosTable(per *Persistence) map[int]*gizmos.CoS {
	table := make(map[int]*gizmos.CoS)

	rows, err := per.db.Query(`SELECT id, name, max_response_time, min_concurrent_users,
		min_requests_per_sec, min_bandwidth, max_delay, max_jitter, max_loss_rate,
		min_cpu, min_ram, min_disk FROM cos`)
	if err == nil {
		defer rows.Close()
		for rows.Next() {
			c := &gizmos.CoS{}
			if rows.Scan(&c.Id, &c.Name, &c.Max_response_time, &c.Min_concurrent_users,
				&c.Min_requests_per_sec, &c.Min_bandwidth, &c.Max_delay, &c.Max_jitter,
				&c.Max_loss_rate, &c.Min_cpu, &c.Min_ram, &c.Min_disk) == nil {
				table[c.Id] = c
			}
		}
	}

	if len(table) == 0 {
		def := gizmos.Mk_cos(1, "default")
		table[1] = def
		per.InsertCos(def)
	}

	return table
}

func (n *Node) Cos(id int) *gizmos.CoS {
	if c, ok := n.cosTable[id]; ok {
		return c
	}
	return n.cosTable[1]
}

/*
	Run starts the monitor and the answering machine. Persistence and the
	tickler are started separately by main before Run is called.
*/
func (n *Node) Run() {
	n.mon.Start()
	go n.runAnsweringMachine()
}
