// vi: sw=4 ts=4:

/*

	Mnemonic:	globals
	Abstract:	Package level constants, sheep (loggers), the ipc message
				types and the shared tickler.
	Date:		29 July 2026
	Author:		netapp-sim contributors
*/

package managers

import (
	"os"

	"github.com/att/gopkgs/bleater"
	"github.com/att/gopkgs/ipc"
)

// ipc.Chmsg message types. Only REQ_MONITOR_SAMPLE is sent (by the tickler
// to the monitor); no manager sends the others, since the FSMs and the
// persistence worker use plain typed channels.
const (
	REQ_NOOP = iota

	REQ_SEND_REQUEST // CLI -> consumer: spawn a new consumer task for a cos id
	REQ_INBOUND      // transport -> answering machine: a frame arrived
	REQ_SNAPSHOT     // ledger/monitor: get current free-resource snapshot

	REQ_PERSIST_INSERT // -> persistence worker
	REQ_PERSIST_UPDATE
	REQ_PERSIST_SELECT
	REQ_PERSIST_EXPORT

	REQ_MONITOR_SAMPLE // tickler -> monitor: take a sample now
)

var (
	nas_sheep *bleater.Bleater // protocol/consumer/provider/answering machine
	mon_sheep *bleater.Bleater // resource monitor
	per_sheep *bleater.Bleater // persistence adapter
	cfg_sheep *bleater.Bleater // configuration

	tklr *ipc.Tickler // shared periodic-event scheduler, started once from main
)

func init() {
	nas_sheep = bleater.Mk_bleater(1, os.Stderr)
	nas_sheep.Set_prefix("netappsim")

	mon_sheep = bleater.Mk_bleater(1, os.Stderr)
	mon_sheep.Set_prefix("monitor")
	nas_sheep.Add_child(mon_sheep)

	per_sheep = bleater.Mk_bleater(1, os.Stderr)
	per_sheep.Set_prefix("persist")
	nas_sheep.Add_child(per_sheep)

	cfg_sheep = bleater.Mk_bleater(1, os.Stderr)
	cfg_sheep.Set_prefix("config")
	nas_sheep.Add_child(cfg_sheep)
}

/*
	Get_sheep returns the root sheep so main can attach it as a child of the
	gizmos sheep (or vice-versa) and adjust the whole tree's level from one
	flag.
*/
func Get_sheep() *bleater.Bleater {
	return nas_sheep
}

func Set_bleat_level(v uint) {
	nas_sheep.Set_level(v)
}

/*
	Start_tickler allocates the shared tickler and starts its goroutine.
	Called once from main before any manager that calls tklr.Add_spot runs.
*/
func Start_tickler() {
	tklr = ipc.Mk_tickler(30)
	go tklr.Tickle()
}
