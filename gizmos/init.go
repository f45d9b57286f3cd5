// vi: sw=4 ts=4:

/*

	Mnemonic:	init
	Abstract:	package level initialisation and constants for the gizmos package
	Date:		29 July 2026
	Author:		netapp-sim contributors

	Mods:		29 Jul 2026 : Repurposed from the SDN reservation Pledge package to
					the host-exchange protocol's domain types (CoS/Request/Packet/Ledger).
*/

package gizmos

import (
	"os"

	"github.com/att/gopkgs/bleater"
)

const (
	// REQ_ID_LEN is the number of characters in a generated request id.
	REQ_ID_LEN = 10
)

var (
	obj_sheep *bleater.Bleater // sheep that objects bleat through
)

/*
	Initialisation for the package; run once automatically at startup.
*/
func init() {
	obj_sheep = bleater.Mk_bleater(0, os.Stderr)
	obj_sheep.Set_prefix("gizmos")
}

/*
	Returns the package's sheep so that main can attach it to the master
	sheep and thus affect the volume of bleats from this package.
*/
func Get_sheep() *bleater.Bleater {
	return obj_sheep
}

/*
	Provides the external world with a way to adjust the bleat level for gizmos.
*/
func Set_bleat_level(v uint) {
	obj_sheep.Set_level(v)
}
