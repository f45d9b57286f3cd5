// vi: sw=4 ts=4:

/*

	Mnemonic:	netappsim
	Abstract:	Command line entry point: wires config, transport, ledger,
				registry, monitor and persistence into a Node, starts it,
				and drives a simple interactive consumer loop (a CoS id per
				line on stdin, sent with a fixed demo payload; result on
				stdout), the Go analogue of the source's cli.py REPL.

				Command line flags:
					-v		-- verbose (raises bleat level on every sheep; PROTOCOL_VERBOSE=true does the same)
					-once cos:data -- send a single request non-interactively and exit

	Date:		29 July 2026
	Author:		netapp-sim contributors
*/

package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/youcefouarab/netapp-sim/gizmos"
	"github.com/youcefouarab/netapp-sim/managers"
)

func main() {
	verbose := flag.Bool("v", false, "verbose logging")
	once := flag.String("once", "", "send a single request as cos_id:data and exit")
	flag.Parse()

	cfg := managers.Load()
	managers.Get_sheep().Add_child(gizmos.Get_sheep()) // since we don't directly initialise the gizmos environment we ask for its sheep
	if *verbose || cfg.ProtocolVerbose {
		managers.Set_bleat_level(2)
	}

	managers.Start_tickler()

	transport, err := managers.NewTransport(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "netappsim: transport: %s\n", err)
		os.Exit(1)
	}
	defer transport.Close()

	per, err := managers.Mk_persistence(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "netappsim: persistence: %s\n", err)
		os.Exit(1)
	}
	per.Start()
	defer per.Close()

	ledger := gizmos.Mk_ledger()
	reg := managers.Mk_registry(per.DB())
	mon := managers.Mk_monitor(cfg, cfg.ProtocolTimeout)

	node := managers.Mk_node(cfg, transport, ledger, reg, mon, per)
	node.Run()

	if *once != "" {
		runOnce(node, *once)
		return
	}

	repl(node)
}

// demoPayload is the fixed demo data sent with every CLI-spawned request.
var demoPayload = []byte("data + program")

/*
	repl reads one CoS id per line from stdin until EOF; every line, blank or
	not, spawns its own consumer task with the fixed demo payload so a slow
	or stuck request never blocks the next line from being read, matching
	the requirement that concurrent inbound provider work and multiple
	outstanding consumer requests are handled regardless of what the CLI
	loop is doing. An empty line selects CoS id 1, per the CLI design.
*/
func repl(node *managers.Node) {
	fmt.Println("netappsim ready; enter a CoS id (or nothing for CoS 1) and press Enter")
	var wg sync.WaitGroup
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		cosId := parseCosId(strings.TrimSpace(scanner.Text()))
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := node.Send_request(cosId, demoPayload)
			if err != nil {
				fmt.Printf("FAIL: %s\n", err)
				return
			}
			fmt.Printf("OK: %s\n", string(result))
		}()
	}
	wg.Wait()
}

func runOnce(node *managers.Node, spec string) {
	cosId, data := parseOnceSpec(spec)
	result, err := node.Send_request(cosId, data)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FAIL: %s\n", err)
		os.Exit(1)
	}
	fmt.Println(string(result))
}

/*
	parseCosId parses a CoS id typed at the interactive prompt, defaulting to
	1 for an empty or unparsable line, per the CLI's "empty input selects
	CoS id 1" behaviour.
*/
func parseCosId(line string) int {
	if line == "" {
		return 1
	}
	cosId, err := strconv.Atoi(line)
	if err != nil {
		return 1
	}
	return cosId
}

/*
	parseOnceSpec splits the -once flag's "<cos_id>:<data>" shorthand into a
	CoS id and payload, falling back to the fixed demo payload when no data
	half is given.
*/
func parseOnceSpec(spec string) (int, []byte) {
	parts := strings.SplitN(spec, ":", 2)
	cosId := parseCosId(strings.TrimSpace(parts[0]))
	if len(parts) > 1 && parts[1] != "" {
		return cosId, []byte(parts[1])
	}
	return cosId, demoPayload
}
