// vi: sw=4 ts=4:

/*

	Mnemonic:	config
	Abstract:	Environment-backed configuration surface. Mirrors the
				source's config.py (which merges a YAML file into
				os.environ and lets every other module read it back out of
				the environment) by binding each documented key directly to
				the process environment via viper, with the same defaults.
	Date:		29 July 2026
	Author:		netapp-sim contributors
*/

package managers

import (
	"net"
	"os"
	"strings"
	"time"

	"github.com/att/gopkgs/clike"
	"github.com/spf13/viper"
)

/*
	HostCaps is the static CPU/RAM/disk capacity configured for one host in
	simulation mode.
*/
type HostCaps struct {
	Cpu  int
	Ram  float64
	Disk float64
}

/*
	Config is the fully-resolved, validated configuration for one run,
	built once at startup and passed down to every manager -- never read
	from global viper state after Load returns (per the design note against
	singleton/global init-on-first-use).
*/
type Config struct {
	DatabasePath     string
	DatabaseDefsPath string

	SimulationActive bool
	SimExecMin       time.Duration
	SimExecMax       time.Duration

	HostsUseDefault bool
	HostsDefault    HostCaps
	HostsOverride   map[string]HostCaps

	ProtocolTimeout time.Duration
	ProtocolRetries int
	ProtocolVerbose bool

	LocalIP string
}

/*
	Load reads the documented environment keys via viper and returns a
	validated Config. Invalid or inverted SIMULATION_EXEC_MIN/MAX reset to
	the [0,1] default, per the external-interfaces spec.
*/
func Load() *Config {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("DATABASE_PATH", ":memory:")
	v.SetDefault("DATABASE_DEFS_PATH", "")
	v.SetDefault("SIMULATION_ACTIVE", true)
	v.SetDefault("SIMULATION_EXEC_MIN", 0)
	v.SetDefault("SIMULATION_EXEC_MAX", 1)
	v.SetDefault("HOSTS_USE_DEFAULT", true)
	v.SetDefault("PROTOCOL_TIMEOUT", 1)
	v.SetDefault("PROTOCOL_RETRIES", 3)
	v.SetDefault("PROTOCOL_VERBOSE", false)

	c := &Config{
		DatabasePath:     v.GetString("DATABASE_PATH"),
		DatabaseDefsPath: v.GetString("DATABASE_DEFS_PATH"),
		SimulationActive: v.GetBool("SIMULATION_ACTIVE"),
		HostsUseDefault:  v.GetBool("HOSTS_USE_DEFAULT"),
		ProtocolRetries:  v.GetInt("PROTOCOL_RETRIES"),
		ProtocolVerbose:  v.GetBool("PROTOCOL_VERBOSE"),
		HostsOverride:    make(map[string]HostCaps),
	}

	exec_min := v.GetFloat64("SIMULATION_EXEC_MIN")
	exec_max := v.GetFloat64("SIMULATION_EXEC_MAX")
	if exec_min < 0 || exec_max < 0 || exec_max < exec_min {
		exec_min, exec_max = 0, 1
	}
	c.SimExecMin = time.Duration(exec_min * float64(time.Second))
	c.SimExecMax = time.Duration(exec_max * float64(time.Second))

	timeout := v.GetFloat64("PROTOCOL_TIMEOUT")
	if timeout <= 0 {
		timeout = 1
	}
	c.ProtocolTimeout = time.Duration(timeout * float64(time.Second))
	if c.ProtocolRetries <= 0 {
		c.ProtocolRetries = 3
	}

	c.HostsDefault = HostCaps{
		Cpu:  v.GetInt("HOSTS_DEFAULT_CPU"),
		Ram:  v.GetFloat64("HOSTS_DEFAULT_RAM"),
		Disk: v.GetFloat64("HOSTS_DEFAULT_DISK"),
	}
	if c.HostsDefault == (HostCaps{}) {
		c.HostsDefault = HostCaps{Cpu: 4, Ram: 4096, Disk: 40}
	}

	// HOSTS_<ip> overrides: viper's AutomaticEnv only resolves keys asked
	// for by name, so per-host overrides are read directly from the
	// process environment (dotted IPs aren't valid viper keys either way).
	for _, kv := range os.Environ() {
		idx := strings.IndexByte(kv, '=')
		if idx < 0 {
			continue
		}
		key, val := kv[:idx], kv[idx+1:]
		const prefix = "HOSTS_"
		if !strings.HasPrefix(key, prefix) || strings.HasPrefix(key, "HOSTS_DEFAULT") || key == "HOSTS_USE_DEFAULT" {
			continue
		}
		ip := strings.ReplaceAll(key[len(prefix):], "_", ".")
		if net.ParseIP(ip) == nil {
			continue
		}
		caps := parseHostCapsRecord(val)
		c.HostsOverride[ip] = caps
	}

	c.LocalIP = localIP()

	cfg_sheep.Baa(1, "config loaded: db=%s sim=%v timeout=%s retries=%d",
		c.DatabasePath, c.SimulationActive, c.ProtocolTimeout, c.ProtocolRetries)

	return c
}

/*
	parseHostCapsRecord parses a "CPU=4,RAM=4096,DISK=40" style record.
*/
func parseHostCapsRecord(s string) HostCaps {
	var c HostCaps
	for _, tok := range strings.Split(s, ",") {
		kv := strings.SplitN(strings.TrimSpace(tok), "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch strings.ToUpper(kv[0]) {
		case "CPU":
			c.Cpu = clike.Atoi(kv[1])
		case "RAM":
			c.Ram = clike.Atof(kv[1])
		case "DISK":
			c.Disk = clike.Atof(kv[1])
		}
	}
	return c
}

/*
	CapsFor returns the configured capacity for a given peer address,
	falling back to the default when no HOSTS_<ip> override exists.
*/
func (c *Config) CapsFor(addr string) HostCaps {
	if caps, ok := c.HostsOverride[addr]; ok {
		return caps
	}
	return c.HostsDefault
}

/*
	localIP determines the node's primary outbound IP address via the
	classic UDP-connect trick (no packet is actually sent); the Go
	analogue of the source's utils.get_ip().
*/
func localIP() string {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return "127.0.0.1"
	}
	defer conn.Close()
	return conn.LocalAddr().(*net.UDPAddr).IP.String()
}
