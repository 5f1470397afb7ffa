package config

import (
	"flag"
	"io"
	"strings"
)

// configPath extracts the -config (or -c) value from args without
// touching other flags.
func configPath(args []string) string {
	var path string
	fs := flag.NewFlagSet("config", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&path, "config", "", "path to JSON config file")
	fs.StringVar(&path, "c", "", "path to JSON config file (short)")
	_ = fs.Parse(filterArgs(args, []string{"-c", "-config", "--config"}))
	return path
}

// parseNodeFlags overlays node settings from command-line flags. Current
// values serve as flag defaults.
//
//	-config string          JSON config file
//	-listen string          JSON-RPC, WebSocket and metrics address
//	-postgres-dsn string    PostgreSQL DSN
//	-clickhouse-dsn string  ClickHouse DSN for the transaction log
//	-use-memory             in-memory account store
//	-pg-max-conns int       PostgreSQL pool size
//	-cache-size int         account cache entries, 0 disables
//	-strict-authority       require the registry authority for mint_reward
//	-shutdown-timeout dur   graceful shutdown period
func parseNodeFlags(args []string, c *Node) error {
	fs := flag.NewFlagSet("node", flag.ContinueOnError)

	var path string
	fs.StringVar(&path, "config", "", "path to JSON config file")
	fs.StringVar(&path, "c", "", "path to JSON config file (short)")

	fs.StringVar(&c.ListenAddr, "listen", c.ListenAddr, "JSON-RPC, WebSocket and metrics address")
	fs.StringVar(&c.PostgresDSN, "postgres-dsn", c.PostgresDSN, "PostgreSQL connection string")
	fs.StringVar(&c.ClickHouseDSN, "clickhouse-dsn", c.ClickHouseDSN, "ClickHouse connection string (empty: in-memory transaction log)")
	fs.BoolVar(&c.UseMemory, "use-memory", c.UseMemory, "Use in-memory account storage instead of PostgreSQL")
	fs.IntVar(&c.PGMaxConns, "pg-max-conns", c.PGMaxConns, "PostgreSQL pool size")
	fs.IntVar(&c.CacheSize, "cache-size", c.CacheSize, "Account cache entries (0 disables)")
	fs.BoolVar(&c.StrictAuthority, "strict-authority", c.StrictAuthority, "Require the registry authority to sign mint_reward")
	fs.DurationVar(&c.ShutdownTimeout, "shutdown-timeout", c.ShutdownTimeout, "Graceful shutdown period")

	return fs.Parse(args)
}

// RegisterFlags binds client settings to fs with current values as defaults.
func (c *Client) RegisterFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.RPCURL, "url", c.RPCURL, "node JSON-RPC URL")
	fs.StringVar(&c.WSURL, "ws", c.WSURL, "node WebSocket URL")
	fs.StringVar(&c.Keypair, "keypair", c.Keypair, "signer keypair file")
	fs.DurationVar(&c.Timeout, "timeout", c.Timeout, "request timeout")
}

// filterArgs keeps only the allowed flags and their values.
// Both "-f value" and "-f=value" forms are recognized.
func filterArgs(args []string, allowed []string) []string {
	keep := make(map[string]struct{}, len(allowed))
	for _, f := range allowed {
		keep[f] = struct{}{}
	}

	filtered := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		arg := args[i]

		if strings.HasPrefix(arg, "-") && strings.Contains(arg, "=") {
			name, _, _ := strings.Cut(arg, "=")
			if _, ok := keep[name]; ok {
				filtered = append(filtered, arg)
			}
			continue
		}

		if _, ok := keep[arg]; ok {
			filtered = append(filtered, arg)
			if i+1 < len(args) && !strings.HasPrefix(args[i+1], "-") {
				filtered = append(filtered, args[i+1])
				i++
			}
		}
	}
	return filtered
}
