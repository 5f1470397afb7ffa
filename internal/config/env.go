package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"
)

// Environment variables read by the node and the client.
const (
	EnvListenAddr      = "FIT_LISTEN_ADDR"
	EnvPostgresDSN     = "POSTGRES_DSN"
	EnvClickHouseDSN   = "CLICKHOUSE_DSN"
	EnvUseMemory       = "FIT_USE_MEMORY"
	EnvPGMaxConns      = "FIT_PG_MAX_CONNS"
	EnvCacheSize       = "FIT_CACHE_SIZE"
	EnvStrictAuthority = "FIT_STRICT_AUTHORITY"
	EnvShutdownTimeout = "FIT_SHUTDOWN_TIMEOUT"

	EnvRPCURL  = "FIT_RPC_URL"
	EnvWSURL   = "FIT_WS_URL"
	EnvKeypair = "FIT_KEYPAIR"
)

// LoadEnvFile loads KEY=VALUE lines from path into the environment.
// Variables that already hold a value win. A missing file is not an error.
func LoadEnvFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read env file: %w", err)
	}

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.Trim(strings.TrimSpace(value), `"`)

		if os.Getenv(key) == "" {
			if err := os.Setenv(key, value); err != nil {
				return fmt.Errorf("set %s: %w", key, err)
			}
		}
	}
	return nil
}

func applyNodeEnv(c *Node) error {
	envString(EnvListenAddr, &c.ListenAddr)
	envString(EnvPostgresDSN, &c.PostgresDSN)
	envString(EnvClickHouseDSN, &c.ClickHouseDSN)
	if err := envBool(EnvUseMemory, &c.UseMemory); err != nil {
		return err
	}
	if err := envInt(EnvPGMaxConns, &c.PGMaxConns); err != nil {
		return err
	}
	if err := envInt(EnvCacheSize, &c.CacheSize); err != nil {
		return err
	}
	if err := envBool(EnvStrictAuthority, &c.StrictAuthority); err != nil {
		return err
	}
	return envDuration(EnvShutdownTimeout, &c.ShutdownTimeout)
}

// ApplyEnv overlays client settings from the environment.
func (c *Client) ApplyEnv() {
	envString(EnvRPCURL, &c.RPCURL)
	envString(EnvWSURL, &c.WSURL)
	envString(EnvKeypair, &c.Keypair)
}

func envString(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func envBool(key string, dst *bool) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = b
	return nil
}

func envInt(key string, dst *int) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = n
	return nil
}

func envDuration(key string, dst *time.Duration) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = d
	return nil
}
