package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// Duration reads either a duration string such as "30s" or integer
// nanoseconds from JSON.
type Duration struct {
	time.Duration
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Duration) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch value := v.(type) {
	case float64:
		d.Duration = time.Duration(value)
	case string:
		parsed, err := time.ParseDuration(value)
		if err != nil {
			return err
		}
		d.Duration = parsed
	default:
		return fmt.Errorf("invalid duration %s", string(b))
	}
	return nil
}

// nodeJSON is the file form of Node. Absent fields keep their current value.
type nodeJSON struct {
	ListenAddr      *string   `json:"listen_addr"`
	PostgresDSN     *string   `json:"postgres_dsn"`
	ClickHouseDSN   *string   `json:"clickhouse_dsn"`
	UseMemory       *bool     `json:"use_memory"`
	PGMaxConns      *int      `json:"pg_max_conns"`
	CacheSize       *int      `json:"cache_size"`
	StrictAuthority *bool     `json:"strict_authority"`
	ShutdownTimeout *Duration `json:"shutdown_timeout"`
}

func parseNodeJSON(path string, c *Node) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	var f nodeJSON
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	if f.ListenAddr != nil {
		c.ListenAddr = *f.ListenAddr
	}
	if f.PostgresDSN != nil {
		c.PostgresDSN = *f.PostgresDSN
	}
	if f.ClickHouseDSN != nil {
		c.ClickHouseDSN = *f.ClickHouseDSN
	}
	if f.UseMemory != nil {
		c.UseMemory = *f.UseMemory
	}
	if f.PGMaxConns != nil {
		c.PGMaxConns = *f.PGMaxConns
	}
	if f.CacheSize != nil {
		c.CacheSize = *f.CacheSize
	}
	if f.StrictAuthority != nil {
		c.StrictAuthority = *f.StrictAuthority
	}
	if f.ShutdownTimeout != nil {
		c.ShutdownTimeout = f.ShutdownTimeout.Duration
	}
	return nil
}
