package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		EnvListenAddr, EnvPostgresDSN, EnvClickHouseDSN, EnvUseMemory, EnvPGMaxConns,
		EnvCacheSize, EnvStrictAuthority, EnvShutdownTimeout, EnvRPCURL, EnvWSURL, EnvKeypair,
	} {
		t.Setenv(k, "")
	}
}

func TestLoadNode_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := LoadNode(nil)
	require.NoError(t, err)

	want := &Node{}
	want.LoadDefaults()
	assert.Equal(t, want, cfg)
}

func TestLoadNode_Precedence(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "node.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"listen_addr": ":7000",
		"cache_size": 5,
		"use_memory": true,
		"shutdown_timeout": "5s"
	}`), 0o600))

	t.Setenv(EnvListenAddr, ":7100")
	t.Setenv(EnvStrictAuthority, "true")

	cfg, err := LoadNode([]string{"-config", path, "-cache-size", "0", "-clickhouse-dsn", "clickhouse://ch:9000/fit"})
	require.NoError(t, err)

	assert.Equal(t, ":7100", cfg.ListenAddr) // env over file
	assert.Equal(t, 0, cfg.CacheSize)        // flag over file
	assert.True(t, cfg.UseMemory)            // file over default
	assert.True(t, cfg.StrictAuthority)      // env over default
	assert.Equal(t, 5*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, "clickhouse://ch:9000/fit", cfg.ClickHouseDSN)
}

func TestLoadNode_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		args []string
	}{
		{name: "bad bool", env: map[string]string{EnvUseMemory: "maybe"}},
		{name: "bad int", env: map[string]string{EnvCacheSize: "many"}},
		{name: "negative cache", args: []string{"-cache-size", "-1"}},
		{name: "zero pool", args: []string{"-pg-max-conns", "0"}},
		{name: "missing dsn", args: []string{"-postgres-dsn", ""}},
		{name: "unknown flag", args: []string{"-nope"}},
		{name: "missing config file", args: []string{"-c", "/does/not/exist.json"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := LoadNode(tt.args)
			assert.Error(t, err)
		})
	}
}

func TestLoadEnvFile(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvRPCURL, "http://preset")

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte(
		"# comment\n"+
			EnvRPCURL+"=http://from-file\n"+
			EnvWSURL+"=\"ws://from-file/ws\"\n"+
			"malformed line\n"), 0o600))

	require.NoError(t, LoadEnvFile(path))
	require.NoError(t, LoadEnvFile(filepath.Join(t.TempDir(), "missing")))

	var c Client
	c.LoadDefaults()
	c.ApplyEnv()
	assert.Equal(t, "http://preset", c.RPCURL)
	assert.Equal(t, "ws://from-file/ws", c.WSURL)
	assert.Equal(t, "id.json", c.Keypair)
}

func TestFilterArgs(t *testing.T) {
	args := []string{"-a", "1", "-config", "x.json", "-b", "--config=y.json", "-c"}
	assert.Equal(t,
		[]string{"-config", "x.json", "--config=y.json", "-c"},
		filterArgs(args, []string{"-c", "-config", "--config"}))
}

func TestDuration_UnmarshalJSON(t *testing.T) {
	var d Duration
	require.NoError(t, d.UnmarshalJSON([]byte(`"1m30s"`)))
	assert.Equal(t, 90*time.Second, d.Duration)

	require.NoError(t, d.UnmarshalJSON([]byte(`1000`)))
	assert.Equal(t, time.Microsecond, d.Duration)

	assert.Error(t, d.UnmarshalJSON([]byte(`true`)))
	assert.Error(t, d.UnmarshalJSON([]byte(`"soon"`)))
}
