package loadtest_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/informalsystems/cert-load-test/pkg/loadtest"
	"github.com/informalsystems/cert-load-test/pkg/timeutils"
	"github.com/informalsystems/cert-load-test/pkg/transport"
)

const testConfigYAML = `
transport: sim
contract: certs
workers: 3
worker_offset: 10
request_timeout: 2s
rounds:
  - label: warmup
    workload: issue
    tx_number: 5
  - workload: verify
    tx_duration: 1m
    rate: 12.5
    arguments:
      note: second round
`

func writeConfig(t *testing.T, doc string) string {
	path := filepath.Join(t.TempDir(), "loadtest.yaml")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))
	return path
}

func validConfig() loadtest.Config {
	cfg := loadtest.DefaultConfig()
	cfg.Rounds = []loadtest.Round{{Workload: "issue", TxNumber: 1}}
	return cfg
}

func TestParseConfig(t *testing.T) {
	cfg, err := loadtest.ParseConfig([]byte(testConfigYAML))
	require.NoError(t, err)

	assert.Equal(t, "sim", cfg.Transport)
	assert.Equal(t, "certs", cfg.ContractID)
	assert.Equal(t, 3, cfg.Workers)
	assert.Equal(t, 10, cfg.WorkerOffset)
	assert.Equal(t, 2*time.Second, cfg.RequestTimeout.Duration())
	// unspecified values keep their defaults
	assert.Equal(t, loadtest.DefaultConnectTimeout, cfg.ConnectTimeout.Duration())
	assert.Equal(t, loadtest.DefaultProgressInterval, cfg.ProgressInterval.Duration())

	require.Len(t, cfg.Rounds, 2)
	assert.Equal(t, "warmup", cfg.Rounds[0].Name())
	assert.Equal(t, 5, cfg.Rounds[0].TxNumber)
	assert.Equal(t, "verify", cfg.Rounds[1].Name())
	assert.Equal(t, time.Minute, cfg.Rounds[1].TxDuration.Duration())
	assert.Equal(t, 12.5, cfg.Rounds[1].Rate)
	assert.Equal(t, "second round", cfg.Rounds[1].Arguments["note"])
	assert.NoError(t, cfg.Validate())
}

func TestParseConfigRejectsUnknownKeys(t *testing.T) {
	_, err := loadtest.ParseConfig([]byte("transport: sim\nconnections: 4\n"))
	assert.Error(t, err)
}

func TestParseEmptyConfig(t *testing.T) {
	cfg, err := loadtest.ParseConfig(nil)
	require.NoError(t, err)
	assert.Equal(t, loadtest.DefaultConfig(), cfg)
}

func TestLoadConfig(t *testing.T) {
	cfg, err := loadtest.LoadConfig(writeConfig(t, testConfigYAML))
	require.NoError(t, err)
	assert.Len(t, cfg.Rounds, 2)

	_, err = loadtest.LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.True(t, loadtest.IsErrorCode(err, loadtest.ErrFailedToReadConfigFile), "got %v", err)

	_, err = loadtest.LoadConfig(writeConfig(t, "rounds: [\n"))
	assert.True(t, loadtest.IsErrorCode(err, loadtest.ErrFailedToDecodeConfig), "got %v", err)
}

func TestShippedConfigsAreValid(t *testing.T) {
	cfg, err := loadtest.LoadConfig(filepath.Join("..", "..", "config", "benchmark.yaml"))
	require.NoError(t, err)
	assert.NoError(t, cfg.Validate())

	cfg, err = loadtest.LoadConfig(filepath.Join("..", "..", "config", "fabric.yaml"))
	require.NoError(t, err)
	assert.NoError(t, cfg.Validate())
}

func TestConfigValidation(t *testing.T) {
	testCases := []struct {
		name   string
		modify func(*loadtest.Config)
		valid  bool
	}{
		{"default with one round", func(*loadtest.Config) {}, true},
		{"no transport", func(c *loadtest.Config) { c.Transport = "" }, false},
		{"unknown transport", func(c *loadtest.Config) { c.Transport = "grpc" }, false},
		{"no contract", func(c *loadtest.Config) { c.ContractID = "" }, false},
		{"no workers", func(c *loadtest.Config) { c.Workers = 0 }, false},
		{"negative worker offset", func(c *loadtest.Config) { c.WorkerOffset = -1 }, false},
		{"negative timeout", func(c *loadtest.Config) { c.RequestTimeout = timeutils.ParseableDuration(-time.Second) }, false},
		{"ws without endpoint", func(c *loadtest.Config) { c.Transport = "ws" }, false},
		{"ws with endpoint", func(c *loadtest.Config) {
			c.Transport = "ws"
			c.Endpoint = "ws://localhost:26680/websocket"
		}, true},
		{"fabric without profile", func(c *loadtest.Config) { c.Transport = "fabric" }, false},
		{"fabric with profile", func(c *loadtest.Config) {
			c.Transport = "fabric"
			c.Fabric = transport.FabricConfig{ConnectionProfile: "ccp.yaml", Channel: "mychannel", WalletPath: "wallet", Label: "appUser"}
		}, true},
		{"no rounds", func(c *loadtest.Config) { c.Rounds = nil }, false},
		{"unknown workload", func(c *loadtest.Config) { c.Rounds[0].Workload = "transfer" }, false},
		{"workload is case insensitive", func(c *loadtest.Config) { c.Rounds[0].Workload = "QueryAll" }, true},
		{"unbounded round", func(c *loadtest.Config) { c.Rounds[0].TxNumber = 0 }, false},
		{"duration bounded round", func(c *loadtest.Config) {
			c.Rounds[0].TxNumber = 0
			c.Rounds[0].TxDuration = timeutils.ParseableDuration(time.Second)
		}, true},
		{"negative tx number", func(c *loadtest.Config) { c.Rounds[0].TxNumber = -1 }, false},
		{"negative rate", func(c *loadtest.Config) { c.Rounds[0].Rate = -1 }, false},
		{"highest rate", func(c *loadtest.Config) { c.Rounds[0].Rate = loadtest.MaxRate }, true},
		{"rate beyond nanosecond pacing", func(c *loadtest.Config) { c.Rounds[0].Rate = 3e9 }, false},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.modify(&cfg)
			err := cfg.Validate()
			if tc.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestErrorCodes(t *testing.T) {
	assert.Equal(t, 0, loadtest.ExitCode(nil))
	assert.Equal(t, 1, loadtest.ExitCode(assert.AnError))

	err := loadtest.NewError(loadtest.ErrRoundFailed, assert.AnError, "verify")
	assert.Equal(t, int(loadtest.ErrRoundFailed), loadtest.ExitCode(err))
	assert.True(t, loadtest.IsErrorCode(err, loadtest.ErrRoundFailed))
	assert.False(t, loadtest.IsErrorCode(err, loadtest.ErrKilled))
	assert.ErrorIs(t, err, assert.AnError)
	assert.Equal(t, "Round failed: verify. Caused by: "+assert.AnError.Error(), err.Error())
	assert.Equal(t, "Unrecognized error", loadtest.ErrorMessageForCode(loadtest.ErrorCode(99)))
}
