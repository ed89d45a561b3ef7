package loadtest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/informalsystems/cert-load-test/pkg/timeutils"
	"github.com/informalsystems/cert-load-test/pkg/transport"
	"github.com/informalsystems/cert-load-test/pkg/workload"
)

// Defaults for configuration values not otherwise specified.
const (
	DefaultTransport        = "sim"
	DefaultWorkers          = 1
	DefaultConnectTimeout   = 30 * time.Second
	DefaultProgressInterval = 5 * time.Second
)

// MaxRate is the highest per-worker rate (requests per second) whose pacing
// interval is still at least one nanosecond.
const MaxRate = float64(time.Second)

// Config represents the configuration of a whole load test run.
type Config struct {
	Transport        string                      `yaml:"transport" json:"transport"`                 // Which transport to submit requests through.
	ContractID       string                      `yaml:"contract" json:"contract"`                   // The name of the deployed certificate contract.
	Workers          int                         `yaml:"workers" json:"workers"`                     // The number of concurrent workers per round.
	WorkerOffset     int                         `yaml:"worker_offset" json:"worker_offset"`         // Added to each local worker number to form its worker index.
	Endpoint         string                      `yaml:"endpoint" json:"endpoint"`                   // WebSockets URL of the contract gateway (ws transport).
	ConnectTimeout   timeutils.ParseableDuration `yaml:"connect_timeout" json:"connect_timeout"`     // How long to keep trying to connect to the system under test.
	RequestTimeout   timeutils.ParseableDuration `yaml:"request_timeout" json:"request_timeout"`     // Maximum time to wait for a single response (0 = no limit).
	ProgressInterval timeutils.ParseableDuration `yaml:"progress_interval" json:"progress_interval"` // How often each worker logs its progress.
	MetricsAddr      string                      `yaml:"metrics_addr" json:"metrics_addr"`           // If set, Prometheus metrics are served on this "host:port".
	Fabric           transport.FabricConfig      `yaml:"fabric" json:"fabric"`                       // Fabric gateway settings (fabric transport).
	Rounds           []Round                     `yaml:"rounds" json:"rounds"`                       // The rounds to run, in order.
}

// Round is one scheduling phase of a load test: every worker runs the same
// workload until the round's transaction count or duration is reached.
type Round struct {
	Label      string                      `yaml:"label" json:"label"`             // Human-readable name; defaults to the workload name.
	Workload   string                      `yaml:"workload" json:"workload"`       // The workload kind (issue, verify, revoke or queryall).
	TxNumber   int                         `yaml:"tx_number" json:"tx_number"`     // Requests per worker. 0 means no limit.
	TxDuration timeutils.ParseableDuration `yaml:"tx_duration" json:"tx_duration"` // Maximum round duration. 0 means no limit.
	Rate       float64                     `yaml:"rate" json:"rate"`               // Requests per second, per worker. 0 means as fast as possible.
	Arguments  map[string]interface{}      `yaml:"arguments" json:"arguments"`     // Round-specific arguments handed to the workload.
}

// DefaultConfig returns a configuration with every optional setting at its
// default and no rounds.
func DefaultConfig() Config {
	return Config{
		Transport:        DefaultTransport,
		ContractID:       workload.DefaultContractID,
		Workers:          DefaultWorkers,
		ConnectTimeout:   timeutils.ParseableDuration(DefaultConnectTimeout),
		ProgressInterval: timeutils.ParseableDuration(DefaultProgressInterval),
	}
}

// LoadConfig reads a YAML configuration file on top of the defaults.
func LoadConfig(path string) (Config, error) {
	b, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return Config{}, NewError(ErrFailedToReadConfigFile, err, path)
	}
	cfg, err := ParseConfig(b)
	if err != nil {
		return Config{}, NewError(ErrFailedToDecodeConfig, err, path)
	}
	return cfg, nil
}

// ParseConfig decodes a YAML configuration document on top of the defaults.
// Unknown keys are rejected.
func ParseConfig(doc []byte) (Config, error) {
	cfg := DefaultConfig()
	dec := yaml.NewDecoder(bytes.NewReader(doc))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if len(c.Transport) == 0 {
		return fmt.Errorf("Transport must be specified")
	}
	if !transport.Exists(c.Transport) {
		return fmt.Errorf("Transport \"%s\" does not exist", c.Transport)
	}
	if len(c.ContractID) == 0 {
		return fmt.Errorf("Contract name must be specified")
	}
	if c.Workers < 1 {
		return fmt.Errorf("Expected workers to be >= 1, but was %d", c.Workers)
	}
	if c.WorkerOffset < 0 {
		return fmt.Errorf("Expected worker offset to be >= 0, but was %d", c.WorkerOffset)
	}
	if c.ConnectTimeout < 0 || c.RequestTimeout < 0 || c.ProgressInterval < 0 {
		return fmt.Errorf("Timeouts and intervals must not be negative")
	}
	switch c.Transport {
	case "ws":
		if len(c.Endpoint) == 0 {
			return fmt.Errorf("Expected an endpoint for the ws transport, but found none")
		}
	case "fabric":
		if err := c.Fabric.Validate(); err != nil {
			return err
		}
	}
	if len(c.Rounds) == 0 {
		return fmt.Errorf("Expected at least one round, but found none")
	}
	for i, r := range c.Rounds {
		if err := r.Validate(); err != nil {
			return fmt.Errorf("Round %d: %w", i, err)
		}
	}
	return nil
}

func (r Round) Validate() error {
	if len(r.Workload) == 0 {
		return fmt.Errorf("Workload must be specified")
	}
	if _, err := workload.GetKind(r.Workload); err != nil {
		return err
	}
	if r.TxNumber < 0 {
		return fmt.Errorf("Expected transaction number to be >= 0, but was %d", r.TxNumber)
	}
	if r.TxDuration < 0 {
		return fmt.Errorf("Expected transaction duration to be >= 0, but was %s", r.TxDuration)
	}
	if r.TxNumber == 0 && r.TxDuration == 0 {
		return fmt.Errorf("Either a transaction number or a transaction duration must be specified")
	}
	if r.Rate < 0 {
		return fmt.Errorf("Expected rate to be >= 0, but was %.3f", r.Rate)
	}
	if r.Rate > MaxRate {
		return fmt.Errorf("Expected rate to be <= %.0f, but was %.3f", MaxRate, r.Rate)
	}
	return nil
}

// Name returns the round's label, falling back to its workload.
func (r Round) Name() string {
	if len(r.Label) > 0 {
		return r.Label
	}
	return r.Workload
}

// TransportConfig extracts the settings relevant to the transport layer.
func (c Config) TransportConfig() transport.Config {
	return transport.Config{
		Endpoint:       c.Endpoint,
		ConnectTimeout: c.ConnectTimeout.Duration(),
		RequestTimeout: c.RequestTimeout.Duration(),
		Fabric:         c.Fabric,
	}
}

func (c Config) ToJSON() string {
	b, err := json.Marshal(c)
	if err != nil {
		return fmt.Sprintf("%v", c)
	}
	return string(b)
}
