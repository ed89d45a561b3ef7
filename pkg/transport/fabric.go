package transport

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/hyperledger/fabric-sdk-go/pkg/core/config"
	"github.com/hyperledger/fabric-sdk-go/pkg/gateway"

	"github.com/informalsystems/cert-load-test/internal/logging"
	"github.com/informalsystems/cert-load-test/pkg/workload"
)

// FabricConfig describes how to reach a Hyperledger Fabric network through
// its gateway.
type FabricConfig struct {
	ConnectionProfile    string `yaml:"connection_profile" json:"connection_profile"`         // Path to the connection profile (YAML or JSON).
	Channel              string `yaml:"channel" json:"channel"`                               // The channel on which the contract is deployed.
	WalletPath           string `yaml:"wallet" json:"wallet"`                                 // File system wallet directory.
	Label                string `yaml:"label" json:"label"`                                   // The identity label within the wallet.
	MSPID                string `yaml:"msp_id" json:"msp_id"`                                 // MSP of the identity, used when populating the wallet.
	CertPath             string `yaml:"cert" json:"cert"`                                     // PEM certificate, used when populating the wallet.
	KeyPath              string `yaml:"key" json:"key"`                                       // PEM private key, used when populating the wallet.
	DiscoveryAsLocalhost bool   `yaml:"discovery_as_localhost" json:"discovery_as_localhost"` // Map discovered peers to localhost (docker test networks).
}

func (c FabricConfig) Validate() error {
	if len(c.ConnectionProfile) == 0 {
		return fmt.Errorf("Fabric connection profile must be specified")
	}
	if len(c.Channel) == 0 {
		return fmt.Errorf("Fabric channel must be specified")
	}
	if len(c.WalletPath) == 0 {
		return fmt.Errorf("Fabric wallet path must be specified")
	}
	if len(c.Label) == 0 {
		return fmt.Errorf("Fabric identity label must be specified")
	}
	return nil
}

// FabricTransport submits requests through a Fabric gateway. Read-only
// requests are evaluated on a single peer; all others are endorsed,
// ordered and committed.
type FabricTransport struct {
	gw      *gateway.Gateway
	network *gateway.Network
	logger  logging.Logger

	mtx       sync.Mutex
	contracts map[string]*gateway.Contract
}

var _ Transport = (*FabricTransport)(nil)

// NewFabricTransport connects to the gateway described by cfg.Fabric,
// populating the wallet from the configured certificate and key if the
// identity is not in it yet.
func NewFabricTransport(_ context.Context, cfg Config) (Transport, error) {
	fc := cfg.Fabric
	if err := fc.Validate(); err != nil {
		return nil, err
	}
	logger := cfg.logger().With("channel", fc.Channel, "identity", fc.Label)

	if err := os.Setenv("DISCOVERY_AS_LOCALHOST", strconv.FormatBool(fc.DiscoveryAsLocalhost)); err != nil {
		logger.Warn("Failed to set DISCOVERY_AS_LOCALHOST", "err", err)
	}

	wallet, err := gateway.NewFileSystemWallet(filepath.Clean(fc.WalletPath))
	if err != nil {
		return nil, fmt.Errorf("failed to open wallet %s: %w", fc.WalletPath, err)
	}
	if !wallet.Exists(fc.Label) {
		if err := populateWallet(wallet, fc); err != nil {
			return nil, fmt.Errorf("failed to populate wallet: %w", err)
		}
		logger.Info("Added identity to wallet", "wallet", fc.WalletPath)
	}

	gw, err := gateway.Connect(
		gateway.WithConfig(config.FromFile(filepath.Clean(fc.ConnectionProfile))),
		gateway.WithIdentity(wallet, fc.Label),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to gateway: %w", err)
	}
	network, err := gw.GetNetwork(fc.Channel)
	if err != nil {
		gw.Close()
		return nil, fmt.Errorf("failed to get network %s: %w", fc.Channel, err)
	}
	logger.Info("Connected to Fabric gateway")

	return &FabricTransport{
		gw:        gw,
		network:   network,
		logger:    logger,
		contracts: make(map[string]*gateway.Contract),
	}, nil
}

func populateWallet(wallet *gateway.Wallet, fc FabricConfig) error {
	if len(fc.MSPID) == 0 || len(fc.CertPath) == 0 || len(fc.KeyPath) == 0 {
		return fmt.Errorf("identity %q is not in the wallet, and MSP ID, certificate and key are needed to add it", fc.Label)
	}
	cert, err := os.ReadFile(filepath.Clean(fc.CertPath))
	if err != nil {
		return err
	}
	key, err := os.ReadFile(filepath.Clean(fc.KeyPath))
	if err != nil {
		return err
	}
	return wallet.Put(fc.Label, gateway.NewX509Identity(fc.MSPID, string(cert), string(key)))
}

func (t *FabricTransport) contract(id string) *gateway.Contract {
	t.mtx.Lock()
	defer t.mtx.Unlock()
	c, ok := t.contracts[id]
	if !ok {
		c = t.network.GetContract(id)
		t.contracts[id] = c
	}
	return c
}

// SendRequest blocks until the gateway reports the outcome of the request.
// The gateway API does not take a context, so cancellation is only observed
// before the request is sent.
func (t *FabricTransport) SendRequest(ctx context.Context, req workload.Request) (workload.Result, error) {
	if err := ctx.Err(); err != nil {
		return workload.Result{}, err
	}
	contract := t.contract(req.ContractID)
	var (
		payload []byte
		err     error
	)
	if req.ReadOnly {
		payload, err = contract.EvaluateTransaction(req.Function, req.Args...)
	} else {
		payload, err = contract.SubmitTransaction(req.Function, req.Args...)
	}
	if err != nil {
		return workload.Result{}, err
	}
	return workload.Result{Payload: payload}, nil
}

func (t *FabricTransport) Close() error {
	t.gw.Close()
	return nil
}
