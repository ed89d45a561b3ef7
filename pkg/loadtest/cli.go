package loadtest

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/informalsystems/cert-load-test/internal/logging"
	"github.com/informalsystems/cert-load-test/pkg/ledgersim"
	"github.com/informalsystems/cert-load-test/pkg/transport"
	"github.com/informalsystems/cert-load-test/pkg/workload"
)

// CLIConfig allows developers to customize their own load testing tool.
type CLIConfig struct {
	AppName         string
	AppShortDesc    string
	AppLongDesc     string
	DefaultWorkload string
}

var (
	flagVerbose bool
)

// cliFlags holds the flag values that may override the configuration file.
type cliFlags struct {
	configFile string
	cfg        Config
	round      Round
}

func buildCLI(cli *CLIConfig, logger logging.Logger) *cobra.Command {
	cobra.OnInitialize(func() { initLogLevel(logger) })
	flags := cliFlags{cfg: DefaultConfig()}
	rootCmd := &cobra.Command{
		Use:           cli.AppName,
		Short:         cli.AppShortDesc,
		Long:          cli.AppLongDesc,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig(cmd, &flags)
			if err != nil {
				logger.Error(err.Error())
				return err
			}
			logger.Debug(fmt.Sprintf("Configuration: %s", cfg.ToJSON()))
			if err := cfg.Validate(); err != nil {
				logger.Error(err.Error())
				return NewError(ErrInvalidConfig, err)
			}

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			// we want to know if the user hits Ctrl+Break
			cancelTrap := trapInterrupts(cancel, logger)
			defer close(cancelTrap)

			if err := NewLoadTest(cfg).Run(ctx); err != nil {
				logger.Error("Failed to execute load test", "err", err)
				return err
			}
			return nil
		},
	}
	bindFlags(rootCmd, &flags, cli)
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "Increase output logging verbosity to DEBUG level")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List the supported workloads and transports",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "Workloads:  %s\n", strings.Join(workload.SupportedKinds(), ", "))
			fmt.Fprintf(cmd.OutOrStdout(), "Transports: %s\n", strings.Join(transport.SupportedTransports(), ", "))
		},
	}

	var gatewayBindAddr string
	gatewayCmd := &cobra.Command{
		Use:   "sim-gateway",
		Short: "Serve an in-memory certificate ledger over JSON-RPC/WebSockets, as a dry-run target for the ws transport",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSimGateway(gatewayBindAddr, logger)
		},
	}
	gatewayCmd.Flags().StringVar(&gatewayBindAddr, "bind", "localhost:26680", "The host:port on which to serve the ledger")

	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(gatewayCmd)
	return rootCmd
}

// bindFlags binds the load test settings of cmd's persistent flags to flags.
func bindFlags(cmd *cobra.Command, flags *cliFlags, cli *CLIConfig) {
	pf := cmd.PersistentFlags()
	pf.StringVarP(&flags.configFile, "config", "c", "", "A YAML file describing the load test and its rounds; flags given explicitly override its settings")
	pf.StringVar(&flags.cfg.Transport, "transport", DefaultTransport, fmt.Sprintf("The transport through which to submit requests (%s)", strings.Join(transport.SupportedTransports(), ", ")))
	pf.StringVar(&flags.cfg.ContractID, "contract", workload.DefaultContractID, "The name of the deployed certificate contract")
	pf.IntVarP(&flags.cfg.Workers, "workers", "w", DefaultWorkers, "The number of concurrent workers")
	pf.IntVar(&flags.cfg.WorkerOffset, "worker-offset", 0, "Added to every worker's number to form its worker index; give each load testing process a disjoint range")
	pf.StringVar(&flags.cfg.Endpoint, "endpoint", "", "The WebSockets URL of a JSON-RPC contract gateway (ws transport)")
	pf.DurationVar((*time.Duration)(&flags.cfg.ConnectTimeout), "connect-timeout", DefaultConnectTimeout, "How long to keep trying to connect to the system under test")
	pf.DurationVar((*time.Duration)(&flags.cfg.RequestTimeout), "request-timeout", 0, "The maximum time to wait for a single response (0 for no limit)")
	pf.DurationVar((*time.Duration)(&flags.cfg.ProgressInterval), "progress-interval", DefaultProgressInterval, "How often each worker logs its progress at DEBUG level")
	pf.StringVar(&flags.cfg.MetricsAddr, "metrics-addr", "", "If set, serve Prometheus metrics on this host:port")
	pf.StringVar(&flags.round.Workload, "workload", cli.DefaultWorkload, fmt.Sprintf("Run a single round of this workload (%s)", strings.Join(workload.SupportedKinds(), ", ")))
	pf.IntVarP(&flags.round.TxNumber, "tx-number", "N", 100, "The number of requests each worker submits in the round (0 for no limit)")
	pf.DurationVarP((*time.Duration)(&flags.round.TxDuration), "tx-duration", "T", 0, "The maximum duration of the round (0 for no limit)")
	pf.Float64VarP(&flags.round.Rate, "rate", "r", 0, "The number of requests per second each worker submits (0 to submit as fast as possible)")
	pf.StringVar(&flags.cfg.Fabric.ConnectionProfile, "fabric-ccp", "", "Path to the Fabric connection profile (fabric transport)")
	pf.StringVar(&flags.cfg.Fabric.Channel, "fabric-channel", "mychannel", "The Fabric channel on which the contract is deployed")
	pf.StringVar(&flags.cfg.Fabric.WalletPath, "fabric-wallet", "wallet", "The Fabric file system wallet directory")
	pf.StringVar(&flags.cfg.Fabric.Label, "fabric-identity", "appUser", "The identity label within the wallet")
	pf.StringVar(&flags.cfg.Fabric.MSPID, "fabric-msp", "Org1MSP", "The MSP of the identity, used to populate the wallet")
	pf.StringVar(&flags.cfg.Fabric.CertPath, "fabric-cert", "", "The PEM certificate of the identity, used to populate the wallet")
	pf.StringVar(&flags.cfg.Fabric.KeyPath, "fabric-key", "", "The PEM private key of the identity, used to populate the wallet")
	pf.BoolVar(&flags.cfg.Fabric.DiscoveryAsLocalhost, "fabric-discovery-as-localhost", true, "Map discovered Fabric peers to localhost")
}

// resolveConfig layers the configuration file (if any) and explicitly given
// flags on top of the defaults. A workload given on the command line, or the
// absence of rounds in the file, results in a single round built from the
// round flags. Otherwise explicitly given round flags apply to every round of
// the file.
func resolveConfig(cmd *cobra.Command, flags *cliFlags) (Config, error) {
	cfg := flags.cfg
	if len(flags.configFile) > 0 {
		fileCfg, err := LoadConfig(flags.configFile)
		if err != nil {
			return Config{}, err
		}
		cfg = overrideFromFlags(cmd, fileCfg, flags.cfg)
	}
	if cmd.Flags().Changed("workload") || len(cfg.Rounds) == 0 {
		cfg.Rounds = []Round{flags.round}
		return cfg, nil
	}
	for i := range cfg.Rounds {
		overrideRoundFromFlags(cmd, &cfg.Rounds[i], flags.round)
	}
	return cfg, nil
}

func overrideRoundFromFlags(cmd *cobra.Command, r *Round, fromFlags Round) {
	changed := cmd.Flags().Changed
	if changed("tx-number") {
		r.TxNumber = fromFlags.TxNumber
	}
	if changed("tx-duration") {
		r.TxDuration = fromFlags.TxDuration
	}
	if changed("rate") {
		r.Rate = fromFlags.Rate
	}
}

// overrideFromFlags copies into cfg every setting whose flag was given
// explicitly on the command line.
func overrideFromFlags(cmd *cobra.Command, cfg, fromFlags Config) Config {
	changed := cmd.Flags().Changed
	if changed("transport") {
		cfg.Transport = fromFlags.Transport
	}
	if changed("contract") {
		cfg.ContractID = fromFlags.ContractID
	}
	if changed("workers") {
		cfg.Workers = fromFlags.Workers
	}
	if changed("worker-offset") {
		cfg.WorkerOffset = fromFlags.WorkerOffset
	}
	if changed("endpoint") {
		cfg.Endpoint = fromFlags.Endpoint
	}
	if changed("connect-timeout") {
		cfg.ConnectTimeout = fromFlags.ConnectTimeout
	}
	if changed("request-timeout") {
		cfg.RequestTimeout = fromFlags.RequestTimeout
	}
	if changed("progress-interval") {
		cfg.ProgressInterval = fromFlags.ProgressInterval
	}
	if changed("metrics-addr") {
		cfg.MetricsAddr = fromFlags.MetricsAddr
	}
	fabricStrings := []struct {
		flag     string
		dst, src *string
	}{
		{"fabric-ccp", &cfg.Fabric.ConnectionProfile, &fromFlags.Fabric.ConnectionProfile},
		{"fabric-channel", &cfg.Fabric.Channel, &fromFlags.Fabric.Channel},
		{"fabric-wallet", &cfg.Fabric.WalletPath, &fromFlags.Fabric.WalletPath},
		{"fabric-identity", &cfg.Fabric.Label, &fromFlags.Fabric.Label},
		{"fabric-msp", &cfg.Fabric.MSPID, &fromFlags.Fabric.MSPID},
		{"fabric-cert", &cfg.Fabric.CertPath, &fromFlags.Fabric.CertPath},
		{"fabric-key", &cfg.Fabric.KeyPath, &fromFlags.Fabric.KeyPath},
	}
	for _, f := range fabricStrings {
		if changed(f.flag) {
			*f.dst = *f.src
		}
	}
	if changed("fabric-discovery-as-localhost") {
		cfg.Fabric.DiscoveryAsLocalhost = fromFlags.Fabric.DiscoveryAsLocalhost
	}
	return cfg
}

func runSimGateway(bindAddr string, logger logging.Logger) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/websocket", ledgersim.NewWebSocketHandler(ledgersim.New(), logger.With("component", "sim-gateway")))
	svr := &http.Server{
		Addr:              bindAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	cancelTrap := trapInterrupts(func() {
		ctx, cancel := context.WithTimeout(context.Background(), metricsShutdownTimeout)
		defer cancel()
		_ = svr.Shutdown(ctx)
	}, logger)
	defer close(cancelTrap)

	logger.Info("Serving simulated ledger", "addr", "ws://"+bindAddr+"/websocket")
	if err := svr.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func initLogLevel(logger logging.Logger) {
	if flagVerbose {
		logrus.SetLevel(logrus.DebugLevel)
		logger.Debug("Set logging level to DEBUG")
	}
}

// Run must be executed from your `main` function in your Go code. It exits
// the process with the code of the error that stopped the load test, if any.
func Run(cli *CLIConfig) {
	logger := logging.NewLogrusLogger("main")
	if err := buildCLI(cli, logger).Execute(); err != nil {
		os.Exit(ExitCode(err))
	}
}

