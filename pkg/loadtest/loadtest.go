package loadtest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	uuid "github.com/satori/go.uuid"

	"github.com/informalsystems/cert-load-test/internal/logging"
	"github.com/informalsystems/cert-load-test/pkg/transport"
	"github.com/informalsystems/cert-load-test/pkg/workload"
)

// LoadTest runs the configured rounds, one after the other, against a
// single transport.
type LoadTest struct {
	cfg       Config
	runID     string
	logger    logging.Logger
	metrics   *Metrics
	transport transport.Transport
	ownsTrans bool
}

// Option customises a LoadTest.
type Option func(*LoadTest)

// WithTransport makes the load test submit through the given transport
// rather than creating one from the configuration. The caller remains
// responsible for closing it.
func WithTransport(t transport.Transport) Option {
	return func(lt *LoadTest) {
		lt.transport = t
	}
}

// WithLogger overrides the logger.
func WithLogger(logger logging.Logger) Option {
	return func(lt *LoadTest) {
		lt.logger = logger
	}
}

func NewLoadTest(cfg Config, opts ...Option) *LoadTest {
	lt := &LoadTest{
		cfg:     cfg,
		runID:   makeRunID(),
		logger:  logging.NewLogrusLogger("loadtest"),
		metrics: NewMetrics(),
	}
	for _, opt := range opts {
		opt(lt)
	}
	lt.logger = lt.logger.With("run", lt.runID)
	return lt
}

func makeRunID() string {
	return strings.ReplaceAll(uuid.NewV4().String(), "-", "")
}

// RunID uniquely identifies this load test run in logs.
func (lt *LoadTest) RunID() string {
	return lt.runID
}

func (lt *LoadTest) Metrics() *Metrics {
	return lt.metrics
}

// Run executes every round in order. A round that fails stops the load test;
// failed requests within a round do not.
func (lt *LoadTest) Run(ctx context.Context) error {
	if err := lt.cfg.Validate(); err != nil {
		return NewError(ErrInvalidConfig, err)
	}

	if len(lt.cfg.MetricsAddr) > 0 {
		shutdown, err := lt.metrics.Serve(lt.cfg.MetricsAddr, lt.logger)
		if err != nil {
			return NewError(ErrMetricsServerFailed, err)
		}
		defer shutdown()
	}

	if lt.transport == nil {
		tcfg := lt.cfg.TransportConfig()
		tcfg.Logger = lt.logger.With("transport", lt.cfg.Transport)
		t, err := transport.New(ctx, lt.cfg.Transport, tcfg)
		if err != nil {
			return NewError(ErrFailedToCreateTransport, err, lt.cfg.Transport)
		}
		lt.transport = t
		lt.ownsTrans = true
		defer lt.closeTransport()
	}

	lt.logger.Info("Initiating load test", "rounds", len(lt.cfg.Rounds), "workers", lt.cfg.Workers, "transport", lt.cfg.Transport)
	for i := range lt.cfg.Rounds {
		if err := lt.runRound(ctx, i, &lt.cfg.Rounds[i]); err != nil {
			return roundFailure(err, &lt.cfg.Rounds[i])
		}
	}
	lt.logger.Info("Load test complete!")
	return nil
}

func (lt *LoadTest) runRound(ctx context.Context, idx int, round *Round) error {
	logger := lt.logger.With("round", round.Name())
	lt.metrics.currentRound.Set(float64(idx))
	defer lt.metrics.currentRound.Set(-1)

	tg := NewTransactorGroup()
	for w := 0; w < lt.cfg.Workers; w++ {
		wc := workload.WorkerContext{
			WorkerIndex:  lt.cfg.WorkerOffset + w,
			TotalWorkers: lt.cfg.Workers,
			RoundIndex:   idx,
			RoundArgs:    round.Arguments,
			Transport:    lt.transport,
		}
		t, err := NewTransactor(wc, round, &lt.cfg, lt.metrics, logger)
		if err != nil {
			return NewError(ErrFailedToCreateWorker, err, fmt.Sprintf("worker %d", wc.WorkerIndex))
		}
		tg.Add(t)
	}

	logger.Info("Starting round", "workload", round.Workload, "txNumber", round.TxNumber, "txDuration", round.TxDuration.String(), "rate", round.Rate)
	startTime := time.Now()
	err := tg.Run(ctx)
	logger.Info("Round finished",
		"elapsed", time.Since(startTime).String(),
		"txCount", tg.GetTxCount(),
		"txFailed", tg.GetTxFailed(),
		"txRate", fmt.Sprintf("%.3f txs/sec", tg.GetTxRate()),
	)
	if err != nil {
		logger.Error("Round failed", "err", err)
	}
	return err
}

// roundFailure assigns an error code to the error that stopped a round.
// Errors that already carry a code keep it.
func roundFailure(err error, round *Round) error {
	if errors.Is(err, context.Canceled) {
		return NewError(ErrKilled, err)
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return NewError(ErrRoundFailed, err, round.Name())
}

func (lt *LoadTest) closeTransport() {
	if !lt.ownsTrans {
		return
	}
	if err := lt.transport.Close(); err != nil {
		lt.logger.Error("Failed to close transport", "err", err)
	}
}
