package loadtest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/informalsystems/cert-load-test/internal/logging"
	"github.com/informalsystems/cert-load-test/pkg/workload"
)

// Transactor is a single worker within a round. It owns one request builder
// and submits that builder's requests strictly one after the other, so that
// every latency sample covers exactly one in-flight request.
type Transactor struct {
	workerIndex int
	round       *Round
	roundLabel  string
	builder     *workload.Builder
	metrics     *Metrics
	logger      logging.Logger

	progressInterval time.Duration

	// Rudimentary statistics
	statsMtx  sync.RWMutex
	startTime time.Time // When did the request submission start?
	txCount   int       // How many requests have been submitted.
	txFailed  int       // How many of those failed.
	txRate    float64   // The number of requests submitted, per second.
}

// NewTransactor creates and binds the builder for the given worker.
func NewTransactor(wc workload.WorkerContext, round *Round, cfg *Config, metrics *Metrics, logger logging.Logger) (*Transactor, error) {
	builder, err := workload.NewBuilder(round.Workload, cfg.ContractID)
	if err != nil {
		return nil, err
	}
	if err := builder.Bind(wc); err != nil {
		return nil, err
	}
	workerIndex, err := builder.WorkerIndex()
	if err != nil {
		return nil, err
	}
	return &Transactor{
		workerIndex:      workerIndex,
		round:            round,
		roundLabel:       roundLabel(wc.RoundIndex, round),
		builder:          builder,
		metrics:          metrics,
		logger:           logger.With("worker", workerIndex, "function", builder.Kind().Function),
		progressInterval: cfg.ProgressInterval.Duration(),
	}, nil
}

// Run submits requests until the round's transaction number or duration is
// reached, or the context is cancelled. Failed requests are recorded and do
// not stop the transactor; only configuration defects and cancellation of
// the parent context are returned as errors.
func (t *Transactor) Run(ctx context.Context) error {
	parent := ctx
	if d := t.round.TxDuration.Duration(); d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}

	var pace <-chan time.Time
	if t.round.Rate > 0 {
		paceTicker := time.NewTicker(time.Duration(float64(time.Second) / t.round.Rate))
		defer paceTicker.Stop()
		pace = paceTicker.C
	}
	var progress <-chan time.Time
	if t.progressInterval > 0 {
		progressTicker := time.NewTicker(t.progressInterval)
		defer progressTicker.Stop()
		progress = progressTicker.C
	}

	t.metrics.activeWorkers.Inc()
	defer t.metrics.activeWorkers.Dec()
	t.trackStartTime()
	t.logger.Debug("Starting transactor")

	for {
		if t.round.TxNumber > 0 && t.GetTxCount() >= t.round.TxNumber {
			t.logger.Debug("Transaction limit reached", "count", t.GetTxCount())
			return nil
		}
		select {
		case <-progress:
			t.reportProgress()
		default:
		}
		if pace != nil {
			select {
			case <-pace:
			case <-ctx.Done():
				return t.stopped(parent)
			}
		} else if ctx.Err() != nil {
			return t.stopped(parent)
		}

		startTime := time.Now()
		req, _, err := t.builder.Submit(ctx)
		elapsed := time.Since(startTime)
		if isConfigurationDefect(err) {
			t.logger.Error("Cannot generate requests", "err", err)
			return err
		}
		if err != nil && ctx.Err() != nil {
			// interrupted by the end of the round rather than by the system
			// under test
			return t.stopped(parent)
		}
		t.trackTx(req, elapsed, err)
	}
}

func (t *Transactor) stopped(parent context.Context) error {
	if err := parent.Err(); err != nil {
		return fmt.Errorf("transactor operations cancelled: %w", err)
	}
	t.logger.Debug("Time limit reached", "count", t.GetTxCount())
	return nil
}

func isConfigurationDefect(err error) bool {
	return errors.Is(err, workload.ErrNotBound) ||
		errors.Is(err, workload.ErrNoTransport) ||
		errors.Is(err, workload.ErrInvalidWorkerIndex) ||
		errors.Is(err, workload.ErrInvalidCounter)
}

func (t *Transactor) trackStartTime() {
	t.statsMtx.Lock()
	t.startTime = time.Now()
	t.txRate = 0.0
	t.statsMtx.Unlock()
}

func (t *Transactor) trackTx(req workload.Request, elapsed time.Duration, err error) {
	t.metrics.observe(t.roundLabel, req.Function, elapsed, err)
	if err != nil {
		t.logger.PushFields()
		t.logger.SetField("request", req.String())
		t.logger.Debug("Request failed", "err", err)
		t.logger.PopFields()
	}

	t.statsMtx.Lock()
	defer t.statsMtx.Unlock()
	t.txCount++
	if err != nil {
		t.txFailed++
	}
	if secs := time.Since(t.startTime).Seconds(); secs > 0 {
		t.txRate = float64(t.txCount) / secs
	} else {
		t.txRate = 0
	}
}

// GetTxCount returns the number of requests submitted so far, including
// failed ones.
func (t *Transactor) GetTxCount() int {
	t.statsMtx.RLock()
	defer t.statsMtx.RUnlock()
	return t.txCount
}

// GetTxFailed returns the number of submitted requests that failed.
func (t *Transactor) GetTxFailed() int {
	t.statsMtx.RLock()
	defer t.statsMtx.RUnlock()
	return t.txFailed
}

// GetTxRate returns the average number of requests per second submitted by
// this transactor since it started.
func (t *Transactor) GetTxRate() float64 {
	t.statsMtx.RLock()
	defer t.statsMtx.RUnlock()
	return t.txRate
}

func (t *Transactor) reportProgress() {
	t.logger.Debug("Statistics",
		"txCount", t.GetTxCount(),
		"txFailed", t.GetTxFailed(),
		"txRate", fmt.Sprintf("%.3f txs/sec", t.GetTxRate()),
	)
}
