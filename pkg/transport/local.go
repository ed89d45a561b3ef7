package transport

import (
	"context"

	"github.com/informalsystems/cert-load-test/pkg/ledgersim"
	"github.com/informalsystems/cert-load-test/pkg/workload"
)

// NoopTransport accepts every request without sending it anywhere. Useful
// for measuring the generators on their own.
type NoopTransport struct{}

var _ Transport = (*NoopTransport)(nil)

func newNoopTransport(_ context.Context, _ Config) (Transport, error) {
	return &NoopTransport{}, nil
}

func (NoopTransport) SendRequest(ctx context.Context, _ workload.Request) (workload.Result, error) {
	return workload.Result{}, ctx.Err()
}

func (NoopTransport) Close() error { return nil }

// SimTransport submits requests to an in-process ledger simulator.
type SimTransport struct {
	ledger *ledgersim.Ledger
}

var _ Transport = (*SimTransport)(nil)

// NewSimTransport wraps the given ledger.
func NewSimTransport(l *ledgersim.Ledger) *SimTransport {
	return &SimTransport{ledger: l}
}

func newSimTransport(_ context.Context, cfg Config) (Transport, error) {
	l := cfg.Ledger
	if l == nil {
		l = ledgersim.New()
	}
	return NewSimTransport(l), nil
}

// Ledger returns the simulated ledger requests are applied to.
func (t *SimTransport) Ledger() *ledgersim.Ledger {
	return t.ledger
}

func (t *SimTransport) SendRequest(ctx context.Context, req workload.Request) (workload.Result, error) {
	if err := ctx.Err(); err != nil {
		return workload.Result{}, err
	}
	payload, err := t.ledger.Invoke(req.Function, req.Args)
	if err != nil {
		return workload.Result{}, err
	}
	return workload.Result{Payload: payload}, nil
}

func (t *SimTransport) Close() error { return nil }
