package workload

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// WorkerContext is everything the host hands a builder when binding it to a
// worker. Only WorkerIndex and Transport are retained.
type WorkerContext struct {
	WorkerIndex  int                    // Partitions the identifier space; unique per worker.
	TotalWorkers int                    // The number of workers in the round.
	RoundIndex   int                    // The zero-based index of the round being run.
	RoundArgs    map[string]interface{} // Round-specific arguments from the host configuration.
	Transport    Transport              // Where generated requests are submitted. May be nil if only Next is used.
}

// Option customises a Builder.
type Option func(*Builder)

// WithClock overrides the clock used for the issue date.
func WithClock(now func() time.Time) Option {
	return func(b *Builder) {
		b.now = now
	}
}

// Builder generates the requests of one workload kind for one worker.
//
// A builder starts out unbound and must be bound exactly once via Bind
// before it generates anything. Builders must not be shared across workers.
//
// Verify and revoke builders keep their own counter. Their requests only
// target certificates that exist if the host drives them through the same
// counter sequence, with the same worker indices, as the issue round.
type Builder struct {
	kind       *Kind
	contractID string
	now        func() time.Time

	submitMtx sync.Mutex // Held for a whole Submit, so at most one request is in flight.

	mtx         sync.Mutex
	bound       bool
	workerIndex int
	counter     int
	transport   Transport
}

// NewBuilder creates an unbound builder for the kind registered under the
// given name.
func NewBuilder(kindName, contractID string, opts ...Option) (*Builder, error) {
	k, err := GetKind(kindName)
	if err != nil {
		return nil, err
	}
	return NewKindBuilder(k, contractID, opts...), nil
}

// NewKindBuilder creates an unbound builder for the given kind.
func NewKindBuilder(k *Kind, contractID string, opts ...Option) *Builder {
	if len(contractID) == 0 {
		contractID = DefaultContractID
	}
	b := &Builder{
		kind:       k,
		contractID: contractID,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Kind returns the kind of requests this builder generates.
func (b *Builder) Kind() *Kind {
	return b.kind
}

// Bind attaches the builder to a worker. It may only be called once.
func (b *Builder) Bind(wc WorkerContext) error {
	if wc.WorkerIndex < 0 {
		return fmt.Errorf("%w, but was %d", ErrInvalidWorkerIndex, wc.WorkerIndex)
	}
	b.mtx.Lock()
	defer b.mtx.Unlock()
	if b.bound {
		return fmt.Errorf("%w: worker %d", ErrAlreadyBound, b.workerIndex)
	}
	b.bound = true
	b.workerIndex = wc.WorkerIndex
	b.transport = wc.Transport
	return nil
}

// WorkerIndex returns the worker index the builder was bound with.
func (b *Builder) WorkerIndex() (int, error) {
	b.mtx.Lock()
	defer b.mtx.Unlock()
	if !b.bound {
		return 0, ErrNotBound
	}
	return b.workerIndex, nil
}

// Next generates the next request, advancing the counter if the builder's
// kind consumes counter positions.
func (b *Builder) Next() (Request, error) {
	b.mtx.Lock()
	defer b.mtx.Unlock()
	if !b.bound {
		return Request{}, ErrNotBound
	}

	var id Identity
	if b.kind.Advances {
		next, err := NextIdentity(b.workerIndex, b.counter+1)
		if err != nil {
			return Request{}, err
		}
		b.counter++
		id = next
	}
	return Request{
		ContractID: b.contractID,
		Function:   b.kind.Function,
		Args:       b.kind.Args(id, b.now().UTC().Format(IssueDateLayout)),
		ReadOnly:   b.kind.ReadOnly,
	}, nil
}

// Submit generates the next request and sends it through the bound
// transport, blocking until the transport reports an outcome. Transport
// errors are returned exactly as the transport produced them.
func (b *Builder) Submit(ctx context.Context) (Request, Result, error) {
	b.submitMtx.Lock()
	defer b.submitMtx.Unlock()

	b.mtx.Lock()
	bound, transport := b.bound, b.transport
	b.mtx.Unlock()
	if !bound {
		return Request{}, Result{}, ErrNotBound
	}
	if transport == nil {
		return Request{}, Result{}, ErrNoTransport
	}

	req, err := b.Next()
	if err != nil {
		return Request{}, Result{}, err
	}
	res, err := transport.SendRequest(ctx, req)
	return req, res, err
}
