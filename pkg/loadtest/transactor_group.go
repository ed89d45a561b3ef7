package loadtest

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// TransactorGroup allows us to encapsulate the management of a group of
// transactors that make up one round.
type TransactorGroup struct {
	transactors []*Transactor
}

func NewTransactorGroup() *TransactorGroup {
	return &TransactorGroup{
		transactors: make([]*Transactor, 0),
	}
}

func (g *TransactorGroup) Add(t *Transactor) {
	g.transactors = append(g.transactors, t)
}

// Run starts all transactors and waits for them to complete. If one of them
// fails, the others are cancelled and the first error is returned.
func (g *TransactorGroup) Run(ctx context.Context) error {
	eg, ctx := errgroup.WithContext(ctx)
	for _, t := range g.transactors {
		t := t
		eg.Go(func() error {
			return t.Run(ctx)
		})
	}
	return eg.Wait()
}

// GetTxCount returns the total number of requests submitted by all
// transactors in the group.
func (g *TransactorGroup) GetTxCount() int {
	total := 0
	for _, t := range g.transactors {
		total += t.GetTxCount()
	}
	return total
}

// GetTxFailed returns the total number of failed requests in the group.
func (g *TransactorGroup) GetTxFailed() int {
	total := 0
	for _, t := range g.transactors {
		total += t.GetTxFailed()
	}
	return total
}

// GetTxRate returns the summed request rate of all transactors.
func (g *TransactorGroup) GetTxRate() float64 {
	total := 0.0
	for _, t := range g.transactors {
		total += t.GetTxRate()
	}
	return total
}
