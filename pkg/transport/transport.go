// Package transport provides the ways generated requests can be submitted to
// a system under test.
package transport

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/informalsystems/cert-load-test/internal/logging"
	"github.com/informalsystems/cert-load-test/pkg/ledgersim"
	"github.com/informalsystems/cert-load-test/pkg/workload"
)

// ErrTransportClosed is returned for requests made after Close.
var ErrTransportClosed = errors.New("transport closed")

// Transport is a workload.Transport that holds resources until closed. A
// single Transport is shared by all workers of a load test, so
// implementations must be safe for concurrent use.
type Transport interface {
	workload.Transport
	Close() error
}

// Config carries the settings of all transports; each transport reads the
// fields relevant to it.
type Config struct {
	Endpoint       string            // WebSockets URL of a JSON-RPC contract gateway ("ws" only).
	ConnectTimeout time.Duration     // How long to keep retrying the initial connection.
	RequestTimeout time.Duration     // Maximum time to wait for a single response. Zero means no limit.
	Fabric         FabricConfig      // Fabric gateway settings ("fabric" only).
	Ledger         *ledgersim.Ledger // Ledger to submit to ("sim" only). A fresh one is created if nil.
	Logger         logging.Logger
}

func (c Config) logger() logging.Logger {
	if c.Logger == nil {
		return logging.NewNoopLogger()
	}
	return c.Logger
}

// Factory creates a transport from the given configuration.
type Factory func(ctx context.Context, cfg Config) (Transport, error)

var factories = make(map[string]Factory)

func init() {
	for name, f := range map[string]Factory{
		"noop":   newNoopTransport,
		"sim":    newSimTransport,
		"ws":     NewWebSocketTransport,
		"fabric": NewFabricTransport,
	} {
		if err := RegisterFactory(name, f); err != nil {
			panic(err)
		}
	}
}

// RegisterFactory makes a transport available under the given name.
func RegisterFactory(name string, f Factory) error {
	if _, exists := factories[name]; exists {
		return fmt.Errorf("transport factory with ID %q already exists", name)
	}
	factories[name] = f
	return nil
}

// Exists reports whether a transport is registered under the given name.
func Exists(name string) bool {
	_, ok := factories[name]
	return ok
}

// New creates the transport registered under the given name.
func New(ctx context.Context, name string, cfg Config) (Transport, error) {
	f, ok := factories[name]
	if !ok {
		return nil, fmt.Errorf("unrecognized transport %q (supported: %s)", name, strings.Join(SupportedTransports(), ", "))
	}
	return f(ctx, cfg)
}

// SupportedTransports returns the names of all registered transports, sorted.
func SupportedTransports() []string {
	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
