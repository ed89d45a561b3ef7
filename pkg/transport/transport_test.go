package transport_test

import (
	"context"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/informalsystems/cert-load-test/internal/logging"
	"github.com/informalsystems/cert-load-test/pkg/jsonrpc"
	"github.com/informalsystems/cert-load-test/pkg/ledgersim"
	"github.com/informalsystems/cert-load-test/pkg/transport"
	"github.com/informalsystems/cert-load-test/pkg/workload"
)

func startGateway(t *testing.T) (*ledgersim.Ledger, string) {
	l := ledgersim.New()
	svr := httptest.NewServer(ledgersim.NewWebSocketHandler(l, logging.NewNoopLogger()))
	t.Cleanup(svr.Close)
	return l, "ws" + strings.TrimPrefix(svr.URL, "http") + "/websocket"
}

func newBuilder(t *testing.T, kind string, worker int, tr workload.Transport) *workload.Builder {
	b, err := workload.NewBuilder(kind, "basic")
	require.NoError(t, err)
	require.NoError(t, b.Bind(workload.WorkerContext{WorkerIndex: worker, Transport: tr}))
	return b
}

func TestSupportedTransports(t *testing.T) {
	assert.Equal(t, []string{"fabric", "noop", "sim", "ws"}, transport.SupportedTransports())
	assert.True(t, transport.Exists("sim"))
	assert.False(t, transport.Exists("grpc"))

	_, err := transport.New(context.Background(), "grpc", transport.Config{})
	assert.Error(t, err)
	assert.Error(t, transport.RegisterFactory("noop", nil))
}

func TestSimTransport(t *testing.T) {
	l := ledgersim.New()
	tr, err := transport.New(context.Background(), "sim", transport.Config{Ledger: l})
	require.NoError(t, err)
	defer tr.Close()

	issue := newBuilder(t, "issue", 0, tr)
	verify := newBuilder(t, "verify", 0, tr)
	for i := 0; i < 5; i++ {
		_, _, err := issue.Submit(context.Background())
		require.NoError(t, err)
	}
	assert.Equal(t, 5, l.Len())
	for i := 0; i < 5; i++ {
		_, res, err := verify.Submit(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "true", string(res.Payload))
	}

	// a second issue builder for the same worker collides with the first
	dup := newBuilder(t, "issue", 0, tr)
	_, _, err = dup.Submit(context.Background())
	assert.ErrorIs(t, err, ledgersim.ErrCertificateExists)
}

func TestSimTransportHonoursCancellation(t *testing.T) {
	tr := transport.NewSimTransport(ledgersim.New())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := newBuilder(t, "issue", 0, tr).Submit(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, tr.Ledger().Len())
}

func TestNoopTransport(t *testing.T) {
	tr, err := transport.New(context.Background(), "noop", transport.Config{})
	require.NoError(t, err)
	_, res, err := newBuilder(t, "queryall", 0, tr).Submit(context.Background())
	require.NoError(t, err)
	assert.Empty(t, res.Payload)
	assert.NoError(t, tr.Close())
}

func TestWebSocketTransport(t *testing.T) {
	l, endpoint := startGateway(t)
	tr, err := transport.New(context.Background(), "ws", transport.Config{
		Endpoint:       endpoint,
		ConnectTimeout: 5 * time.Second,
		RequestTimeout: 5 * time.Second,
	})
	require.NoError(t, err)
	defer tr.Close()

	issue := newBuilder(t, "issue", 4, tr)
	_, _, err = issue.Submit(context.Background())
	require.NoError(t, err)
	cert, ok := l.Get("CERT_4_1")
	require.True(t, ok)
	assert.Equal(t, workload.Fingerprint("CERT_4_1", "Student_4_1"), cert.CertHash)

	_, res, err := newBuilder(t, "verify", 4, tr).Submit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "true", string(res.Payload))

	_, res, err = newBuilder(t, "queryall", 4, tr).Submit(context.Background())
	require.NoError(t, err)
	assert.Contains(t, string(res.Payload), `"ID":"CERT_4_1"`)
}

func TestWebSocketTransportSurfacesRemoteErrors(t *testing.T) {
	_, endpoint := startGateway(t)
	tr, err := transport.New(context.Background(), "ws", transport.Config{Endpoint: endpoint})
	require.NoError(t, err)
	defer tr.Close()

	_, _, err = newBuilder(t, "issue", 0, tr).Submit(context.Background())
	require.NoError(t, err)
	_, _, err = newBuilder(t, "issue", 0, tr).Submit(context.Background())

	var rpcErr *jsonrpc.Error
	require.ErrorAs(t, err, &rpcErr)
	assert.Equal(t, jsonrpc.CodeContractError, rpcErr.Code)
	assert.Contains(t, rpcErr.Message, "CERT_0_1")
}

func TestWebSocketTransportConcurrentWorkers(t *testing.T) {
	const workers, perWorker = 6, 20
	l, endpoint := startGateway(t)
	tr, err := transport.New(context.Background(), "ws", transport.Config{Endpoint: endpoint})
	require.NoError(t, err)
	defer tr.Close()

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		b := newBuilder(t, "issue", w, tr)
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				if _, _, err := b.Submit(context.Background()); err != nil {
					t.Error(err)
					return
				}
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, workers*perWorker, l.Len())
}

func TestWebSocketTransportClose(t *testing.T) {
	_, endpoint := startGateway(t)
	tr, err := transport.New(context.Background(), "ws", transport.Config{Endpoint: endpoint})
	require.NoError(t, err)
	require.NoError(t, tr.Close())

	_, _, err = newBuilder(t, "revoke", 0, tr).Submit(context.Background())
	assert.ErrorIs(t, err, transport.ErrTransportClosed)
}

func TestWebSocketTransportRejectsBadEndpoints(t *testing.T) {
	_, err := transport.New(context.Background(), "ws", transport.Config{Endpoint: "http://localhost:1234"})
	assert.Error(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	_, err = transport.New(ctx, "ws", transport.Config{
		Endpoint:       "ws://127.0.0.1:1/websocket",
		ConnectTimeout: 300 * time.Millisecond,
	})
	assert.Error(t, err)
}

func TestFabricConfigValidation(t *testing.T) {
	testCases := []struct {
		cfg transport.FabricConfig
		err bool
	}{
		{transport.FabricConfig{}, true},
		{transport.FabricConfig{ConnectionProfile: "ccp.yaml"}, true},
		{transport.FabricConfig{ConnectionProfile: "ccp.yaml", Channel: "mychannel"}, true},
		{transport.FabricConfig{ConnectionProfile: "ccp.yaml", Channel: "mychannel", WalletPath: "wallet"}, true},
		{transport.FabricConfig{ConnectionProfile: "ccp.yaml", Channel: "mychannel", WalletPath: "wallet", Label: "appUser"}, false},
	}
	for i, tc := range testCases {
		err := tc.cfg.Validate()
		if tc.err {
			assert.Error(t, err, "test case %d", i)
		} else {
			assert.NoError(t, err, "test case %d", i)
		}
	}

	_, err := transport.New(context.Background(), "fabric", transport.Config{})
	assert.Error(t, err)
}
