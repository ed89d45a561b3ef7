package transport

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"

	"github.com/informalsystems/cert-load-test/internal/logging"
	"github.com/informalsystems/cert-load-test/pkg/jsonrpc"
	"github.com/informalsystems/cert-load-test/pkg/workload"
)

const (
	connSendTimeout       = 10 * time.Second
	defaultConnectTimeout = 30 * time.Second
	connRetryInterval     = 100 * time.Millisecond
)

// WebSocketTransport submits requests as JSON-RPC calls over a single
// WebSockets connection. Responses are matched to callers by request ID, so
// many workers can share one connection while each of them still waits for
// its own response.
type WebSocketTransport struct {
	remoteAddr     string
	conn           *websocket.Conn
	logger         logging.Logger
	requestTimeout time.Duration
	wg             sync.WaitGroup

	writeMtx sync.Mutex
	nextID   int64

	pendingMtx sync.Mutex
	pending    map[int64]chan jsonrpc.Response

	closeOnce sync.Once
	closed    chan struct{}
	closeErr  error
}

var _ Transport = (*WebSocketTransport)(nil)

// NewWebSocketTransport connects to the given WebSockets URL, which must be
// of the form "ws://host:port/path" or "wss://host:port/path". The
// connection attempt is retried with exponential backoff until
// ConnectTimeout elapses; requests themselves are never retried.
func NewWebSocketTransport(ctx context.Context, cfg Config) (Transport, error) {
	u, err := url.Parse(cfg.Endpoint)
	if err != nil {
		return nil, err
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return nil, fmt.Errorf("unsupported protocol: %s (only ws:// and wss:// are supported)", u.Scheme)
	}
	logger := cfg.logger().With("endpoint", u.String())
	conn, err := dialWithBackoff(ctx, u.String(), cfg.ConnectTimeout, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", u.String(), err)
	}
	logger.Info("Connected to remote contract gateway")

	t := &WebSocketTransport{
		remoteAddr:     u.String(),
		conn:           conn,
		logger:         logger,
		requestTimeout: cfg.RequestTimeout,
		pending:        make(map[int64]chan jsonrpc.Response),
		closed:         make(chan struct{}),
	}
	t.wg.Add(1)
	go t.receiveLoop()
	return t, nil
}

func dialWithBackoff(ctx context.Context, addr string, timeout time.Duration, logger logging.Logger) (*websocket.Conn, error) {
	if timeout <= 0 {
		timeout = defaultConnectTimeout
	}
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = connRetryInterval
	bo.MaxElapsedTime = timeout

	var conn *websocket.Conn
	err := backoff.RetryNotify(func() error {
		c, resp, err := websocket.DefaultDialer.DialContext(ctx, addr, nil)
		if err != nil {
			// the endpoint exists but refuses us; retrying will not help
			if resp != nil && resp.StatusCode >= 400 && resp.StatusCode < 500 {
				return backoff.Permanent(fmt.Errorf("%w (status code %d)", err, resp.StatusCode))
			}
			return err
		}
		conn = c
		return nil
	}, backoff.WithContext(bo, ctx), func(err error, wait time.Duration) {
		logger.Debug("Failed to connect, will retry", "err", err, "wait", wait)
	})
	return conn, err
}

// SendRequest writes the request and blocks until its response arrives, the
// context is done or the connection fails.
func (t *WebSocketTransport) SendRequest(ctx context.Context, req workload.Request) (workload.Result, error) {
	id := atomic.AddInt64(&t.nextID, 1)
	rpcReq, err := jsonrpc.NewInvokeRequest(id, req.Function, jsonrpc.InvokeParams{
		Contract: req.ContractID,
		Args:     req.Args,
		ReadOnly: req.ReadOnly,
	})
	if err != nil {
		return workload.Result{}, err
	}

	resc := make(chan jsonrpc.Response, 1)
	if err := t.addPending(id, resc); err != nil {
		return workload.Result{}, err
	}
	defer t.removePending(id)

	if t.requestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.requestTimeout)
		defer cancel()
	}

	if err := t.writeRequest(rpcReq); err != nil {
		return workload.Result{}, err
	}

	select {
	case res := <-resc:
		payload, err := res.Payload()
		if err != nil {
			return workload.Result{}, err
		}
		return workload.Result{Payload: payload}, nil
	case <-ctx.Done():
		return workload.Result{}, ctx.Err()
	case <-t.closed:
		return workload.Result{}, t.closeErr
	}
}

func (t *WebSocketTransport) writeRequest(req jsonrpc.Request) error {
	t.writeMtx.Lock()
	defer t.writeMtx.Unlock()
	_ = t.conn.SetWriteDeadline(time.Now().Add(connSendTimeout))
	return t.conn.WriteJSON(req)
}

func (t *WebSocketTransport) addPending(id int64, resc chan jsonrpc.Response) error {
	t.pendingMtx.Lock()
	defer t.pendingMtx.Unlock()
	select {
	case <-t.closed:
		return t.closeErr
	default:
	}
	t.pending[id] = resc
	return nil
}

func (t *WebSocketTransport) removePending(id int64) {
	t.pendingMtx.Lock()
	delete(t.pending, id)
	t.pendingMtx.Unlock()
}

func (t *WebSocketTransport) receiveLoop() {
	defer t.wg.Done()
	for {
		var res jsonrpc.Response
		if err := t.conn.ReadJSON(&res); err != nil {
			select {
			case <-t.closed:
			default:
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
					t.logger.Error("Failed to read response on connection", "err", err)
				}
			}
			t.shutdown(fmt.Errorf("connection to %s lost: %w", t.remoteAddr, err))
			return
		}
		t.pendingMtx.Lock()
		resc, ok := t.pending[res.ID]
		t.pendingMtx.Unlock()
		if !ok {
			t.logger.Debug("Dropping response to unknown or abandoned request", "id", res.ID)
			continue
		}
		resc <- res
	}
}

func (t *WebSocketTransport) shutdown(err error) {
	t.closeOnce.Do(func() {
		t.pendingMtx.Lock()
		t.closeErr = err
		close(t.closed)
		t.pendingMtx.Unlock()
	})
}

// Close tries to cleanly shut down the connection and waits for the receive
// loop to terminate. Pending requests fail with ErrTransportClosed.
func (t *WebSocketTransport) Close() error {
	t.shutdown(ErrTransportClosed)

	t.writeMtx.Lock()
	_ = t.conn.SetWriteDeadline(time.Now().Add(connSendTimeout))
	err := t.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	t.writeMtx.Unlock()
	if err != nil {
		t.logger.Debug("Failed to write close message", "err", err)
	}

	cerr := t.conn.Close()
	t.wg.Wait()
	return cerr
}
