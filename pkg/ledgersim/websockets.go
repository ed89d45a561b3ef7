package ledgersim

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/informalsystems/cert-load-test/internal/logging"
	"github.com/informalsystems/cert-load-test/pkg/jsonrpc"
)

const connSendTimeout = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// NewWebSocketHandler serves the ledger over JSON-RPC on WebSockets. Each
// incoming request is answered in order on the same connection. Frames that
// are not valid JSON-RPC requests are answered with a parse error carrying
// ID 0.
func NewWebSocketHandler(l *Ledger, logger logging.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Error("Failed to upgrade incoming connection", "err", err)
			return
		}
		defer conn.Close()
		logger.Debug("Accepted connection", "remoteAddr", conn.RemoteAddr().String())

		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					logger.Error("Failed to read request", "err", err)
				}
				return
			}
			var res jsonrpc.Response
			var req jsonrpc.Request
			if err := json.Unmarshal(msg, &req); err != nil {
				logger.Debug("Received malformed request", "err", err)
				res = jsonrpc.NewErrorResponse(0, jsonrpc.CodeParseError, err.Error())
			} else {
				res = serveRequest(l, req)
			}
			_ = conn.SetWriteDeadline(time.Now().Add(connSendTimeout))
			if err := conn.WriteJSON(res); err != nil {
				logger.Error("Failed to write response", "err", err)
				return
			}
		}
	}
}

func serveRequest(l *Ledger, req jsonrpc.Request) jsonrpc.Response {
	if req.JSONRPC != jsonrpc.Version {
		return jsonrpc.NewErrorResponse(req.ID, jsonrpc.CodeInvalidRequest, "unsupported JSON-RPC version")
	}
	var params jsonrpc.InvokeParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return jsonrpc.NewErrorResponse(req.ID, jsonrpc.CodeInvalidParams, err.Error())
	}
	payload, err := l.Invoke(req.Method, params.Args)
	switch {
	case errors.Is(err, ErrUnknownFunction):
		return jsonrpc.NewErrorResponse(req.ID, jsonrpc.CodeMethodNotFound, err.Error())
	case errors.Is(err, ErrWrongArgCount):
		return jsonrpc.NewErrorResponse(req.ID, jsonrpc.CodeInvalidParams, err.Error())
	case err != nil:
		return jsonrpc.NewErrorResponse(req.ID, jsonrpc.CodeContractError, err.Error())
	}
	return jsonrpc.NewResultResponse(req.ID, payload)
}
