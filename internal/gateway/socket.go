package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/coder/websocket"
)

// handleRunSocket serves GET /v1/runs/ws. Each text message from the client
// is a run submission in the POST /v1/runs format; the run's events are
// written back as text messages. Runs on one connection are sequential and
// a closed connection cancels the run in progress.
func (g *Gateway) handleRunSocket() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			g.logger.Warn("websocket accept failed", "error", err)
			return
		}
		defer conn.CloseNow()
		conn.SetReadLimit(int64(g.config.MaxBodyBytes))

		// The reader owns the connection's read side for its whole life so
		// that close and ping frames are handled while a run streams. ctx
		// ends when the client goes away, which cancels the run.
		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()
		inbox := make(chan socketMessage)
		go g.readSocket(ctx, cancel, conn, inbox)

		client := clientKey(r)
		for {
			var m socketMessage
			select {
			case <-ctx.Done():
				return
			case m = <-inbox:
			}
			if m.typ != websocket.MessageText {
				_ = conn.Close(websocket.StatusUnsupportedData, "text messages only")
				return
			}
			if err := g.streamToSocket(ctx, conn, client, m.data); err != nil {
				g.logger.Debug("websocket write failed", "error", err)
				return
			}
		}
	}
}

type socketMessage struct {
	typ  websocket.MessageType
	data []byte
}

// readSocket forwards client messages to inbox and calls cancel once the
// connection can no longer be read.
func (g *Gateway) readSocket(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn, inbox chan<- socketMessage) {
	defer cancel()
	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != websocket.StatusNormalClosure && !errors.Is(err, context.Canceled) {
				g.logger.Debug("websocket read ended", "error", err)
			}
			return
		}
		select {
		case inbox <- socketMessage{typ: typ, data: data}:
		case <-ctx.Done():
			return
		}
	}
}

// streamToSocket runs one submission and writes its events. Request
// errors are reported to the client as an error message without closing
// the connection.
func (g *Gateway) streamToSocket(ctx context.Context, conn *websocket.Conn, client string, msg []byte) error {
	req, err := g.parseRunRequest(msg)
	if err != nil {
		return conn.Write(ctx, websocket.MessageText, errorMessage(err))
	}
	release, err := g.limiter.Acquire(client)
	if err != nil {
		return conn.Write(ctx, websocket.MessageText, errorMessage(err))
	}
	defer release()

	for ev := range g.runs.Stream(ctx, req.Request) {
		if err := conn.Write(ctx, websocket.MessageText, encodeEvent(ev)); err != nil {
			return err
		}
	}
	return nil
}

func errorMessage(err error) []byte {
	b, _ := json.Marshal(map[string]string{"type": "error", "error": err.Error()})
	return b
}
