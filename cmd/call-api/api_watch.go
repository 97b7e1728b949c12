// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/linuxfoundation/lfx-v2-call-service/internal/logging"
	"github.com/linuxfoundation/lfx-v2-call-service/internal/service"
)

const (
	wsWriteWait = 10 * time.Second

	watchEventCall  = "call"
	watchEventCalls = "calls"
)

// watchEvent is one snapshot pushed to a watch connection.
type watchEvent struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// watchSource is what a watch connection streams.
type watchSource struct {
	session  *service.Session
	changes  func() <-chan struct{}
	snapshot func() watchEvent
}

// WatchCalls streams the caller's call set, or a single call when call_id is set,
// over a WebSocket. A snapshot is pushed on every change and on every heartbeat.
func (a *CallsAPI) WatchCalls(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	callID := r.URL.Query().Get("call_id")
	if callID != "" {
		ctx = logging.AppendCtx(ctx, slog.String("call_id", callID))
	}

	source, err := a.watchSource(ctx, bearerToken(r), callID)
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	ctx = logging.AppendCtx(ctx, slog.String("user_id", source.session.UserID()))

	conn, err := a.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.WarnContext(ctx, "websocket upgrade failed", logging.ErrKey, err)
		return
	}
	defer func() {
		_ = conn.Close()
	}()
	slog.DebugContext(ctx, "watch connected")

	// a ping goes out every heartbeat, so two missed pongs close the connection
	go readUntilClosed(conn, 2*a.heartbeat+wsWriteWait, cancel)

	ticker := time.NewTicker(a.heartbeat)
	defer ticker.Stop()

	for {
		changes := source.changes()

		_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		if err := conn.WriteJSON(source.snapshot()); err != nil {
			slog.DebugContext(ctx, "watch write failed", logging.ErrKey, err)
			return
		}

		select {
		case <-ctx.Done():
			_ = conn.WriteControl(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(wsWriteWait),
			)
			slog.DebugContext(ctx, "watch closed")
			return
		case <-changes:
		case <-ticker.C:
			a.service.Sessions.Touch(source.session.UserID())
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
				slog.DebugContext(ctx, "watch ping failed", logging.ErrKey, err)
				return
			}
		}
	}
}

func (a *CallsAPI) watchSource(ctx context.Context, token, callID string) (watchSource, error) {
	if callID != "" {
		retriever, session, err := a.service.WatchCall(ctx, token, callID)
		if err != nil {
			return watchSource{}, err
		}
		return watchSource{
			session: session,
			changes: retriever.Changes,
			snapshot: func() watchEvent {
				return watchEvent{Type: watchEventCall, Data: retriever.State()}
			},
		}, nil
	}

	retriever, session, err := a.service.WatchCalls(ctx, token)
	if err != nil {
		return watchSource{}, err
	}
	return watchSource{
		session: session,
		changes: retriever.Changes,
		snapshot: func() watchEvent {
			return watchEvent{Type: watchEventCalls, Data: retriever.Result(a.service.Now())}
		},
	}, nil
}

// readUntilClosed drains client frames so control messages are processed, and cancels
// once the connection goes away.
func readUntilClosed(conn *websocket.Conn, pongWait time.Duration, cancel context.CancelFunc) {
	defer cancel()

	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	}
}
