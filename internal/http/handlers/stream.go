package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
)

const streamWriteWait = 5 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// StreamDownload pushes one progress frame per interval over a websocket
// until the job reaches a terminal status or the client goes away.
func (a *App) StreamDownload(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := a.Jobs.Progress(id); err != nil {
		a.domainError(w, err)
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		a.Logger.Warn().Err(err).Str("job_id", id).Msg("websocket upgrade")
		return
	}
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Time{})

	// drain client frames so close messages are processed
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	interval := a.StreamInterval
	if interval <= 0 {
		interval = defaultStreamInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		snap, err := a.Jobs.Progress(id)
		if err != nil {
			a.closeStream(conn, websocket.CloseGoingAway, "download removed")
			return
		}
		_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
		if err := conn.WriteJSON(map[string]any{"success": true, "download": snap}); err != nil {
			return
		}
		if snap.Status.Terminal() {
			a.closeStream(conn, websocket.CloseNormalClosure, string(snap.Status))
			return
		}
		select {
		case <-gone:
			return
		case <-ticker.C:
		}
	}
}

func (a *App) closeStream(conn *websocket.Conn, code int, reason string) {
	msg := websocket.FormatCloseMessage(code, reason)
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(streamWriteWait))
}
