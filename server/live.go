package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	"github.com/milk9111/sandbox/logger"
	"github.com/milk9111/sandbox/scene"
	"github.com/milk9111/sandbox/world"
	"github.com/sirupsen/logrus"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// LiveFrame is one message of the live preview stream.
type LiveFrame struct {
	Frame      int               `json:"frame"`
	Ticks      int               `json:"ticks"`
	Collisions int               `json:"collisions"`
	Bodies     []world.BodyState `json:"bodies"`
}

// handleLive runs a private copy of the scene and streams its bodies once
// per tick until the live window ends, the optional ?frames= limit is hit
// or the client goes away.
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	doc, err := s.scenes.get(id)
	if err != nil {
		status := http.StatusInternalServerError
		if isNotFound(err) {
			status = http.StatusNotFound
		}
		writeError(w, status, err)
		return
	}

	maxFrames := 0
	if v := r.URL.Query().Get("frames"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			http.Error(w, "frames must be a non-negative integer", http.StatusBadRequest)
			return
		}
		maxFrames = n
	}

	sandbox := world.New(s.cfg)
	if err := scene.Deserialize(sandbox, doc); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Log.WithError(err).Warn("server: websocket upgrade failed")
		return
	}
	defer func() {
		if err := conn.Close(); err != nil {
			logger.Log.WithError(err).Debug("server: close websocket")
		}
	}()

	log := logger.Log.WithFields(logrus.Fields{"scene": id, "remote": r.RemoteAddr})
	log.Info("server: live preview started")

	done := make(chan struct{})
	go readPump(conn, done)

	frames := streamFrames(conn, sandbox, s.liveWindow(), maxFrames, done)
	log.WithField("frames", frames).Info("server: live preview finished")
}

func (s *Server) liveWindow() time.Duration {
	if s.cfg.Server.LiveMs <= 0 {
		return 10 * time.Second
	}
	return time.Duration(s.cfg.Server.LiveMs) * time.Millisecond
}

func streamFrames(conn *websocket.Conn, sandbox *world.World, window time.Duration, maxFrames int, done <-chan struct{}) int {
	tickMs := sandbox.Config().Simulation.TickMs
	ticker := time.NewTicker(time.Duration(tickMs * float64(time.Millisecond)))
	defer ticker.Stop()
	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()
	deadline := time.NewTimer(window)
	defer deadline.Stop()

	sent := 0
	for {
		select {
		case <-done:
			return sent
		case <-deadline.C:
			closeStream(conn, "live window elapsed")
			return sent
		case <-ping.C:
			if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				logger.Log.WithError(err).Warn("server: set ping write deadline")
			}
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				logger.Log.WithError(err).Debug("server: ping failed")
				return sent
			}
		case <-ticker.C:
			stats := sandbox.Frame(tickMs, nil)
			if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				logger.Log.WithError(err).Warn("server: set write deadline")
			}
			frame := LiveFrame{
				Frame:      sandbox.Frames(),
				Ticks:      stats.Ticks,
				Collisions: stats.Collisions,
				Bodies:     sandbox.Snapshot(),
			}
			if err := conn.WriteJSON(frame); err != nil {
				logger.Log.WithError(err).Debug("server: write frame failed")
				return sent
			}
			sent++
			if maxFrames > 0 && sent >= maxFrames {
				closeStream(conn, "frame limit reached")
				return sent
			}
		}
	}
}

// readPump drains control frames so pongs and the client's close are seen.
func readPump(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)
	conn.SetReadLimit(maxMessageSize)
	if err := conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		logger.Log.WithError(err).Warn("server: set read deadline")
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Log.WithError(err).Debug("server: live read")
			}
			return
		}
	}
}

func closeStream(conn *websocket.Conn, reason string) {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason)
	if err := conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait)); err != nil {
		logger.Log.WithError(err).Debug("server: write close failed")
	}
}
