package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/milk9111/sandbox/config"
	"github.com/milk9111/sandbox/logger"
	"github.com/milk9111/sandbox/scene"
	"github.com/sirupsen/logrus"
)

const maxSceneBytes = 4 << 20

type Server struct {
	cfg    config.Config
	scenes *sceneStore
}

// New builds a share server. mirror may be empty to keep scenes in memory only.
func New(cfg config.Config, mirror string) *Server {
	return &Server{
		cfg:    cfg,
		scenes: newSceneStore(mirror),
	}
}

// Routes registers every endpoint on a fresh mux.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /scenes", enableCORS(s.handleSave))
	mux.HandleFunc("GET /scenes/{id}", enableCORS(s.handleGet))
	mux.HandleFunc("GET /scenes/{id}/live", s.handleLive)
	mux.HandleFunc("GET /health", enableCORS(s.handleHealth))
	mux.HandleFunc("OPTIONS /scenes", enableCORS(preflight))
	mux.HandleFunc("OPTIONS /scenes/{id}", enableCORS(preflight))
	return mux
}

func preflight(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	w.WriteHeader(http.StatusNoContent)
}

// Run serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Server.Addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		logger.Log.WithField("addr", srv.Addr).Info("server: listening")
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		logger.Log.Info("server: shutting down")
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func enableCORS(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		next(w, r)
	}
}

func (s *Server) handleSave(w http.ResponseWriter, r *http.Request) {
	doc, err := scene.Decode(http.MaxBytesReader(w, r.Body, maxSceneBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := doc.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	id, err := s.scenes.put(doc)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	logger.Log.WithFields(logrus.Fields{
		"scene":  id,
		"bodies": len(doc.Bodies),
	}).Info("server: scene saved")
	writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	doc, err := s.scenes.get(id)
	if err != nil {
		if isNotFound(err) {
			writeError(w, http.StatusNotFound, err)
			return
		}
		logger.Log.WithError(err).WithField("scene", id).Error("server: read scene")
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := scene.Encode(w, doc); err != nil {
		logger.Log.WithError(err).Debug("server: write scene failed")
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"scenes": s.scenes.len(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Log.WithError(err).Debug("server: write response failed")
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
