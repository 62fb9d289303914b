package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/milk9111/sandbox/config"
	"github.com/milk9111/sandbox/logger"
	"github.com/milk9111/sandbox/physics"
	"github.com/milk9111/sandbox/scene"
	"github.com/milk9111/sandbox/world"
)

func init() {
	logger.Discard()
}

func testDoc(t *testing.T) scene.Document {
	t.Helper()
	w := world.New(config.Default())
	if _, err := w.SpawnBody(physics.KindBox, 300, 200, physics.SpawnOptions{Width: 40, Height: 40}); err != nil {
		t.Fatalf("box: %v", err)
	}
	if _, err := w.SpawnBody(physics.KindCircle, 500, 100, physics.SpawnOptions{Radius: 20}); err != nil {
		t.Fatalf("ball: %v", err)
	}
	return scene.Serialize(w)
}

func encode(t *testing.T, doc scene.Document) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	if err := scene.Encode(&buf, doc); err != nil {
		t.Fatalf("encode: %v", err)
	}
	return &buf
}

func postScene(t *testing.T, h http.Handler, body *bytes.Buffer) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/scenes", body)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestSaveAndGet(t *testing.T) {
	h := New(config.Default(), "").Routes()

	rec := postScene(t, h, encode(t, testDoc(t)))
	if rec.Code != http.StatusCreated {
		t.Fatalf("POST status = %d, body %s", rec.Code, rec.Body.String())
	}
	var saved struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&saved); err != nil {
		t.Fatalf("decode id: %v", err)
	}
	if len(saved.ID) != 16 {
		t.Fatalf("id = %q, want 16 hex chars", saved.ID)
	}

	req := httptest.NewRequest(http.MethodGet, "/scenes/"+saved.ID, nil)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET status = %d", rec.Code)
	}
	got, err := scene.Decode(rec.Body)
	if err != nil {
		t.Fatalf("decode scene: %v", err)
	}
	if len(got.Bodies) != 2 {
		t.Fatalf("bodies = %d, want 2", len(got.Bodies))
	}
	if got.Bodies[1].Radius != 20 {
		t.Fatalf("circle radius = %v, want 20", got.Bodies[1].Radius)
	}
}

func TestSaveRejects(t *testing.T) {
	bad := testDoc(t)
	bad.Bodies[0].ID = 0

	tests := []struct {
		name string
		body string
	}{
		{name: "garbage", body: "{not json"},
		{name: "invalid document", body: encode(t, bad).String()},
	}
	h := New(config.Default(), "").Routes()
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := postScene(t, h, bytes.NewBufferString(tc.body))
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", rec.Code)
			}
		})
	}
}

func TestGetUnknown(t *testing.T) {
	h := New(config.Default(), "").Routes()
	for _, path := range []string{"/scenes/deadbeefdeadbeef", "/scenes/deadbeefdeadbeef/live"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != http.StatusNotFound {
			t.Fatalf("%s: status = %d, want 404", path, rec.Code)
		}
	}
}

func TestHealth(t *testing.T) {
	h := New(config.Default(), "").Routes()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"status":"ok"`) {
		t.Fatalf("body = %s", rec.Body.String())
	}
}

func TestMirrorSurvivesRestart(t *testing.T) {
	dir := t.TempDir()
	h := New(config.Default(), dir).Routes()

	rec := postScene(t, h, encode(t, testDoc(t)))
	var saved struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&saved); err != nil {
		t.Fatalf("decode id: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, saved.ID+".json")); err != nil {
		t.Fatalf("mirror file: %v", err)
	}

	restarted := New(config.Default(), dir).Routes()
	req := httptest.NewRequest(http.MethodGet, "/scenes/"+saved.ID, nil)
	rec = httptest.NewRecorder()
	restarted.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET after restart = %d", rec.Code)
	}
}

func TestStoreRejectsPathIDs(t *testing.T) {
	s := newSceneStore(t.TempDir())
	_, err := s.get("../config")
	if !errors.Is(err, scene.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestLiveStream(t *testing.T) {
	cfg := config.Default()
	cfg.Server.LiveMs = 5000
	srv := New(cfg, "")
	ts := httptest.NewServer(srv.Routes())
	defer ts.Close()

	id, err := scene.NewHTTPClient(ts.URL).SaveScene(t.Context(), testDoc(t))
	if err != nil {
		t.Fatalf("SaveScene: %v", err)
	}

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/scenes/" + id + "/live?frames=3"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	var lastY float64
	for i := 1; i <= 3; i++ {
		var frame LiveFrame
		if err := conn.ReadJSON(&frame); err != nil {
			t.Fatalf("frame %d: %v", i, err)
		}
		if frame.Frame != i {
			t.Fatalf("frame number = %d, want %d", frame.Frame, i)
		}
		if len(frame.Bodies) != 2 {
			t.Fatalf("frame %d bodies = %d, want 2", i, len(frame.Bodies))
		}
		if frame.Bodies[0].Y <= lastY && i > 1 {
			t.Fatalf("frame %d: box did not fall (y %v after %v)", i, frame.Bodies[0].Y, lastY)
		}
		lastY = frame.Bodies[0].Y
	}

	_, _, err = conn.ReadMessage()
	if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
		t.Fatalf("after limit err = %v, want normal close", err)
	}
}

func TestPreflight(t *testing.T) {
	h := New(config.Default(), "").Routes()
	for _, path := range []string{"/scenes", "/scenes/deadbeefdeadbeef"} {
		t.Run(path, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodOptions, path, nil)
			req.Header.Set("Access-Control-Request-Headers", "Content-Type")
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != http.StatusNoContent {
				t.Fatalf("status = %d, want 204", rec.Code)
			}
			if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
				t.Fatalf("allow origin = %q", got)
			}
		})
	}
}
