package server

import (
	"bytes"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"

	"github.com/milk9111/sandbox/logger"
	"github.com/milk9111/sandbox/scene"
)

// sceneStore keeps shared documents in memory. With a mirror directory
// every saved scene is also written to <dir>/<id>.json and misses fall
// back to disk.
type sceneStore struct {
	mirror string

	mu     sync.RWMutex
	scenes map[string][]byte
}

func newSceneStore(mirror string) *sceneStore {
	return &sceneStore{mirror: mirror, scenes: make(map[string][]byte)}
}

func (s *sceneStore) put(doc scene.Document) (string, error) {
	var buf bytes.Buffer
	if err := scene.Encode(&buf, doc); err != nil {
		return "", err
	}

	id := newID()
	s.mu.Lock()
	for s.scenes[id] != nil {
		id = newID()
	}
	s.scenes[id] = buf.Bytes()
	s.mu.Unlock()

	if s.mirror != "" {
		if err := (scene.LocalStore{Dir: s.mirror, Key: id}).Save(doc); err != nil {
			logger.Log.WithError(err).WithField("scene", id).Warn("server: mirror write failed")
		}
	}
	return id, nil
}

func (s *sceneStore) get(id string) (scene.Document, error) {
	s.mu.RLock()
	data, ok := s.scenes[id]
	s.mu.RUnlock()
	if ok {
		return scene.Decode(bytes.NewReader(data))
	}

	if s.mirror == "" || !validID(id) {
		return scene.Document{}, fmt.Errorf("server: scene %s: %w", id, scene.ErrNotFound)
	}
	doc, err := (scene.LocalStore{Dir: s.mirror, Key: id}).Load()
	if err != nil {
		return scene.Document{}, err
	}

	var buf bytes.Buffer
	if err := scene.Encode(&buf, doc); err == nil {
		s.mu.Lock()
		s.scenes[id] = buf.Bytes()
		s.mu.Unlock()
	}
	return doc, nil
}

func (s *sceneStore) len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.scenes)
}

func newID() string {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		panic("server: failed to generate scene id: " + err.Error())
	}
	return hex.EncodeToString(b)
}

// validID guards the mirror directory against path tricks in ids.
func validID(id string) bool {
	if len(id) == 0 || len(id) > 64 {
		return false
	}
	_, err := hex.DecodeString(id)
	return err == nil
}

func isNotFound(err error) bool {
	return errors.Is(err, scene.ErrNotFound)
}
