package scene

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/milk9111/sandbox/logger"
)

// Client is the pair of remote calls behind shareable links.
type Client interface {
	SaveScene(ctx context.Context, doc Document) (string, error)
	GetScene(ctx context.Context, id string) (Document, error)
}

// LocalStore keeps one document on disk under a fixed key.
type LocalStore struct {
	Dir string
	Key string
}

func (s LocalStore) Path() string {
	return filepath.Join(s.Dir, s.Key+".json")
}

// Save writes doc through a temporary file so a crash never leaves half a
// document behind.
func (s LocalStore) Save(doc Document) error {
	var buf bytes.Buffer
	if err := Encode(&buf, doc); err != nil {
		return err
	}

	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return fmt.Errorf("scene: save %s: %w", s.Path(), err)
	}
	tmp, err := os.CreateTemp(s.Dir, s.Key+".*.tmp")
	if err != nil {
		return fmt.Errorf("scene: save %s: %w", s.Path(), err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return fmt.Errorf("scene: save %s: %w", s.Path(), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("scene: save %s: %w", s.Path(), err)
	}
	if err := os.Rename(tmp.Name(), s.Path()); err != nil {
		return fmt.Errorf("scene: save %s: %w", s.Path(), err)
	}

	logger.Log.WithField("scene", s.Path()).Debug("scene: saved")
	return nil
}

func (s LocalStore) Load() (Document, error) {
	return ReadFile(s.Path())
}

// ReadFile decodes the document at path.
func ReadFile(path string) (Document, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Document{}, fmt.Errorf("scene: %s: %w", path, ErrNotFound)
	}
	if err != nil {
		return Document{}, fmt.Errorf("scene: open %s: %w", path, err)
	}
	defer f.Close()
	return Decode(f)
}
