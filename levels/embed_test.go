package levels

import (
	"errors"
	"testing"

	"github.com/milk9111/sandbox/config"
	"github.com/milk9111/sandbox/logger"
	"github.com/milk9111/sandbox/scene"
	"github.com/milk9111/sandbox/world"
)

func init() {
	logger.Discard()
}

func TestBuiltinLevelsLoad(t *testing.T) {
	names := Names()
	if len(names) == 0 {
		t.Fatalf("no built-in levels")
	}
	for _, name := range names {
		t.Run(name, func(t *testing.T) {
			doc, err := Load(name)
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			w := world.New(config.Default())
			if err := scene.Deserialize(w, doc); err != nil {
				t.Fatalf("Deserialize: %v", err)
			}
			if got := len(w.Bodies()); got != len(doc.Bodies) {
				t.Fatalf("bodies = %d, want %d", got, len(doc.Bodies))
			}
			w.Frame(1000.0/60.0, nil)
		})
	}
}

func TestDemoContents(t *testing.T) {
	doc, err := Load("demo.json")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	w := world.New(config.Default())
	if err := scene.Deserialize(w, doc); err != nil {
		t.Fatalf("Deserialize: %v", err)
	}
	if got := len(w.Store().Constraints()); got != 1 {
		t.Fatalf("constraints = %d, want 1", got)
	}
	if got := len(w.Rules().ListRules()); got != 2 {
		t.Fatalf("rules = %d, want 2", got)
	}
	ramp, ok := w.Body(1)
	if !ok || !ramp.IsStatic() {
		t.Fatalf("ramp missing or not static")
	}
}

func TestLoadUnknown(t *testing.T) {
	if _, err := Load("nope"); !errors.Is(err, scene.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}
