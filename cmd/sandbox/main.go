package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/milk9111/sandbox/config"
	"github.com/milk9111/sandbox/levels"
	"github.com/milk9111/sandbox/logger"
	"github.com/milk9111/sandbox/prefabs"
	"github.com/milk9111/sandbox/scene"
	"github.com/milk9111/sandbox/world"
	"github.com/sirupsen/logrus"
	"golang.design/x/clipboard"
)

// placement is one -prefab name@x,y flag.
type placement struct {
	name string
	x, y float64
}

type placements []placement

func (p *placements) String() string {
	parts := make([]string, 0, len(*p))
	for _, pl := range *p {
		parts = append(parts, fmt.Sprintf("%s@%g,%g", pl.name, pl.x, pl.y))
	}
	return strings.Join(parts, " ")
}

func (p *placements) Set(v string) error {
	pl, err := parsePlacement(v)
	if err != nil {
		return err
	}
	*p = append(*p, pl)
	return nil
}

func parsePlacement(v string) (placement, error) {
	name, at, ok := strings.Cut(v, "@")
	if !ok || strings.TrimSpace(name) == "" {
		return placement{}, fmt.Errorf("want name@x,y, got %q", v)
	}
	xs, ys, ok := strings.Cut(at, ",")
	if !ok {
		return placement{}, fmt.Errorf("want name@x,y, got %q", v)
	}
	x, err := strconv.ParseFloat(strings.TrimSpace(xs), 64)
	if err != nil {
		return placement{}, fmt.Errorf("bad x in %q: %w", v, err)
	}
	y, err := strconv.ParseFloat(strings.TrimSpace(ys), 64)
	if err != nil {
		return placement{}, fmt.Errorf("bad y in %q: %w", v, err)
	}
	return placement{name: strings.TrimSpace(name), x: x, y: y}, nil
}

func main() {
	var prefabFlags placements
	configPath := flag.String("config", "", "YAML config file (defaults are used when empty)")
	sceneName := flag.String("scene", "", "scene file, or the name of a built-in scene")
	frames := flag.Int("frames", 600, "number of frames to simulate")
	dt := flag.Float64("dt", 1000.0/60.0, "milliseconds per frame")
	out := flag.String("out", "", "write the final scene to this file")
	share := flag.String("share", "", "share server URL; the final scene is uploaded and a link logged")
	copyLink := flag.Bool("copy", false, "copy the share link to the clipboard")
	watch := flag.Bool("watch", false, "reload prefab templates when their files change")
	loadID := flag.String("load", "", "shared scene id to load from the -share server")
	restore := flag.Bool("restore", false, "start from the scene kept in local storage")
	save := flag.Bool("save", false, "keep the final scene in local storage")
	flag.Var(&prefabFlags, "prefab", "place a prefab as name@x,y (repeatable)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	logger.Init(cfg.Log.Level, cfg.Log.Format)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, options{
		scene:   *sceneName,
		prefabs: prefabFlags,
		frames:  *frames,
		dt:      *dt,
		out:     *out,
		share:   *share,
		copy:    *copyLink,
		watch:   *watch,
		load:    *loadID,
		restore: *restore,
		save:    *save,
	}); err != nil {
		logger.Log.WithError(err).Fatal("sandbox failed")
	}
}

type options struct {
	scene   string
	prefabs []placement
	frames  int
	dt      float64
	out     string
	share   string
	copy    bool
	watch   bool
	load    string
	restore bool
	save    bool
}

func run(ctx context.Context, cfg config.Config, opts options) error {
	w := world.New(cfg)
	local := scene.LocalStore{Dir: cfg.Storage.Dir, Key: cfg.Storage.Key}

	if opts.restore {
		doc, err := local.Load()
		if err != nil {
			return err
		}
		if err := scene.Deserialize(w, doc); err != nil {
			return fmt.Errorf("restore %s: %w", local.Path(), err)
		}
		logger.Log.WithField("path", local.Path()).Info("scene restored")
	}
	if opts.scene != "" {
		doc, err := openScene(opts.scene)
		if err != nil {
			return err
		}
		if err := scene.Deserialize(w, doc); err != nil {
			return fmt.Errorf("scene %s: %w", opts.scene, err)
		}
	}

	var client *scene.HTTPClient
	if opts.share != "" {
		client = scene.NewHTTPClient(opts.share)
	}
	if opts.load != "" {
		if client == nil {
			return errors.New("-load needs -share to know the server")
		}
		loader := scene.NewLoader(client)
		if err := loader.Load(ctx, opts.load, func(doc scene.Document) error {
			return scene.Deserialize(w, doc)
		}); err != nil {
			return err
		}
	}

	lib := prefabs.NewLibrary(cfg.Prefabs.Dir)
	if opts.watch || cfg.Prefabs.Watch {
		stopWatch := watchPrefabs(ctx, lib)
		defer stopWatch()
	}
	for _, pl := range opts.prefabs {
		res, err := w.SpawnPrefab(lib, pl.name, pl.x, pl.y)
		if err != nil {
			return fmt.Errorf("prefab %s: %w", pl.name, err)
		}
		logger.Log.WithFields(logrus.Fields{
			"prefab": pl.name,
			"bodies": len(res.Bodies),
			"rules":  len(res.Rules),
		}).Info("prefab placed")
	}

	ticks, collisions, ran := 0, 0, 0
	for ran < opts.frames {
		if ctx.Err() != nil {
			logger.Log.Warn("interrupted")
			break
		}
		stats := w.Frame(opts.dt, nil)
		ticks += stats.Ticks
		collisions += stats.Collisions
		ran++
	}

	logger.Log.WithFields(logrus.Fields{
		"frames":      ran,
		"ticks":       ticks,
		"collisions":  collisions,
		"bodies":      len(w.Bodies()),
		"constraints": len(w.Store().Constraints()),
		"rules":       len(w.Rules().ListRules()),
	}).Info("simulation finished")
	for _, st := range w.Snapshot() {
		logger.Log.WithFields(logrus.Fields{
			"id":    st.ID,
			"type":  st.Kind,
			"x":     fmt.Sprintf("%.1f", st.X),
			"y":     fmt.Sprintf("%.1f", st.Y),
			"color": st.Color,
		}).Debug("body")
	}

	doc := scene.Serialize(w)
	if opts.out != "" {
		store := scene.LocalStore{
			Dir: filepath.Dir(opts.out),
			Key: strings.TrimSuffix(filepath.Base(opts.out), ".json"),
		}
		if err := store.Save(doc); err != nil {
			return err
		}
		logger.Log.WithField("path", store.Path()).Info("scene written")
	}
	if opts.save {
		if err := local.Save(doc); err != nil {
			return err
		}
		logger.Log.WithField("path", local.Path()).Info("scene saved")
	}

	if client != nil {
		return shareScene(ctx, cfg, client, opts, doc)
	}
	return nil
}

func shareScene(ctx context.Context, cfg config.Config, client *scene.HTTPClient, opts options, doc scene.Document) error {
	id, err := client.SaveScene(ctx, doc)
	if err != nil {
		return err
	}
	base := cfg.Server.PublicURL
	if base == "" {
		base = opts.share
	}
	link := scene.ShareURL(base, id)
	logger.Log.WithFields(logrus.Fields{"id": id, "link": link}).Info("scene shared")

	if opts.copy {
		if err := clipboard.Init(); err != nil {
			logger.Log.WithError(err).Warn("clipboard unavailable")
			return nil
		}
		clipboard.Write(clipboard.FmtText, []byte(link))
		logger.Log.Info("share link copied to clipboard")
	}
	return nil
}

// openScene prefers a file on disk and falls back to a built-in scene.
func openScene(name string) (scene.Document, error) {
	doc, err := scene.ReadFile(name)
	if err == nil {
		return doc, nil
	}
	if !errors.Is(err, scene.ErrNotFound) {
		return scene.Document{}, err
	}
	doc, err = levels.Load(name)
	if err != nil {
		return scene.Document{}, fmt.Errorf("scene %s: not a file or built-in scene (have %s): %w",
			name, strings.Join(levels.Names(), ", "), err)
	}
	return doc, nil
}

func watchPrefabs(ctx context.Context, lib *prefabs.Library) func() {
	dirs := []string{lib.Dir()}
	if scripts := filepath.Join(lib.Dir(), "scripts"); isDir(scripts) {
		dirs = append(dirs, scripts)
	}
	watcher, err := prefabs.NewWatcher(dirs...)
	if err != nil {
		logger.Log.WithError(err).WithField("dir", lib.Dir()).Warn("prefab watch disabled")
		return func() {}
	}

	watchCtx, cancel := context.WithCancel(ctx)
	go lib.Watch(watchCtx, watcher)
	logger.Log.WithField("dirs", dirs).Info("watching prefabs")
	return func() {
		cancel()
		if err := watcher.Close(); err != nil {
			logger.Log.WithError(err).Debug("close prefab watcher")
		}
	}
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
