// splatrecorder watches a capture source for Splatoon match screens and
// records completed battles into the asset repository, driven entirely off
// on-screen detection (spec.md §1). Editing and uploading are not wired in
// this binary.
//
// Should be paired with a video-serving frontend; splatrecorder only owns
// capture through publish.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"github.com/nasubidev/splatrecorder/internal/analyzer"
	"github.com/nasubidev/splatrecorder/internal/analyzer/battle"
	"github.com/nasubidev/splatrecorder/internal/analyzer/salmon"
	"github.com/nasubidev/splatrecorder/internal/assets"
	"github.com/nasubidev/splatrecorder/internal/bus"
	"github.com/nasubidev/splatrecorder/internal/config"
	"github.com/nasubidev/splatrecorder/internal/external/capture"
	"github.com/nasubidev/splatrecorder/internal/external/obsrecorder"
	"github.com/nasubidev/splatrecorder/internal/httpapi"
	"github.com/nasubidev/splatrecorder/internal/matcher"
	"github.com/nasubidev/splatrecorder/internal/metrics"
	"github.com/nasubidev/splatrecorder/internal/model"
	"github.com/nasubidev/splatrecorder/internal/ocr"
	"github.com/nasubidev/splatrecorder/internal/recorder"
	"github.com/nasubidev/splatrecorder/internal/weapon"
	"golang.org/x/sync/errgroup"
)

func toROI(r config.ROI) model.ROI {
	return model.ROI{X: r.X, Y: r.Y, W: r.W, H: r.H}
}

// loadRegistry parses and freezes the matcher registry from the settings
// file's matcher_config_path/matcher_assets_dir pair. A failure here is
// MatcherMisconfig per spec.md §7: a hard startup failure, not a runtime
// one.
func loadRegistry(s config.Settings) (*matcher.Registry, error) {
	f, err := matcher.LoadFile(s.MatcherConfigPath)
	if err != nil {
		return nil, err
	}
	return matcher.BuildRegistry(f, s.MatcherAssetsDir)
}

func loadWeaponConfig(s config.Settings) (weapon.Config, error) {
	f, err := weapon.LoadFile(s.WeaponConfigPath)
	if err != nil {
		return weapon.Config{}, err
	}
	thresholds := weapon.DefaultThresholds()
	thresholds.DetectionWindow = s.WeaponDetection.DetectionWindow
	thresholds.IoUThreshold = s.WeaponDetection.IoUThreshold
	thresholds.MinSlotsForIoU = s.WeaponDetection.MinSlotsForIoU
	return weapon.BuildConfig(f, s.MatcherAssetsDir, thresholds)
}

func buildAnalyzer(reg *matcher.Registry, reader ocr.Reader, rois config.BattleROIs) *analyzer.FrameAnalyzer {
	an := analyzer.NewFrameAnalyzer(reg)
	an.Register(model.GameModeBattle, battle.New(reg, reader, battle.ROIs{
		XPRate:     toROI(rois.XPRate),
		Kill:       toROI(rois.Kill),
		Death:      toROI(rois.Death),
		Special:    toROI(rois.Special),
		TriKill:    toROI(rois.TriKill),
		TriDeath:   toROI(rois.TriDeath),
		TriSpecial: toROI(rois.TriSpecial),
	}))
	an.Register(model.GameModeSalmon, salmon.New())
	return an
}

// liveOrchestrator satisfies httpapi.Recorder by delegating to whichever
// *recorder.Orchestrator was most recently built, so a config/asset reload
// can swap in fresh matcher/weapon wiring without restarting the HTTP
// surface or the capture loop that holds this value.
type liveOrchestrator struct {
	ptr atomic.Pointer[recorder.Orchestrator]
}

func (l *liveOrchestrator) State() model.RecordState         { return l.ptr.Load().State() }
func (l *liveOrchestrator) ManualStart(ctx context.Context)  { l.ptr.Load().ManualStart(ctx) }
func (l *liveOrchestrator) ManualPause()                     { l.ptr.Load().ManualPause() }
func (l *liveOrchestrator) ManualResume()                    { l.ptr.Load().ManualResume() }
func (l *liveOrchestrator) ManualStop(ctx context.Context)   { l.ptr.Load().ManualStop(ctx) }
func (l *liveOrchestrator) ManualCancel(ctx context.Context) { l.ptr.Load().ManualCancel(ctx) }

// build constructs a fresh Orchestrator from s, reusing the long-lived
// external collaborators (the OBS client, the asset repository, the event
// bus) that a config reload has no reason to tear down.
func build(s config.Settings, obs *obsrecorder.Client, repo *assets.Repository, eb *bus.EventBus) (*recorder.Orchestrator, error) {
	reg, err := loadRegistry(s)
	if err != nil {
		return nil, fmt.Errorf("matcher registry: %w", err)
	}
	weaponCfg, err := loadWeaponConfig(s)
	if err != nil {
		return nil, fmt.Errorf("weapon config: %w", err)
	}
	reader := ocr.NewEngine(s.OCRCommand)
	an := buildAnalyzer(reg, reader, s.BattleROIs)
	weaponSvc := weapon.NewService(weaponCfg, eb, s.WeaponDetection.RecognitionTimeout, s.WeaponDetection.FinalizeTimeout)
	tuning := recorder.Tuning{
		AbortWindow:          s.Recorder.AbortWindow,
		MaxDuration:          s.Recorder.MaxDuration,
		StopGrace:            s.Recorder.StopGrace,
		PowerOffPollInterval: s.Recorder.PowerOffPollInterval,
		PowerOffConsecutive:  s.Recorder.PowerOffConsecutive,
	}
	return recorder.NewOrchestrator(an, weaponSvc, obs, nil, repo, eb, tuning), nil
}

// run wires every component per the settings loaded from settingsPath and
// blocks until ctx is canceled.
func run(ctx context.Context, settingsPath string, s config.Settings) error {
	if err := os.MkdirAll(s.Directories.Recorded, 0o755); err != nil {
		return err
	}
	if err := os.MkdirAll(s.Directories.Edited, 0o755); err != nil {
		return err
	}

	eb := bus.NewEventBus()
	cb := bus.NewCommandBus()
	repo := assets.NewRepository(s.Directories.Recorded, s.Directories.Edited, eb)

	obs := obsrecorder.New(obsrecorder.Config{Addr: s.OBSAddress, Password: s.OBSPassword})
	if err := obs.Connect(ctx); err != nil {
		return fmt.Errorf("obs connect: %w", err)
	}
	defer func() { _ = obs.Close(5 * time.Second) }()

	orch, err := build(s, obs, repo, eb)
	if err != nil {
		return err
	}
	live := &liveOrchestrator{}
	live.ptr.Store(orch)

	hub := &httpapi.FrameHub{}
	srv := httpapi.NewServer(repo, live, eb, cb, hub)
	if err := httpapi.Serve(ctx, s.HTTP.Addr, srv.Handler()); err != nil {
		return fmt.Errorf("http listen %q: %w", s.HTTP.Addr, err)
	}

	exporter := metrics.NewExporter(metricsAddr(s.HTTP.Addr))
	go func() {
		if err := exporter.Start(); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("metrics", "err", err)
		}
	}()
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = exporter.Shutdown(sctx)
	}()

	watcher := config.NewWatcher(func() {
		fresh, err := config.Load(settingsPath)
		if err != nil {
			slog.Error("config", "op", "reload", "err", err)
			return
		}
		next, err := build(fresh, obs, repo, eb)
		if err != nil {
			slog.Error("config", "op", "reload", "err", err)
			return
		}
		live.ptr.Store(next)
		slog.Info("config", "op", "reloaded")
	}, settingsPath, s.MatcherConfigPath, s.WeaponConfigPath, s.MatcherAssetsDir)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return watcher.Run(gctx) })

	src := capture.New(s.CaptureDevice)
	captureInterval := time.Second / time.Duration(src.FPS)
	stop := make(chan struct{})
	g.Go(func() error {
		return capture.Loop(src, captureInterval, stop, func(frame model.Frame) {
			hub.Publish(frame)
			live.ptr.Load().Process(gctx, frame)
			frame.Mat.Close()
		})
	})

	<-ctx.Done()
	close(stop)
	return g.Wait()
}

// metricsAddr derives the metrics listener address from the HTTP control
// surface's address by shifting to the next port, so a single config file
// is enough to stand up both listeners without colliding.
func metricsAddr(httpAddr string) string {
	host, port := splitHostPort(httpAddr)
	n := 9090
	if port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			n = p + 1
		}
	}
	return fmt.Sprintf("%s:%d", host, n)
}

func splitHostPort(addr string) (host, port string) {
	for i := len(addr) - 1; i >= 0; i-- {
		if addr[i] == ':' {
			return addr[:i], addr[i+1:]
		}
	}
	return addr, ""
}

func mainImpl() error {
	var level slog.LevelVar
	level.Set(slog.LevelInfo)
	logger := slog.New(tint.NewHandler(colorable.NewColorable(os.Stderr), &tint.Options{
		Level:      &level,
		TimeFormat: time.TimeOnly,
		NoColor:    !isatty.IsTerminal(os.Stderr.Fd()),
	}))
	slog.SetDefault(logger)

	settingsPath := flag.String("config", "splatrecorder.toml", "settings file")
	verbose := flag.Bool("v", false, "enable verbosity")
	flag.Parse()
	if flag.NArg() != 0 {
		return errors.New("unexpected argument")
	}
	if *verbose {
		level.Set(slog.LevelDebug)
	}

	s := config.Default()
	if _, statErr := os.Stat(*settingsPath); statErr == nil {
		loaded, err := config.Load(*settingsPath)
		if err != nil {
			return err
		}
		s = loaded
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	return run(ctx, *settingsPath, s)
}

func main() {
	if err := mainImpl(); err != nil {
		fmt.Fprintf(os.Stderr, "splatrecorder: %s\n", err.Error())
		os.Exit(1)
	}
}
