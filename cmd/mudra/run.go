package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ayusman/mudra/internal/app"
	"github.com/ayusman/mudra/internal/capture"
	"github.com/ayusman/mudra/internal/config"
	"github.com/ayusman/mudra/internal/emitter"
	"github.com/ayusman/mudra/internal/hook"
	"github.com/ayusman/mudra/internal/server"
	"github.com/ayusman/mudra/internal/session"
	"github.com/ayusman/mudra/internal/tray"
)

type runOptions struct {
	tray      bool
	thumbRule string
	camera    int
}

func newRunCmd(opts *options) *cobra.Command {
	ro := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the camera pipeline, dashboard server and optional tray",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("thumb-rule") {
				opts.cfg.Classifier.ThumbRule = ro.thumbRule
			}
			if cmd.Flags().Changed("camera") {
				opts.cfg.Camera.DeviceID = ro.camera
			}
			return run(cmd.Context(), opts, ro)
		},
	}

	cmd.Flags().BoolVar(&ro.tray, "tray", false, "show the live session in the system tray")
	cmd.Flags().StringVar(&ro.thumbRule, "thumb-rule", "", "thumb rule: distance or lateral (overrides classifier.thumb_rule)")
	cmd.Flags().IntVar(&ro.camera, "camera", 0, "camera device id (overrides camera.device_id)")
	return cmd
}

func run(ctx context.Context, opts *options, ro *runOptions) error {
	cfg := opts.cfg

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	st, err := opts.openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	frames := capture.NewFrameBuffer()
	a, err := app.New(app.Config{Settings: cfg, Store: st, Frames: frames})
	if err != nil {
		return err
	}

	hub := server.NewHub()
	a.AddPresenter(hub)

	if cfg.MQTT.Broker != "" {
		em := emitter.NewMQTTEmitter(cfg.MQTT)
		if err := em.Connect(ctx); err != nil {
			slog.Warn("mqtt disabled", "broker", cfg.MQTT.Broker, "error", err)
		} else {
			defer em.Disconnect()
			a.AddEventSink(em)
		}
	}

	runner, err := startHooks(ctx, cfg.Hooks)
	if err != nil {
		return err
	}
	if runner != nil {
		defer runner.Close()
		a.AddEventSink(runner)
	}

	var tr *tray.Tray
	if ro.tray {
		tr = tray.New()
		tr.OnToggle(a.SetEnabled)
		tr.OnQuit(cancel)
		tr.OnDashboard(func() { openBrowser(dashboardURL(cfg.Server.Addr)) })
		a.AddPresenter(tr)
	}

	srv := server.New(server.Config{
		StaticDir: findWebDir(cfg.Server.StaticDir),
		Store:     st,
		Status:    a,
		Frames:    frames,
		Hub:       hub,
	})
	go func() {
		slog.Info("starting server", "addr", cfg.Server.Addr)
		if err := srv.Run(ctx, cfg.Server.Addr); err != nil {
			slog.Error("server failed", "error", err)
			cancel()
		}
	}()

	if err := a.Start(); err != nil {
		return fmt.Errorf("failed to start pipeline: %w", err)
	}

	if tr != nil {
		go func() {
			select {
			case <-ctx.Done():
			case <-a.Done():
			}
			tr.Quit()
		}()
		// systray must own the main thread on macOS.
		tr.Run()
	} else {
		select {
		case <-ctx.Done():
		case <-a.Done():
		}
	}

	a.Stop()
	printSummary(a.Session())
	return a.Err()
}

// startHooks discovers plugins and starts a runner when any hook is bound.
func startHooks(ctx context.Context, cfg config.HooksConfig) (*hook.Runner, error) {
	bindings, err := hook.BindingsFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	if len(bindings) == 0 {
		return nil, nil
	}

	mgr := hook.NewManager(cfg.PluginDir)
	if err := mgr.Discover(); err != nil {
		return nil, fmt.Errorf("failed to discover plugins: %w", err)
	}
	if err := mgr.Check(bindings); err != nil {
		return nil, fmt.Errorf("invalid hooks in %s: %w", cfg.PluginDir, err)
	}

	runner := hook.NewRunner(mgr, hook.NewExecutor(cfg.Timeout()), bindings)
	runner.Start(ctx)
	return runner, nil
}

func printSummary(sess *session.Session) {
	if sess == nil {
		return
	}
	snap := sess.Snapshot()
	fmt.Printf("Session %s\n", snap.SessionID)
	fmt.Printf("Hand Open Count: %d\n", snap.OpenCount)
	fmt.Printf("Hand Closed Count: %d\n", snap.ClosedCount)
	fmt.Printf("Time Elapsed: %s\n", snap.ElapsedText)
}

// findWebDir returns dir if set, else the first of "web", "../web",
// "../../web" and ~/.mudra/web that exists, else "".
func findWebDir(dir string) string {
	if dir != "" {
		return dir
	}

	candidates := []string{"web", "../web", "../../web", filepath.Join(config.DataDir(), "web")}
	for _, p := range candidates {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			if abs, err := filepath.Abs(p); err == nil {
				return abs
			}
			return p
		}
	}
	return ""
}

func dashboardURL(addr string) string {
	if strings.HasPrefix(addr, ":") {
		addr = "localhost" + addr
	}
	return "http://" + addr + "/"
}

func openBrowser(url string) {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	if err := cmd.Start(); err != nil {
		slog.Warn("opening browser", "url", url, "error", err)
	}
}
