// Command nightscout-chart renders a Nightscout snapshot as a PNG chart and
// optionally keeps re-rendering it while the snapshot file changes.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/mrcode/nightscout-chart/internal/app"
	"github.com/mrcode/nightscout-chart/internal/config"
	"github.com/mrcode/nightscout-chart/internal/logger"
	"github.com/mrcode/nightscout-chart/internal/metrics"
	"github.com/mrcode/nightscout-chart/internal/notifications"
	"github.com/mrcode/nightscout-chart/internal/scene"
)

// HTTP server timeout constants.
const (
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 5 * time.Second
)

type options struct {
	configPath string
	snapshot   string
	out        string
	watch      bool
	hover      string
	testNotify bool
}

func main() {
	if err := run(os.Args[1:], os.Stderr); err != nil {
		os.Stderr.WriteString("nightscout-chart: " + err.Error() + "\n")
		os.Exit(1)
	}
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	var opts options
	fs := flag.NewFlagSet("nightscout-chart", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&opts.configPath, "config", "", "YAML config file (default $"+config.EnvFile+")")
	fs.StringVar(&opts.snapshot, "snapshot", "", "snapshot JSON to render")
	fs.StringVar(&opts.out, "out", "chart.png", "PNG output path")
	fs.BoolVar(&opts.watch, "watch", false, "re-render whenever the snapshot changes")
	fs.StringVar(&opts.hover, "hover", "", "print the tooltip at pixel x,y after rendering")
	fs.BoolVar(&opts.testNotify, "test-notification", false, "send a desktop test notification and exit")
	if err := fs.Parse(args); err != nil {
		return opts, err
	}
	if opts.snapshot == "" && !opts.testNotify {
		return opts, errors.New("-snapshot is required")
	}
	return opts, nil
}

func run(args []string, stderr io.Writer) error {
	opts, err := parseFlags(args, stderr)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx, opts.configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log, err := logger.New(stderr, cfg.LogLevel)
	if err != nil {
		return err
	}

	if opts.testNotify {
		return sendTestNotification(log)
	}

	recorder := metrics.NewRecorder()
	svcOpts := []app.Option{app.WithLogger(log), app.WithRecorder(recorder)}
	if cfg.Notifications {
		svcOpts = append(svcOpts, app.WithNotifications(notifications.NewManager(notifications.WithLogger(log))))
	}
	svc := app.New(cfg, svcOpts...)

	if cfg.MetricsAddr != "" {
		srv := serveMetrics(cfg.MetricsAddr, recorder, log)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	if !opts.watch {
		if _, err := svc.UpdateFile(opts.snapshot); err != nil {
			return err
		}
		if err := svc.WritePNG(opts.out); err != nil {
			return err
		}
		log.Info("chart written", "path", opts.out)
		return printHover(svc, opts.hover)
	}

	log.Info("watching snapshot", "path", opts.snapshot, "out", opts.out)
	return svc.Watch(ctx, opts.snapshot, func(frame *scene.Frame) {
		if err := svc.WritePNG(opts.out); err != nil {
			log.Error("writing chart failed", "error", err)
			return
		}
		entering, continuing, exiting := frame.Counts()
		log.Info("chart written",
			"path", opts.out,
			"entering", entering,
			"continuing", continuing,
			"exiting", exiting)
	})
}

func sendTestNotification(log *slog.Logger, opts ...notifications.Option) error {
	m := notifications.NewManager(append([]notifications.Option{notifications.WithLogger(log)}, opts...)...)
	if err := m.SendTestNotification(); err != nil {
		return fmt.Errorf("sending test notification: %w", err)
	}
	log.Info("test notification sent")
	return nil
}

func serveMetrics(addr string, recorder *metrics.Recorder, log *slog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", recorder.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: readHeaderTimeout,
	}
	go func() {
		log.Info("serving metrics", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server failed", "error", err)
		}
	}()
	return srv
}

func printHover(svc *app.Service, at string) error {
	if at == "" {
		return nil
	}
	x, y, err := parsePoint(at)
	if err != nil {
		return err
	}
	tip, when, ok := svc.Hover(x, y)
	if !ok {
		fmt.Println("nothing at", at)
		return nil
	}
	fmt.Println(when.Format(time.RFC3339))
	fmt.Println(strings.ReplaceAll(tip, "<br/>", "\n"))
	return nil
}

func parsePoint(s string) (x, y float64, err error) {
	xs, ys, ok := strings.Cut(s, ",")
	if !ok {
		return 0, 0, fmt.Errorf("hover %q: want x,y", s)
	}
	if x, err = strconv.ParseFloat(strings.TrimSpace(xs), 64); err != nil {
		return 0, 0, fmt.Errorf("hover x: %w", err)
	}
	if y, err = strconv.ParseFloat(strings.TrimSpace(ys), 64); err != nil {
		return 0, 0, fmt.Errorf("hover y: %w", err)
	}
	return x, y, nil
}
