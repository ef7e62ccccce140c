// Package app wires CLI parsing, config/logging, the orchestrator, and the
// DaemonServer into the process entrypoint used by cmd/v2mdd/main.go.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rbright/v2md/internal/cli"
	"github.com/rbright/v2md/internal/clipboard"
	"github.com/rbright/v2md/internal/config"
	"github.com/rbright/v2md/internal/daemon"
	"github.com/rbright/v2md/internal/doctor"
	"github.com/rbright/v2md/internal/logging"
	"github.com/rbright/v2md/internal/orchestrator"
	"github.com/rbright/v2md/internal/runtime"
	"github.com/rbright/v2md/internal/version"
)

// Runner holds process-level dependencies used by command handlers.
type Runner struct {
	Stdout io.Writer
	Stderr io.Writer
	Logger *slog.Logger
}

// Execute is the package entrypoint used by cmd/v2mdd/main.go.
func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	r := Runner{Stdout: stdout, Stderr: stderr}
	return r.Execute(ctx, args)
}

// Execute parses CLI arguments, loads config/logging, and dispatches a command.
func (r Runner) Execute(ctx context.Context, args []string) int {
	parsed, err := cli.Parse(args)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n\n", err)
		fmt.Fprint(r.Stderr, cli.HelpText("v2mdd"))
		return 2
	}

	if parsed.ShowHelp {
		fmt.Fprint(r.Stdout, cli.HelpText("v2mdd"))
		return 0
	}

	if parsed.Command == cli.CommandVersion {
		fmt.Fprintln(r.Stdout, version.String())
		return 0
	}

	cfgLoaded, err := config.Load(parsed.ConfigPath)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	logRuntime, err := logging.New(logging.Options{
		Level:      cfgLoaded.Config.Logging.Level,
		File:       cfgLoaded.Config.Logging.File,
		MaxSizeMB:  cfgLoaded.Config.Logging.MaxSizeMB,
		MaxBackups: cfgLoaded.Config.Logging.MaxBackups,
		MaxAgeDays: cfgLoaded.Config.Logging.MaxAgeDays,
	})
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: setup logging: %v\n", err)
		return 1
	}
	defer func() { _ = logRuntime.Close() }()

	logger := r.Logger
	if logger == nil {
		logger = logRuntime.Logger
	}

	for _, w := range cfgLoaded.Warnings {
		msg := w.Message
		if w.Line > 0 {
			msg = fmt.Sprintf("line %d: %s", w.Line, w.Message)
		}
		fmt.Fprintf(r.Stderr, "warning: %s\n", msg)
		logger.Warn("config warning", "line", w.Line, "message", w.Message)
	}

	cfg := applyCLIOverrides(cfgLoaded.Config, parsed)

	logger.Info("command start",
		"command", parsed.Command,
		"config", cfgLoaded.Path,
		"log", logRuntime.Path,
	)

	switch parsed.Command {
	case cli.CommandDoctor:
		report := doctor.Run(cfgLoaded)
		fmt.Fprintln(r.Stdout, report.String())
		if report.OK() {
			return 0
		}
		return 1
	case cli.CommandDaemon:
		return r.commandDaemon(ctx, cfg, logger)
	default:
		fmt.Fprintf(r.Stderr, "error: unsupported command %q\n", parsed.Command)
		return 2
	}
}

// applyCLIOverrides gives explicit CLI flags the highest precedence, above
// the TOML file and environment variables already merged into cfg by
// config.Load (spec.md §6: CLI > env > TOML > defaults).
func applyCLIOverrides(cfg config.Config, parsed cli.Parsed) config.Config {
	if parsed.Host != nil {
		cfg.Host = *parsed.Host
	}
	if parsed.Port != nil {
		cfg.Port = *parsed.Port
	}
	if parsed.Model != nil {
		cfg.Transcription.Whisper.Model = *parsed.Model
	}
	if parsed.Device != nil {
		cfg.Transcription.Whisper.Device = *parsed.Device
	}
	if parsed.ComputeType != nil {
		cfg.Transcription.Whisper.ComputeType = *parsed.ComputeType
	}
	if parsed.KeepWarmSecs != nil {
		cfg.Transcription.Whisper.KeepWarmSeconds = *parsed.KeepWarmSecs
	}
	if parsed.LazyLoad != nil {
		cfg.Transcription.Whisper.LazyLoad = *parsed.LazyLoad
	}
	return cfg
}

// commandDaemon acquires the single-instance PID file, starts the
// orchestrator's background warmup, and serves the DaemonServer until a
// signal or listener failure ends the process (spec.md §4.5/§6).
func (r Runner) commandDaemon(ctx context.Context, cfg config.Config, logger *slog.Logger) int {
	release, err := runtime.AcquirePIDFile(cfg.Paths.PIDFile)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	defer release()

	recoverStaleRecordingFlag(cfg, logger)

	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	orch := orchestrator.New(cfg, logger)
	orch.WarmUp(sigCtx)

	if !cfg.Transcription.Whisper.LazyLoad {
		if err := waitForModelLoad(sigCtx, orch); err != nil {
			fmt.Fprintf(r.Stderr, "error: model load failed: %v\n", err)
			logger.Error("model load failed", "error", err)
			return 1
		}
	}

	var clipboardPort clipboard.Writer
	if cfg.Clipboard.Enable {
		clipboardPort = clipboard.New()
	}

	srv := daemon.New(orch, clipboardPort, logger)

	addr := net.JoinHostPort(cfg.Host, portString(cfg.Port))
	logger.Info("daemon listening", "addr", addr)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe(sigCtx, addr)
	}()

	select {
	case <-sigCtx.Done():
	case err := <-errCh:
		if err != nil {
			fmt.Fprintf(r.Stderr, "error: %v\n", err)
			logger.Error("daemon serve failed", "error", err)
			orch.Shutdown(context.Background())
			return 2
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	orch.Shutdown(shutdownCtx)

	if err := <-errCh; err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	return 0
}

// recoverStaleRecordingFlag clears a recording-flag file left behind by a
// crashed prior instance. AcquirePIDFile has already established that no
// other instance holds the PID file by this point, so a flag file still on
// disk can only be a stale crash artifact, never a live recording (spec.md
// §6: the flag is removed on stop or reconciled via crash recovery at
// startup).
func recoverStaleRecordingFlag(cfg config.Config, logger *slog.Logger) {
	flag := runtime.NewRecordingFlag(cfg.Paths.RecordingFlagFile)
	if !flag.Exists() {
		return
	}
	if logger != nil {
		logger.Warn("clearing stale recording flag from a prior crash", "path", cfg.Paths.RecordingFlagFile)
	}
	if err := flag.Clear(); err != nil && logger != nil {
		logger.Error("failed to clear stale recording flag", "error", err)
	}
}

// waitForModelLoad blocks until the worker reports it has finished loading
// or ctx is canceled, polling since PersistentModelWorker exposes no load
// completion channel beyond the warmup goroutine itself.
func waitForModelLoad(ctx context.Context, orch *orchestrator.Orchestrator) error {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		if orch.ModelLoaded() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func portString(port int) string {
	if port <= 0 {
		return "0"
	}
	return fmt.Sprintf("%d", port)
}
