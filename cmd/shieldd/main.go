// Package main is the CLI entry point for shieldd.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/eliteGoblin/shield/internal/bridge"
	"github.com/eliteGoblin/shield/internal/config"
	"github.com/eliteGoblin/shield/internal/daemon"
	"github.com/eliteGoblin/shield/internal/domain"
	"github.com/eliteGoblin/shield/internal/infra"
)

var (
	// Version info (set via ldflags)
	Version   = "1.0.0"
	Commit    = "dev"
	BuildTime = "unknown"
)

var jsonCodec = jsoniter.ConfigCompatibleWithStandardLibrary

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "shieldd",
	Short: "Shield bridge - runs system hardening scripts for the Shield UI",
	Long: `shieldd hosts the privileged side of Shield. It runs the bundled
PowerShell scripts that query and change hardening, debloat and tweak
settings, keeps the last known state on disk, and serves it to the UI
over an authenticated local HTTP and WebSocket bridge.

Every bridge operation is also available as a one-shot command.`,
	Version:      Version,
	SilenceUsage: true,
}

var serveCmd = &cobra.Command{
	Use:   daemon.ServeCommand,
	Short: "Run the bridge in the foreground",
	Long: `Runs the bridge until interrupted. With --detach the bridge is started
in the background and this command returns once it has registered.`,
	RunE: runServe,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show bridge and hardening status",
	RunE:  runStatus,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Prints version, commit, and build time. Use --json for machine-readable output.`,
	Run:   runVersion,
}

var (
	flagDataDir    string
	flagScriptsDir string
	flagListen     string
	flagReplacePID int
	flagDetach     bool
	jsonOutput     bool
)

func init() {
	rootCmd.PersistentFlags().StringVar(&flagDataDir, "data-dir", "", "Override the data directory")
	rootCmd.PersistentFlags().StringVar(&flagScriptsDir, "scripts-dir", "", "Override the scripts directory")

	serveCmd.Flags().StringVar(&flagListen, "listen", "", "Listen address (default from SHIELD_LISTEN_ADDR)")
	serveCmd.Flags().IntVar(&flagReplacePID, "replace-pid", 0, "Wait for this PID to exit before starting")
	serveCmd.Flags().BoolVar(&flagDetach, "detach", false, "Start the bridge in the background")
	_ = serveCmd.Flags().MarkHidden("replace-pid")

	statusCmd.Flags().Bool("json", false, "Output status as JSON")
	versionCmd.Flags().BoolVar(&jsonOutput, "json", false, "Output version info as JSON")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(versionCmd)
	addBridgeCommands(rootCmd)
}

// forwardedFlags returns the flags a relaunched bridge must keep.
func forwardedFlags() []string {
	var extra []string
	if flagDataDir != "" {
		extra = append(extra, "--data-dir", flagDataDir)
	}
	if flagScriptsDir != "" {
		extra = append(extra, "--scripts-dir", flagScriptsDir)
	}
	if flagListen != "" {
		extra = append(extra, "--listen", flagListen)
	}
	return extra
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if flagDetach {
		return startDetached(cfg)
	}

	mode := infra.DetectExecMode(infra.NewPrivilegeProber(), cfg.DataDir)
	if err := os.MkdirAll(mode.DataDir, 0700); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	logger := createFileLogger(mode.LogPath, cfg.LogLevel)
	defer func() { _ = logger.Sync() }()

	auth, err := bridge.NewSessionAuthenticator()
	if err != nil {
		return err
	}
	hub := bridge.NewHub(logger)

	var host *daemon.Host
	a, err := newApp(cfg, logger, appOptions{
		notifier: hub,
		shutdown: func() { host.RequestShutdown() },
		extra:    forwardedFlags(),
	})
	if err != nil {
		logger.Error("failed to start bridge", zap.Error(err))
		return err
	}

	hostCfg := daemon.DefaultHostConfig()
	hostCfg.ListenAddr = cfg.ListenAddr
	hostCfg.UpdateInterval = cfg.UpdateInterval
	hostCfg.ReplacePID = flagReplacePID
	hostCfg.Mode = a.mode.Mode
	hostCfg.Version = Version

	host = daemon.NewHost(hostCfg, a.registry, a.pm, auth, logger).
		WithUpdater(a.updater).
		WithClosers(a.cache, a.profiles)
	for id, svc := range a.modules {
		host.WithRefresher(id, svc)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("received shutdown signal")
		cancel()
	}()

	server := bridge.NewServer(a.api, hub, auth, logger)
	return host.Run(ctx, server)
}

// startDetached launches a background bridge and waits for it to register.
func startDetached(cfg config.Config) error {
	mode := infra.DetectExecMode(infra.NewPrivilegeProber(), cfg.DataDir)
	registry := infra.NewFileRegistry(mode, infra.NewProcessManager())

	if instance := liveBridge(registry); instance != nil {
		fmt.Printf("shieldd is already running (pid %d, %s)\n", instance.PID, instance.Addr)
		return nil
	}

	exe, err := os.Executable()
	if err != nil {
		return err
	}
	pid, err := daemon.StartDetached(exe, forwardedFlags()...)
	if err != nil {
		return err
	}

	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		if instance, _ := registry.Get(); instance != nil && instance.PID == pid {
			fmt.Printf("shieldd started (pid %d, %s)\n", pid, instance.Addr)
			return nil
		}
		time.Sleep(200 * time.Millisecond)
	}
	return fmt.Errorf("bridge %d did not register within 10s; see %s", pid, mode.LogPath)
}

func runStatus(cmd *cobra.Command, args []string) error {
	return runApp(false, func(ctx context.Context, a *app) error {
		status, err := a.api.GetSystemStatus(ctx)
		if err != nil {
			return err
		}
		if jsonFlag(cmd) {
			return printJSON(status)
		}

		fmt.Println("\n=== Shield Status ===")
		instance, _ := a.registry.Get()
		switch {
		case instance == nil:
			fmt.Println("Bridge: NOT RUNNING")
		case a.registry.IsAlive():
			fmt.Printf("Bridge: RUNNING (pid %d, %s, %s)\n", instance.PID, instance.Addr, instance.Mode)
			if instance.LastHeartbeat > 0 {
				lastBeat := time.Unix(instance.LastHeartbeat, 0)
				fmt.Printf("Last heartbeat: %s ago\n", time.Since(lastBeat).Round(time.Second))
			}
		default:
			fmt.Printf("Bridge: STALE (pid %d no longer running)\n", instance.PID)
		}

		fmt.Printf("\nExecution mode: %s\n", a.mode)
		fmt.Printf("Data dir: %s\n", a.mode.DataDir)
		fmt.Printf("Scripts dir: %s\n", a.invoker.ScriptsDir())

		fmt.Printf("\nPosture: %s\n", status.Posture)
		fmt.Printf("Hardening level: %d%%\n", status.HardeningLevel)
		if status.LastScan != nil {
			fmt.Printf("Last scan: %s ago\n", time.Since(*status.LastScan).Round(time.Second))
		} else {
			fmt.Println("Last scan: never (run 'shieldd modules refresh')")
		}
		if status.Host != nil {
			fmt.Printf("Host: %s (%s %s, %s)\n", status.Host.Hostname, status.Host.Platform,
				status.Host.PlatformVersion, status.Host.Arch)
		}
		fmt.Println("=====================")
		return nil
	})
}

func runVersion(cmd *cobra.Command, args []string) {
	if jsonOutput {
		fmt.Printf(`{"version":"%s","commit":"%s","build_time":"%s"}`+"\n",
			Version, Commit, BuildTime)
	} else {
		fmt.Printf("shieldd %s (commit: %s, built: %s)\n",
			Version, Commit, BuildTime)
	}
}

// withApp wires an app for a one-shot command, logging to stderr.
func withApp(fn func(ctx context.Context, a *app) error) error {
	return runApp(true, fn)
}

func runApp(warnLive bool, fn func(ctx context.Context, a *app) error) (err error) {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := createConsoleLogger(cfg.LogLevel)
	defer func() { _ = logger.Sync() }()

	a, err := newApp(cfg, logger, appOptions{extra: forwardedFlags()})
	if err != nil {
		return err
	}
	defer func() {
		if cerr := a.close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	if warnLive {
		a.warnIfBridgeRunning()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return fn(ctx, a)
}

func printJSON(v interface{}) error {
	data, err := jsonCodec.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

func printResult(res domain.InvocationResult) error {
	var text string
	if err := jsonCodec.Unmarshal(res.Payload, &text); err == nil {
		fmt.Println(text)
		return nil
	}
	return printJSON(res.Payload)
}

func jsonFlag(cmd *cobra.Command) bool {
	v, err := cmd.Flags().GetBool("json")
	return err == nil && v
}

func levelOf(name string) zapcore.Level {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(name)); err != nil {
		return zapcore.InfoLevel
	}
	return level
}

// createFileLogger writes JSON logs next to the bridge's state.
func createFileLogger(path, level string) *zap.Logger {
	config := zap.NewProductionConfig()
	config.Level = zap.NewAtomicLevelAt(levelOf(level))
	config.OutputPaths = []string{path}
	config.ErrorOutputPaths = []string{filepath.Join(filepath.Dir(path), "shieldd.error.log")}
	config.EncoderConfig.TimeKey = "time"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := config.Build()
	if err != nil {
		// Fallback to stdout if file logging fails
		logger, _ = zap.NewProduction()
	}
	return logger
}

func createConsoleLogger(level string) *zap.Logger {
	config := zap.NewDevelopmentConfig()
	config.Level = zap.NewAtomicLevelAt(levelOf(level))
	config.OutputPaths = []string{"stderr"}
	logger, err := config.Build()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}
