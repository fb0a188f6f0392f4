package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"runtime"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/focusdeck/focusdeck/internal/config"
	"github.com/focusdeck/focusdeck/internal/db"
	"github.com/focusdeck/focusdeck/internal/server"
	"github.com/focusdeck/focusdeck/internal/sync"
)

var (
	version   = "dev"
	commit    = "unknown"
	buildDate = ""
)

const (
	periodicSyncInterval = 15 * time.Minute
	browserPollInterval  = 100 * time.Millisecond
	browserPollAttempts  = 60
)

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "update":
			runUpdate(os.Args[2:])
			return
		case "serve":
			runServe(os.Args[2:])
			return
		case "version", "--version", "-v":
			fmt.Printf("focusdeck %s (commit %s, built %s)\n",
				version, commit, buildDate)
			return
		case "help", "--help", "-h":
			printUsage()
			return
		}
	}

	runServe(os.Args[1:])
}

func printUsage() {
	fmt.Printf(`focusdeck %s - local focus analytics dashboard

Imports focus-timer session logs into SQLite and serves a
productivity analytics dashboard via a local web UI.

Usage:
  focusdeck [flags]          Start the server (default command)
  focusdeck serve [flags]    Start the server (explicit)
  focusdeck update [flags]   Check for a newer release
  focusdeck version          Show version information
  focusdeck help             Show this help

Server flags:
  -host string        Host to bind to (default "127.0.0.1")
  -port int           Port to listen on (default 4040)
  -no-browser         Don't open browser on startup
  -logs-dir string    Session log directory to import from

Update flags:
  -force              Force check (ignore cache)

Environment variables:
  FOCUSDECK_DATA_DIR   Data directory (database, config)
  FOCUSDECK_LOGS_DIR   Session log directory

Data is stored in ~/.focusdeck/ by default.
`, version)
}

func runServe(args []string) {
	cfg := mustLoadConfig(args)

	database, err := db.Open(cfg.DBPath)
	if err != nil {
		log.Fatalf("opening database: %v", err)
	}
	defer database.Close()

	engine := sync.NewEngine(
		database, cfg.LogsDir, cfg.Analytics, time.Local,
	)

	runInitialImport(engine)

	stopWatcher := startLogWatcher(cfg, engine)
	defer stopWatcher()

	go startPeriodicImport(engine)

	srv := server.New(cfg, database, engine,
		server.WithVersion(server.VersionInfo{
			Version:   version,
			Commit:    commit,
			BuildDate: buildDate,
		}),
	)

	port := server.FindAvailablePort(cfg.Host, cfg.Port)
	if port != cfg.Port {
		fmt.Printf("Port %d in use, using %d\n", cfg.Port, port)
		srv.SetPort(port)
	}

	url := fmt.Sprintf("http://%s:%d", cfg.Host, port)
	fmt.Printf("focusdeck %s listening at %s\n", version, url)

	if !cfg.NoBrowser {
		go openBrowser(url)
	}

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errc:
		log.Fatalf("server error: %v", err)
	case s := <-sig:
		fmt.Printf("\nReceived %s, shutting down\n", s)
	}

	ctx, cancel := context.WithTimeout(
		context.Background(), 5*time.Second,
	)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("shutdown: %v", err)
	}
}

func mustLoadConfig(args []string) config.Config {
	fs := flag.NewFlagSet("focusdeck", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(),
			"Usage: focusdeck [serve] [flags]\n\nFlags:\n")
		fs.PrintDefaults()
	}
	config.RegisterServeFlags(fs)
	if err := fs.Parse(args); err != nil {
		log.Fatalf("parsing flags: %v", err)
	}

	cfg, err := config.Load(fs)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		log.Fatalf("creating data dir: %v", err)
	}
	return cfg
}

func runInitialImport(engine *sync.Engine) {
	fmt.Println("Importing session logs...")
	stats := engine.ImportAll(context.Background())
	fmt.Printf(
		"Import complete: %d file(s), %d session(s) imported, %d skipped\n",
		stats.Files, stats.Imported, stats.Skipped,
	)
}

func startLogWatcher(
	cfg config.Config, engine *sync.Engine,
) func() {
	onChange := func(paths []string) {
		engine.ImportPaths(context.Background(), paths)
	}
	watcher, err := sync.NewWatcher(cfg.WatchDebounce, onChange)
	if err != nil {
		log.Printf("warning: file watcher unavailable: %v", err)
		return func() {}
	}
	if err := watcher.Watch(cfg.LogsDir); err != nil {
		log.Printf("warning: watching logs dir: %v", err)
		return func() {}
	}
	watcher.Start()
	return watcher.Stop
}

func startPeriodicImport(engine *sync.Engine) {
	ticker := time.NewTicker(periodicSyncInterval)
	defer ticker.Stop()
	for range ticker.C {
		log.Println("Running scheduled import...")
		engine.ImportAll(context.Background())
	}
}

func openBrowser(url string) {
	for i := 0; i < browserPollAttempts; i++ {
		time.Sleep(browserPollInterval)
		resp, err := http.Get(url + "/api/v1/version")
		if err == nil {
			resp.Body.Close()
			break
		}
	}

	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "linux":
		cmd = exec.Command("xdg-open", url)
	case "windows":
		cmd = exec.Command("rundll32",
			"url.dll,FileProtocolHandler", url)
	default:
		return
	}
	_ = cmd.Run()
}
