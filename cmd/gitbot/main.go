package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/aasharkey/gitbot/internal/comment"
	"github.com/aasharkey/gitbot/internal/config"
	"github.com/aasharkey/gitbot/internal/events"
	"github.com/aasharkey/gitbot/internal/gitcmd"
	"github.com/aasharkey/gitbot/internal/github"
	"github.com/aasharkey/gitbot/internal/policy"
	"github.com/aasharkey/gitbot/internal/registry"
	"github.com/aasharkey/gitbot/internal/render"
	"github.com/aasharkey/gitbot/internal/server"
	"github.com/aasharkey/gitbot/internal/shell"
	"github.com/aasharkey/gitbot/internal/status"
	"github.com/aasharkey/gitbot/internal/webhook"
)

var version = "dev"

func usage() {
	fmt.Fprintf(os.Stderr, `gitbot — rebase archaeology and commit policy bot

Usage:
  gitbot serve [flags]   Start the webhook server

Flags:
  --config   Path to the YAML config file (env: %s)
  --addr     Address to listen on (overrides server.addr)
`, config.EnvPath)
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	subcmd := os.Args[1]
	rest := os.Args[2:]

	var err error
	switch subcmd {
	case "serve":
		err = runServe(rest)
	case "--version", "version":
		fmt.Println("gitbot " + version)
		return
	case "help", "-h", "--help":
		usage()
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", subcmd)
		usage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "gitbot %s: %v\n", subcmd, err)
		os.Exit(1)
	}
}

func runServe(args []string) error {
	configPath := ""
	addrOverride := ""

	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--config":
			if i+1 < len(args) {
				configPath = args[i+1]
				i++
			}
		case "--addr":
			if i+1 < len(args) {
				addrOverride = args[i+1]
				i++
			}
		}
	}

	logger := slog.Default()

	// --- 1. Signal handling for graceful shutdown ---
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- 2. Load config ---
	cfg, err := config.Resolve(configPath)
	if err != nil {
		return err
	}
	addr := cfg.Server.Addr
	if addrOverride != "" {
		addr = addrOverride
	}

	// --- 3. Git gateway and snapshot registry ---
	repo := gitcmd.New(cfg.Repo.Path)
	snapshots := registry.New(repo)

	// --- 4. Platform client ---
	var ghOpts []github.Option
	if cfg.GitHub.Endpoint != "https://api.github.com/" {
		ghOpts = append(ghOpts, github.WithBaseURL(cfg.GitHub.Endpoint))
	}
	if cfg.GitHub.App != nil {
		ghOpts = append(ghOpts, github.WithAppAuth(github.AppCredentials{
			ClientID:       cfg.GitHub.App.ClientID,
			InstallationID: cfg.GitHub.App.InstallationID,
			PrivateKeyPath: cfg.GitHub.App.PrivateKeyPath,
		}))
	}
	platform, err := github.New(cfg.GitHub.Username, cfg.GitHub.PersonalAccessToken, ghOpts...)
	if err != nil {
		return fmt.Errorf("creating platform client: %w", err)
	}

	// --- 5. Delivery event handlers ---
	hub := server.NewHub(logger)
	handlers := events.Multi{&events.PlainTextHandler{W: os.Stderr}, hub}
	if cfg.Events.LogPath != "" {
		fileLog, err := events.NewFileHandler(cfg.Events.LogPath)
		if err != nil {
			return fmt.Errorf("opening event log %s: %w", cfg.Events.LogPath, err)
		}
		defer fileLog.Close()
		handlers = append(handlers, fileLog)
	}

	// --- 6. Webhook dispatcher ---
	dispatcher := webhook.New(webhook.Config{
		VCS:       repo,
		Snapshots: snapshots,
		Platform:  platform,
		Statuses:  status.New(platform),
		Checker:   policy.New(cfg.Policy.Domains),
		Composer:  comment.Composer{URLRoot: strings.TrimSuffix(cfg.Server.URLRoot, "/")},
		Events:    handlers,
	})
	go dispatcher.Start(ctx)

	// --- 7. Rebase archaeology views ---
	var renderer render.Renderer
	if cfg.Renderer.Vim {
		renderer = render.NewVim(&shell.Runner{})
	} else {
		renderer = render.NewNative()
	}
	views := server.NewViews(repo, renderer, cfg.GitHub.Hostname)

	// --- 8. HTTP server ---
	srv, err := server.New(addr, server.Config{
		Dispatcher: dispatcher,
		Views:      views,
		Hub:        hub,
	})
	if err != nil {
		return fmt.Errorf("starting server: %w", err)
	}

	fmt.Fprintf(os.Stderr, "gitbot listening on %s\n", srv.Addr())
	if cfg.Events.LogPath != "" {
		fmt.Fprintf(os.Stderr, "  event log: %s\n", cfg.Events.LogPath)
	}

	// Serve in a goroutine so we can wait for the shutdown signal.
	go func() {
		if err := srv.Serve(); err != nil {
			logger.Debug("server stopped", "error", err)
		}
	}()

	// --- 9. Wait for shutdown ---
	<-ctx.Done()
	fmt.Fprintln(os.Stderr, "\nshutting down...")
	srv.Close()

	return nil
}
