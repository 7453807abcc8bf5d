// ABOUTME: Entry point for the local PromptPal admin API server
// ABOUTME: Serves the admin and invitation endpoints over a SQLite store

package main

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fatih/color"

	"github.com/itsjuliuscoder/promptpal-admin-dashboard/internal/auth"
	"github.com/itsjuliuscoder/promptpal-admin-dashboard/internal/config"
	"github.com/itsjuliuscoder/promptpal-admin-dashboard/internal/devserver"
	"github.com/itsjuliuscoder/promptpal-admin-dashboard/internal/logging"
	"github.com/itsjuliuscoder/promptpal-admin-dashboard/internal/store"
	"github.com/itsjuliuscoder/promptpal-admin-dashboard/internal/telemetry"
)

// Version is set at build time.
var version = "dev"

const banner = `
                                     _             _
 _ __  _ __ ___  _ __ ___  _ __  | |_ _ __   __ _| |   ___  ___ _ ____   __
| '_ \| '__/ _ \| '_ ' _ \| '_ \ | __| '_ \ / _' | |  / __|/ _ \ '__\ \ / /
| |_) | | | (_) | | | | | | |_) || |_| |_) | (_| | |  \__ \  __/ |   \ V /
| .__/|_|  \___/|_| |_| |_| .__/  \__| .__/ \__,_|_|  |___/\___|_|    \_/
|_|                       |_|        |_|
`

func main() {
	cmd := "serve"
	if len(os.Args) >= 2 {
		cmd = os.Args[1]
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch cmd {
	case "serve":
		err = runServe(ctx)
	case "init":
		err = runInit()
	case "health":
		err = runHealth(ctx)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Usage: promptpal-devserver <command>")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  serve    Start the admin API server (default)")
	fmt.Println("  init     Write a config file with a fresh JWT secret")
	fmt.Println("  health   Check a running server")
}

func runServe(ctx context.Context) error {
	configPath := config.Path()

	cyan := color.New(color.FgCyan)
	cyan.Print(banner)
	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.ValidateDevServer(); err != nil {
		return fmt.Errorf("validating config: %w (run: promptpal-devserver init)", err)
	}

	logger := logging.Setup(os.Stdout, cfg.Logging.Level, cfg.Logging.Format)

	serviceName := cfg.Telemetry.ServiceName
	if serviceName == "" {
		serviceName = "promptpal-devserver"
	}
	shutdown, err := telemetry.Setup(ctx, telemetry.Config{
		Endpoint:    cfg.Telemetry.Endpoint,
		ServiceName: serviceName,
		Version:     version,
	})
	if err != nil {
		return fmt.Errorf("setting up telemetry: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(flushCtx); err != nil {
			logger.Warn("flushing traces", "error", err)
		}
	}()

	green := color.New(color.FgGreen)
	green.Print("    ▶ ")
	fmt.Printf("Config:    %s\n", configPath)
	green.Print("    ▶ ")
	fmt.Printf("HTTP:      %s\n", cfg.DevServer.Addr)
	green.Print("    ▶ ")
	fmt.Printf("Database:  %s\n", cfg.DevServer.DatabasePath)
	if cfg.Telemetry.Endpoint != "" {
		green.Print("    ▶ ")
		fmt.Printf("Traces:    %s\n", cfg.Telemetry.Endpoint)
	}
	fmt.Println()

	accounts, err := store.NewSQLiteStore(cfg.DevServer.DatabasePath)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer accounts.Close()

	verifier, err := auth.NewJWTVerifier([]byte(cfg.DevServer.JWTSecret))
	if err != nil {
		return fmt.Errorf("creating JWT verifier: %w", err)
	}

	srv, err := devserver.New(devserver.Options{
		Addr:          cfg.DevServer.Addr,
		InvitationTTL: cfg.DevServer.InvitationTTL,
		SessionTTL:    cfg.DevServer.SessionTTL,
		PublicURL:     cfg.DevServer.PublicURL,
	}, accounts, verifier, nil)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}
	defer srv.Close()

	if cfg.DevServer.BootstrapUsername != "" {
		created, err := srv.Bootstrap(ctx, cfg.DevServer.BootstrapUsername, cfg.DevServer.BootstrapEmail, cfg.DevServer.BootstrapPassword)
		if err != nil {
			return fmt.Errorf("bootstrapping super admin: %w", err)
		}
		if created {
			green.Printf("  ✓ Created super admin: %s\n\n", cfg.DevServer.BootstrapUsername)
		}
	}

	logger.Info("starting promptpal-devserver",
		"config", configPath,
		"http_addr", cfg.DevServer.Addr,
	)

	return srv.Run(ctx)
}

// runInit writes a starter config with a random JWT secret. An existing
// file is left alone.
func runInit() error {
	configPath := config.Path()
	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("config already exists: %s", configPath)
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("checking config: %w", err)
	}

	secretBytes := make([]byte, 32)
	if _, err := rand.Read(secretBytes); err != nil {
		return fmt.Errorf("generating JWT secret: %w", err)
	}
	jwtSecret := base64.StdEncoding.EncodeToString(secretBytes)
	dbPath := filepath.Join(config.DataPath(), "devserver.db")

	content := fmt.Sprintf(`# promptpal admin configuration
# Generated by promptpal-devserver init

api:
  base_url: "http://localhost:9002/api"
  timeout: "15s"

logging:
  level: "info"
  format: "text"

devserver:
  addr: "localhost:9002"
  database_path: "%s"
  jwt_secret: "%s"
  public_url: "http://localhost:3000"
  invitation_ttl: "168h"
  session_ttl: "24h"
  bootstrap_username: "root"
  bootstrap_email: "root@promptpal.local"
  bootstrap_password: "${PROMPTPAL_BOOTSTRAP_PASSWORD}"
`, dbPath, jwtSecret)

	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)
	green.Printf("  ✓ Created config: %s\n", configPath)
	fmt.Println()
	yellow.Println("  Ready to go:")
	fmt.Println("    export PROMPTPAL_BOOTSTRAP_PASSWORD=...   # first super admin password")
	fmt.Println("    promptpal-devserver serve")
	fmt.Println("    promptpal-admin login --username root")
	fmt.Println()
	return nil
}

func runHealth(ctx context.Context) error {
	cfg, err := config.Load(config.Path())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	url := fmt.Sprintf("http://%s/health", cfg.DevServer.Addr)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}

	slog.Default().Debug("health check passed", "url", url)
	fmt.Println("healthy")
	return nil
}
