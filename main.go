package main

import (
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"

	"github.com/hazyhaar/scamtrap/internal/api"
	"github.com/hazyhaar/scamtrap/internal/auth"
	"github.com/hazyhaar/scamtrap/internal/callback"
	"github.com/hazyhaar/scamtrap/internal/classify"
	"github.com/hazyhaar/scamtrap/internal/config"
	"github.com/hazyhaar/scamtrap/internal/engine"
	"github.com/hazyhaar/scamtrap/internal/intel"
	"github.com/hazyhaar/scamtrap/internal/llm"
	"github.com/hazyhaar/scamtrap/internal/mcp"
	"github.com/hazyhaar/scamtrap/internal/persona"
)

var version = "dev"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve":
		cmdServe(os.Args[2:])
	case "mcp":
		cmdMCP(os.Args[2:])
	case "hashpw":
		cmdHashPw(os.Args[2:])
	case "version":
		fmt.Printf("scamtrap %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`scamtrap — scam-honeypot engagement engine

Usage:
  scamtrap serve [--config config.toml] [--addr :8080]
  scamtrap mcp [--config config.toml]
  scamtrap hashpw <password>
  scamtrap version
  scamtrap help

Commands:
  serve     Start the HTTP server
  mcp       Serve the MCP tool interface over stdio
  hashpw    Print a bcrypt hash for the operator password
  version   Print version
  help      Show this help`)
}

func cmdServe(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", "", "path to config.toml")
	addr := fs.String("addr", "", "listen address (overrides config)")
	fs.Parse(args)

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	store, err := intel.Open(cfg.Store.Path)
	if err != nil {
		log.Fatalf("opening evidence store: %v", err)
	}
	defer store.Close()

	client := llm.NewFromConfig(cfg.LLM)
	classifier := classify.New(client, cfg.LLMTimeout(), logger)
	generator := persona.New(client, cfg.LLMTimeout(), logger)
	dispatcher := callback.NewDispatcher(cfg.Callback, cfg.CallbackTimeout(), logger)
	eng := engine.New(classifier, generator, store, dispatcher, cfg.Callback.Enabled, cfg.Callback.MinTurns, logger)

	a := auth.New(cfg.Auth.JWTSecret, cfg.Auth.TokenExpiryMin)
	apiHandler := api.New(eng, store, a, cfg.Auth, version, logger)

	mux := http.NewServeMux()
	apiHandler.RegisterRoutes(mux)

	log.Printf("scamtrap %s listening on %s", version, cfg.Server.Addr)
	if cfg.Store.Path != "" {
		log.Printf("evidence store: %s", cfg.Store.Path)
	} else {
		log.Printf("evidence store: in-memory")
	}
	if providers := client.Providers(); len(providers) > 0 {
		log.Printf("llm providers: %v", providers)
	} else {
		log.Printf("llm providers: none (deterministic mode)")
	}
	if cfg.Callback.DryRun {
		log.Printf("callback: dry-run")
	}

	if err := http.ListenAndServe(cfg.Server.Addr, api.SecurityHeaders(mux)); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func cmdMCP(args []string) {
	fs := flag.NewFlagSet("mcp", flag.ExitOnError)
	configPath := fs.String("config", "", "path to config.toml")
	fs.Parse(args)

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	store, err := intel.Open(cfg.Store.Path)
	if err != nil {
		log.Fatalf("opening evidence store: %v", err)
	}
	defer store.Close()

	if err := mcp.ServeStdio(mcp.NewServer(store, version)); err != nil {
		log.Fatalf("mcp server error: %v", err)
	}
}

func cmdHashPw(args []string) {
	if len(args) != 1 {
		fmt.Fprintln(os.Stderr, "usage: scamtrap hashpw <password>")
		os.Exit(1)
	}
	hash, err := auth.HashPassword(args[0])
	if err != nil {
		log.Fatalf("hashing password: %v", err)
	}
	fmt.Println(hash)
}
