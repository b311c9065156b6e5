// Package cli implements the llmsim command line: serving, offline
// generation, config tooling, and a thin client for a running simulator.
package cli

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/llmsim/llmsim/internal/api"
	"github.com/llmsim/llmsim/internal/config"
	"github.com/llmsim/llmsim/internal/engine"
	"github.com/llmsim/llmsim/internal/logging"
	"github.com/llmsim/llmsim/sdk/llmsim"
)

// Main dispatches the subcommand and returns the process exit code.
func Main(args []string) int {
	// A local .env is a convenience for development; absence is fine.
	_ = godotenv.Load()

	if len(args) < 1 {
		usage()
		return 1
	}

	var err error
	switch args[0] {
	case "serve":
		err = runServe(args[1:])
	case "generate":
		err = runGenerate(args[1:])
	case "config":
		err = runConfig(args[1:])
	case "health":
		err = runHealth(args[1:])
	case "models":
		err = runModels(args[1:])
	case "benchmark":
		err = runBenchmark(args[1:])
	case "client":
		err = runClient(args[1:])
	case "version":
		fmt.Printf("llmsim v%s\n", config.Version)
	case "help", "-h", "--help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", args[0])
		usage()
		return 1
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	return 0
}

func usage() {
	fmt.Print(`llmsim - offline simulator for OpenAI, Anthropic, and Gemini APIs

Usage:
  llmsim <command> [flags]

Commands:
  serve       start the simulator server
  generate    generate sample data offline (chat|embedding|config|requests)
  config      config tooling (show|validate|init|models|env)
  health      check a running simulator's health
  models      list a running simulator's models
  benchmark   load-test a running simulator
  client      interact with a running simulator (chat|embed|interactive)
  version     print the version
`)
}

// loadConfig loads from the given path, or builds from defaults plus
// environment overrides when no path is given.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.Load(path)
	}
	return config.FromEnv()
}

func runServe(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	configPath := fs.String("config", "", "path to config file (.yaml, .toml, or .json)")
	host := fs.String("host", "", "override server host")
	port := fs.Int("port", 0, "override server port")
	seed := fs.Int64("seed", -1, "override deterministic seed (-1 = unset)")
	watch := fs.Bool("watch", false, "reload config on file change")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	if *host != "" {
		cfg.Server.Host = *host
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}
	if *seed >= 0 {
		cfg.Seed = seed
	}

	logging.Setup(cfg.Telemetry)
	defer logging.Sync()

	eng := engine.New(cfg)
	server := api.NewServer(cfg, eng)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if *watch && *configPath != "" {
		go func() {
			err := config.Watch(ctx, *configPath, func(next *config.Config) {
				if err := eng.UpdateConfig(next); err != nil {
					log.Warnf("config update rejected: %v", err)
				}
			})
			if err != nil {
				log.Warnf("config watcher stopped: %v", err)
			}
		}()
	}

	return server.Run(ctx)
}

func runConfig(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: llmsim config <show|validate|init|models|env>")
	}
	sub := args[0]

	fs := flag.NewFlagSet("config "+sub, flag.ContinueOnError)
	configPath := fs.String("config", "", "path to config file")
	format := fs.String("format", "yaml", "output format for show/init (yaml or json)")
	out := fs.String("out", "", "output path for init (default stdout)")
	if err := fs.Parse(args[1:]); err != nil {
		return err
	}

	switch sub {
	case "show":
		cfg, err := loadConfig(*configPath)
		if err != nil {
			return err
		}
		return emit(cfg, *format, os.Stdout)

	case "validate":
		if *configPath == "" {
			return fmt.Errorf("config validate requires -config")
		}
		if _, err := config.Load(*configPath); err != nil {
			return err
		}
		fmt.Println("configuration is valid")
		return nil

	case "init":
		cfg := config.Default()
		if *out == "" {
			return emit(cfg, *format, os.Stdout)
		}
		f, err := os.Create(*out)
		if err != nil {
			return err
		}
		defer func() { _ = f.Close() }()
		if err := emit(cfg, *format, f); err != nil {
			return err
		}
		fmt.Printf("wrote default config to %s\n", *out)
		return nil

	case "models":
		cfg, err := loadConfig(*configPath)
		if err != nil {
			return err
		}
		ids := make([]string, 0, len(cfg.Models))
		for id := range cfg.Models {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		for _, id := range ids {
			m := cfg.Models[id]
			kind := "chat"
			if m.IsEmbedding {
				kind = fmt.Sprintf("embedding(%d)", m.EmbeddingDimensions)
			}
			fmt.Printf("%-30s %-10s %-14s ctx=%d\n", id, m.Provider, kind, m.ContextLength)
		}
		return nil

	case "env":
		vars := config.EnvVars()
		names := make([]string, 0, len(vars))
		for name := range vars {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Printf("%-26s %s\n", name, vars[name])
		}
		return nil

	default:
		return fmt.Errorf("unknown config subcommand %q", sub)
	}
}

func emit(v any, format string, w *os.File) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	default:
		enc := yaml.NewEncoder(w)
		defer func() { _ = enc.Close() }()
		return enc.Encode(v)
	}
}

func runHealth(args []string) error {
	fs := flag.NewFlagSet("health", flag.ContinueOnError)
	url := fs.String("url", "http://localhost:8080", "simulator base URL")
	apiKey := fs.String("api-key", "", "API key")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client := llmsim.New(*url, llmsim.WithAPIKey(*apiKey))
	health, err := client.Health(context.Background())
	if err != nil {
		return err
	}
	data, _ := json.MarshalIndent(health, "", "  ")
	fmt.Println(string(data))
	return nil
}

func runModels(args []string) error {
	fs := flag.NewFlagSet("models", flag.ContinueOnError)
	url := fs.String("url", "http://localhost:8080", "simulator base URL")
	apiKey := fs.String("api-key", "", "API key")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client := llmsim.New(*url, llmsim.WithAPIKey(*apiKey))
	models, err := client.Models(context.Background())
	if err != nil {
		return err
	}
	sort.Slice(models.Data, func(i, j int) bool { return models.Data[i].ID < models.Data[j].ID })
	for _, m := range models.Data {
		fmt.Printf("%-34s owned_by=%s\n", m.ID, m.OwnedBy)
	}
	return nil
}
