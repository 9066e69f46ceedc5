package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/peterbourgon/ff/v4"

	"github.com/zombor/invoice-scanner/internal/capture"
	"github.com/zombor/invoice-scanner/internal/collection"
	"github.com/zombor/invoice-scanner/internal/document"
	"github.com/zombor/invoice-scanner/internal/export"
	"github.com/zombor/invoice-scanner/internal/reconcile"
	"github.com/zombor/invoice-scanner/internal/scanning"
	"github.com/zombor/invoice-scanner/internal/workflow"
)

// rootConfig holds the flags shared by every command
type rootConfig struct {
	variant    *string
	backend    *string
	dbPath     *string
	dataDir    *string
	tariffPath *string
	configPath *string
}

type rootCommand struct {
	*ff.Command
	cfg rootConfig
}

func newRootCommand() *rootCommand {
	fs := ff.NewFlagSet("invoice-scanner")
	r := &rootCommand{
		cfg: rootConfig{
			variant:    fs.StringLong("variant", string(document.VariantInvoice), "Document variant: 'invoice' or 'utility_bill'"),
			backend:    fs.StringLong("backend", "bolt", "Storage backend: 'bolt' or 'file'"),
			dbPath:     fs.StringLong("db", "invoice-scanner.db", "Database file path (bolt backend)"),
			dataDir:    fs.StringLong("data-dir", "./data", "Data directory (file backend)"),
			tariffPath: fs.StringLong("tariff", "", "Tariff YAML file for utility bills (optional)"),
			configPath: fs.StringLong("config", "", "Config file with one flag per line (optional)"),
		},
	}

	r.Command = &ff.Command{
		Name:      "invoice-scanner",
		Usage:     "invoice-scanner [FLAGS] <SUBCOMMAND>",
		ShortHelp: "Scan, review and export invoices and utility bills",
		Flags:     fs,
		Subcommands: []*ff.Command{
			r.serveCommand(fs),
			r.exportCommand(fs),
			r.clearCommand(fs),
			{
				Name:      "version",
				Usage:     "invoice-scanner version",
				ShortHelp: "Print the version",
				Exec: func(ctx context.Context, args []string) error {
					fmt.Println(version)
					return nil
				},
			},
		},
	}
	return r
}

func (r *rootCommand) serveCommand(parent *ff.FlagSet) *ff.Command {
	fs := ff.NewFlagSet("serve").SetParent(parent)
	var (
		listen      = fs.StringLong("listen", "127.0.0.1:8080", "HTTP listen address")
		scannerType = fs.StringLong("scanner", "gemini", "Scanner type: 'gemini' or 'ollama'")
		geminiKey   = fs.StringLong("gemini-key", "", "Google Gemini API key (or set GEMINI_API_KEY env var)")
		geminiModel = fs.StringLong("gemini-model", scanning.DefaultGeminiModel, "Google Gemini model name")
		ollamaURL   = fs.StringLong("ollama-url", "http://localhost:11434", "Ollama API base URL")
		ollamaModel = fs.StringLong("ollama-model", "llava", "Ollama model name (e.g., llava, qwen2-vl)")
		timeout     = fs.DurationLong("extraction-timeout", workflow.DefaultExtractionTimeout, "Maximum time for one extraction")
		captureDir  = fs.StringLong("capture-dir", "", "Hot folder a scanner drops images into (optional)")
		authUser    = fs.StringLong("auth-user", "", "Basic auth username (optional)")
		authPass    = fs.StringLong("auth-pass", "", "Basic auth password (optional)")
		origin      = fs.StringLong("allowed-origin", "", "Browser origin allowed to call the API (optional, no CORS when empty)")
	)

	return &ff.Command{
		Name:      "serve",
		Usage:     "invoice-scanner serve [FLAGS]",
		ShortHelp: "Run the scanning workflow over a local HTTP API",
		Flags:     fs,
		Exec: func(ctx context.Context, args []string) error {
			variant, tariff, err := r.settings()
			if err != nil {
				return err
			}

			store, closeStore, err := r.openStore(variant)
			if err != nil {
				return err
			}
			defer closeStore()

			var extractor scanning.Extractor
			switch *scannerType {
			case "gemini":
				apiKey := *geminiKey
				if apiKey == "" {
					apiKey = os.Getenv("GEMINI_API_KEY")
				}
				if apiKey == "" {
					return errors.New("gemini API key is required. Set --gemini-key flag or GEMINI_API_KEY environment variable")
				}
				slog.Info("Initializing Gemini scanner...", "model", *geminiModel)
				extractor, err = scanning.NewGemini(ctx, apiKey, *geminiModel, variant)
			case "ollama":
				slog.Info("Initializing Ollama scanner...", "url", *ollamaURL, "model", *ollamaModel)
				extractor, err = scanning.NewOllama(*ollamaURL, *ollamaModel, variant)
			default:
				return fmt.Errorf("invalid scanner type %q: use gemini or ollama", *scannerType)
			}
			if err != nil {
				return fmt.Errorf("initializing scanner: %w", err)
			}
			defer extractor.Close()

			var device capture.Device
			if *captureDir != "" {
				slog.Info("Capture folder enabled", "dir", *captureDir)
				device = capture.NewHotFolder(*captureDir)
			}

			machine := workflow.NewMachineWithTimeout(store, extractor, tariff, *timeout)
			state := machine.Start()
			slog.Info("Workflow ready", "variant", variant, "phase", state.Phase, "records", state.Count)

			if *authUser != "" || *authPass != "" {
				slog.Info("Basic auth enabled", "user", *authUser)
			} else if !isLoopback(*listen) {
				slog.Warn("Listening beyond loopback without basic auth", "address", *listen)
			}

			if *origin != "" {
				slog.Info("CORS enabled", "origin", *origin)
			}

			server := workflow.NewServer(machine, device, workflow.BasicAuth{
				Username: *authUser,
				Password: *authPass,
			}, *origin)
			err = server.Run(ctx, *listen)
			slog.Info("Shutting down...")
			return err
		},
	}
}

func (r *rootCommand) exportCommand(parent *ff.FlagSet) *ff.Command {
	fs := ff.NewFlagSet("export").SetParent(parent)
	output := fs.StringLong("output", "", "Output file, '-' for stdout (default: <variant>_export_<date>.csv)")

	return &ff.Command{
		Name:      "export",
		Usage:     "invoice-scanner export [FLAGS]",
		ShortHelp: "Write the committed collection as CSV",
		Flags:     fs,
		Exec: func(ctx context.Context, args []string) error {
			variant, tariff, err := r.settings()
			if err != nil {
				return err
			}

			store, closeStore, err := r.openStore(variant)
			if err != nil {
				return err
			}
			defer closeStore()

			records := store.Load()
			if len(records) == 0 {
				slog.Info("Nothing to export", "variant", variant)
				return nil
			}

			if *output == "-" {
				_, err := export.WriteCSV(os.Stdout, variant, records, tariff.Symbol())
				return err
			}

			path := *output
			if path == "" {
				path = export.Filename(variant, time.Now())
			}
			f, err := os.Create(path)
			if err != nil {
				return fmt.Errorf("creating export file: %w", err)
			}
			rows, err := export.WriteCSV(f, variant, records, tariff.Symbol())
			if cerr := f.Close(); err == nil {
				err = cerr
			}
			if err != nil {
				return fmt.Errorf("writing export: %w", err)
			}

			slog.Info("Export written", "path", path, "rows", rows)
			return nil
		},
	}
}

func (r *rootCommand) clearCommand(parent *ff.FlagSet) *ff.Command {
	fs := ff.NewFlagSet("clear").SetParent(parent)
	force := fs.BoolLong("force", "Confirm deleting every committed record")

	return &ff.Command{
		Name:      "clear",
		Usage:     "invoice-scanner clear --force",
		ShortHelp: "Delete the whole committed collection",
		Flags:     fs,
		Exec: func(ctx context.Context, args []string) error {
			if !*force {
				return errors.New("refusing to clear without --force")
			}

			variant, _, err := r.settings()
			if err != nil {
				return err
			}

			store, closeStore, err := r.openStore(variant)
			if err != nil {
				return err
			}
			defer closeStore()

			n := len(store.Load())
			if err := store.Clear(); err != nil {
				return err
			}
			slog.Info("Collection cleared", "variant", variant, "records", n)
			return nil
		},
	}
}

// settings resolves the variant and tariff flags
func (r *rootCommand) settings() (document.Variant, reconcile.Tariff, error) {
	variant, err := document.ParseVariant(*r.cfg.variant)
	if err != nil {
		return "", reconcile.Tariff{}, err
	}

	tariff := reconcile.DefaultTariff()
	if *r.cfg.tariffPath != "" {
		tariff, err = reconcile.LoadTariff(*r.cfg.tariffPath)
		if err != nil {
			return "", reconcile.Tariff{}, err
		}
		slog.Info("Tariff loaded", "path", *r.cfg.tariffPath, "high", tariff.High, "low", tariff.Low, "unit", tariff.Unit)
	}
	return variant, tariff, nil
}

// openStore opens the configured backend and returns a store over it
func (r *rootCommand) openStore(variant document.Variant) (*collection.Store, func(), error) {
	var kv collection.KV
	switch *r.cfg.backend {
	case "bolt":
		slog.Info("Initializing database...", "path", *r.cfg.dbPath)
		db, err := collection.NewBoltKV(*r.cfg.dbPath)
		if err != nil {
			return nil, nil, fmt.Errorf("initializing database: %w", err)
		}
		kv = db
	case "file":
		dir, err := filepath.Abs(*r.cfg.dataDir)
		if err != nil {
			return nil, nil, fmt.Errorf("resolving data directory: %w", err)
		}
		slog.Info("Initializing storage...", "dir", dir)
		files, err := collection.NewFileKV(dir)
		if err != nil {
			return nil, nil, fmt.Errorf("initializing storage: %w", err)
		}
		kv = files
	default:
		return nil, nil, fmt.Errorf("invalid backend %q: use bolt or file", *r.cfg.backend)
	}

	closeKV := func() {
		if err := kv.Close(); err != nil {
			slog.Error("Failed to close storage", "error", err)
		}
	}
	return collection.NewStore(kv, variant), closeKV, nil
}

// isLoopback reports whether addr only listens on the local machine
func isLoopback(addr string) bool {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return false
	}
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
