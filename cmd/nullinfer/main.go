package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"nullinfer/internal/config"
	"nullinfer/internal/pipeline"
	"nullinfer/internal/report"
	"nullinfer/internal/storage"
)

var (
	rootCmd = &cobra.Command{
		Use:   "nullinfer",
		Short: "Nullability inference for Java sources",
	}
	configPath string
	dbPath     string
	jsonOut    string
	keepRuns   int
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "nullinfer.yaml", "Path to the config file (.yaml or .toml)")
	rootCmd.PersistentFlags().StringVarP(&dbPath, "db", "d", "", "Path to the run database (SQLite); overrides the config")

	inferCmd.Flags().StringVar(&jsonOut, "json", "", "Write the JSON report to this file")
	inferCmd.Flags().IntVar(&keepRuns, "keep", 10, "Number of stored runs to keep per project (0 keeps all)")
	diffCmd.Flags().String("base", "HEAD", "Git ref to diff against")
	diffCmd.Flags().StringVar(&jsonOut, "json", "", "Write the JSON report to this file")
	showCmd.Flags().Int64("run", 0, "Run id to show (default: latest)")
	showCmd.Flags().Bool("list", false, "List stored runs instead of showing one")
	showCmd.Flags().String("from", "", "Show a JSON report file instead of a stored run")

	rootCmd.AddCommand(inferCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(diffCmd)
	rootCmd.AddCommand(watchCmd)
}

func loadConfig() (*config.Config, *slog.Logger) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if dbPath != "" {
		cfg.Storage.DB = dbPath
	}
	return cfg, cfg.Logger()
}

// initStore opens the SQLite store, creating its directory.
func initStore(cfg *config.Config) (*storage.SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.Storage.DB), 0755); err != nil {
		return nil, err
	}
	return storage.NewSQLiteStore(cfg.Storage.DB)
}

func projectRoot(cfg *config.Config, args []string) string {
	path := cfg.Project.Root
	if len(args) > 0 {
		path = args[0]
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		log.Fatalf("Failed to resolve %s: %v", path, err)
	}
	return abs
}

func printSummary(r *report.Report) {
	s := r.Summary
	data := pterm.TableData{
		{"variables", "constraints", "iterations", "not-null", "nullable", "unknown"},
		{strconv.Itoa(s.Variables), strconv.Itoa(s.Constraints), strconv.Itoa(s.Iterations),
			strconv.Itoa(s.Lower), strconv.Itoa(s.Upper), strconv.Itoa(s.Unknown)},
	}
	_ = pterm.DefaultTable.WithHasHeader().WithData(data).Render()
}

func emit(r *report.Report) {
	if err := report.WriteText(os.Stdout, r); err != nil {
		log.Fatalf("Failed to print report: %v", err)
	}
	if jsonOut != "" {
		if err := report.Save(jsonOut, r); err != nil {
			log.Fatalf("Failed to write report: %v", err)
		}
		fmt.Printf("📝 Report written to %s\n", jsonOut)
	}
	printSummary(r)
}

// inferOnce runs the pipeline, prints the result and stores it.
func inferOnce(ctx context.Context, cfg *config.Config, logger *slog.Logger, root string) error {
	start := time.Now()
	o, err := pipeline.New(cfg, logger).Run(ctx, root)
	if err != nil {
		return err
	}
	emit(o.Report)

	store, err := initStore(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer store.Close()
	id, err := pipeline.Persist(ctx, store, o, keepRuns)
	if err != nil {
		return err
	}
	fmt.Printf("✅ Run %d stored (%d files, %s)\n", id, len(o.Report.Files), time.Since(start).Round(time.Millisecond))
	return nil
}

var inferCmd = &cobra.Command{
	Use:   "infer [path]",
	Short: "Infer nullability for every Java file under path",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg, logger := loadConfig()
		root := projectRoot(cfg, args)
		fmt.Printf("📂 Inferring: %s\n", root)

		if err := inferOnce(cmd.Context(), cfg, logger, root); err != nil {
			log.Fatalf("Inference failed: %v", err)
		}
	},
}

var showCmd = &cobra.Command{
	Use:   "show [path]",
	Short: "Show a stored run or a saved JSON report",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if from, _ := cmd.Flags().GetString("from"); from != "" {
			r, err := report.Load(from)
			if err != nil {
				log.Fatalf("Failed to read report: %v", err)
			}
			emit(r)
			return
		}

		cfg, _ := loadConfig()
		root := projectRoot(cfg, args)
		ctx := cmd.Context()

		store, err := initStore(cfg)
		if err != nil {
			log.Fatalf("Failed to initialize database: %v", err)
		}
		defer store.Close()

		if list, _ := cmd.Flags().GetBool("list"); list {
			runs, err := store.ListRuns(ctx, root)
			if err != nil {
				log.Fatalf("Failed to list runs: %v", err)
			}
			data := pterm.TableData{{"id", "created", "tool", "not-null", "nullable", "unknown"}}
			for _, r := range runs {
				data = append(data, []string{
					strconv.FormatInt(r.ID, 10), r.CreatedAt.Format(time.RFC3339), r.ToolVersion,
					strconv.Itoa(r.Summary.Lower), strconv.Itoa(r.Summary.Upper), strconv.Itoa(r.Summary.Unknown),
				})
			}
			_ = pterm.DefaultTable.WithHasHeader().WithData(data).Render()
			return
		}

		id, _ := cmd.Flags().GetInt64("run")
		var r *report.Report
		if id > 0 {
			_, r, err = store.LoadRun(ctx, id)
		} else {
			_, r, err = store.LatestRun(ctx, root)
		}
		if err != nil {
			log.Fatalf("Failed to load run: %v", err)
		}
		emit(r)
	},
}

var diffCmd = &cobra.Command{
	Use:   "diff [path]",
	Short: "Infer the project but report only declarations changed since a git ref",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg, logger := loadConfig()
		root := projectRoot(cfg, args)
		base, _ := cmd.Flags().GetString("base")

		o, changes, err := pipeline.New(cfg, logger).Diff(cmd.Context(), root, base)
		if err != nil {
			log.Fatalf("Diff failed: %v", err)
		}
		if len(changes) == 0 {
			fmt.Println("✅ No changes detected.")
			return
		}
		fmt.Printf("🔍 %d changed Java files since %s\n", len(changes), base)
		emit(o.Report)
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch [path]",
	Short: "Re-run inference whenever a Java file changes",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg, logger := loadConfig()
		root := projectRoot(cfg, args)

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		w, err := pipeline.NewWatcher(root, 300*time.Millisecond)
		if err != nil {
			log.Fatalf("Failed to watch %s: %v", root, err)
		}
		run := func() {
			if err := inferOnce(ctx, cfg, logger, root); err != nil {
				logger.Error("inference failed", "error", err)
			}
		}
		fmt.Printf("👀 Watching: %s\n", root)
		run()
		err = w.Run(ctx, run, func(err error) { logger.Warn("watch error", "error", err) })
		if err != nil && ctx.Err() == nil {
			log.Fatalf("Watch failed: %v", err)
		}
	},
}
