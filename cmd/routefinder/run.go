package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/TobiSchelling/RouteFinder/internal/beta"
	"github.com/TobiSchelling/RouteFinder/internal/danger"
	"github.com/TobiSchelling/RouteFinder/internal/database"
	"github.com/TobiSchelling/RouteFinder/internal/fetch"
	"github.com/TobiSchelling/RouteFinder/internal/llm"
	"github.com/TobiSchelling/RouteFinder/internal/mountainproject"
	"github.com/TobiSchelling/RouteFinder/internal/pipeline"
	"github.com/TobiSchelling/RouteFinder/internal/report"
	"github.com/TobiSchelling/RouteFinder/internal/route"
)

// classifierLabel names the configured classifier without building it.
func classifierLabel(lexical bool) string {
	c := cfg.Classification
	if lexical {
		return "lexical"
	}
	switch strings.ToLower(c.Provider) {
	case "openai":
		return "openai:" + c.OpenAIModel
	case "ollama":
		return "ollama:" + c.OllamaModel
	case "gemini":
		return "gemini:" + c.GeminiModel
	}
	return "lexical"
}

// newPipeline wires the fetcher, beta source and classifier from config.
// The model provider is built on first use, so runs that never need it
// work without a credential.
func newPipeline(ctx context.Context, opts pipeline.Options, lexical bool) *pipeline.Pipeline {
	src := cfg.Source
	pages := fetch.NewClient(src.UserAgent, src.Timeout)
	mp := mountainproject.NewClient(src.BaseURL, pages, mountainproject.Options{
		TicksPerPage: src.TicksPerPage,
		MaxTickPages: src.MaxTickPages,
	}, logger)

	var model *danger.ModelClassifier
	if classifierLabel(lexical) != "lexical" {
		c := cfg.Classification
		settings := llm.Settings{
			Provider:    c.Provider,
			OpenAIModel: c.OpenAIModel,
			OpenAIURL:   c.OpenAIURL,
			OllamaModel: c.OllamaModel,
			OllamaURL:   c.OllamaURL,
			GeminiModel: c.GeminiModel,
		}
		provider := llm.NewLazy(func() (llm.Provider, error) {
			return llm.CreateProvider(ctx, settings, cfg.ResolveAPIKey, logger)
		})
		model = danger.NewModelClassifier(provider, c.MaxTokens, c.TokenBudget, logger)
	}

	return pipeline.New(route.NewResolver(), beta.NewAggregator(mp, logger), model, opts, logger)
}

// --- run command ---

var (
	inputPath  string
	outputPath string
	onError    string
	workers    int
	noRecord   bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Add maturity ratings to a route export",
	RunE: func(cmd *cobra.Command, args []string) error {
		policyName := cfg.Pipeline.OnRowError
		if onError != "" {
			policyName = onError
		}
		policy, err := pipeline.ParsePolicy(policyName)
		if err != nil {
			return err
		}
		if workers <= 0 {
			workers = cfg.Pipeline.Workers
		}
		if outputPath == "" {
			ext := filepath.Ext(inputPath)
			outputPath = strings.TrimSuffix(inputPath, ext) + "-out" + ext
		}

		in, err := os.Open(inputPath)
		if err != nil {
			return fmt.Errorf("opening input: %w", err)
		}
		defer in.Close()

		out, err := os.Create(outputPath)
		if err != nil {
			return fmt.Errorf("creating output: %w", err)
		}
		defer out.Close()

		opts := pipeline.Options{Workers: workers, OnRowError: policy}
		var db *database.DB
		if cfg.Output.Record && !noRecord {
			db, err = openDB()
			if err != nil {
				return err
			}
			defer db.Close()

			opts.RunID = uuid.NewString()
			opts.Recorder = db
			if err := db.StartRun(opts.RunID, inputPath, outputPath, classifierLabel(false)); err != nil {
				return fmt.Errorf("recording run: %w", err)
			}
			logger.Info("Run started", zap.String("run_id", opts.RunID), zap.String("input", inputPath))
		}

		ctx, cancel := signalContext()
		defer cancel()
		result, runErr := newPipeline(ctx, opts, false).Run(ctx, in, out)

		if db != nil {
			rows, failed := 0, 0
			if result != nil {
				rows, failed = result.Rows, result.Failed
			}
			if err := db.FinishRun(opts.RunID, rows, failed); err != nil {
				logger.Warn("Recording run end failed", zap.Error(err))
			}
		}
		return finishRun(result, runErr, opts.RunID)
	},
}

func finishRun(result *pipeline.Result, err error, runID string) error {
	if err != nil {
		return fmt.Errorf("run failed (output %s is incomplete): %w", outputPath, err)
	}

	fmt.Printf("Wrote %d rows to %s\n", result.Rows, outputPath)
	fmt.Printf("  From route description: %d\n", result.Kinds[danger.DescriptionRating])
	fmt.Printf("  Without comments: %d\n", result.Kinds[danger.NoBeta])
	fmt.Printf("  Classified by model: %d\n", result.Kinds[danger.ModelRequired])
	fmt.Printf("  Classified lexically: %d\n", result.Kinds[danger.LexicalOnly])
	if result.Failed > 0 {
		fmt.Printf("  Failed: %d\n", result.Failed)
	}
	if runID != "" {
		fmt.Printf("\nRun %s recorded. Run 'routefinder report' to view it.\n", runID)
	}
	return nil
}

func init() {
	runCmd.Flags().StringVarP(&inputPath, "input", "i", "example.csv", "Route export to read")
	runCmd.Flags().StringVarP(&outputPath, "output", "o", "", "Where to write the rated export (default <input>-out.csv)")
	runCmd.Flags().StringVar(&onError, "on-error", "", "Row failure policy: abort or skip (default from config)")
	runCmd.Flags().IntVarP(&workers, "workers", "w", 0, "Rows processed concurrently (default from config)")
	runCmd.Flags().BoolVar(&noRecord, "no-record", false, "Do not record the run in the ledger")
}

// --- classify command ---

var lexicalOnly bool

var classifyCmd = &cobra.Command{
	Use:   "classify [route-url]",
	Short: "Rate a single route",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		a, err := newPipeline(ctx, pipeline.Options{}, lexicalOnly).Assess(ctx, args[0])
		if err != nil {
			return err
		}

		fmt.Printf("Route %d (%s)\n", a.Ref.ID, a.Ref.Slug)
		fmt.Printf("  Comments: %d, ticks: %d\n", len(a.Record.Comments), len(a.Record.Ticks))
		fmt.Printf("  Decided by: %s\n", a.Kind)
		fmt.Printf("  Rating: %s\n", a.Result.Grade)
		fmt.Printf("  Reason: %s\n", a.Result.Reasoning)
		if a.Result.Notes != "" {
			fmt.Printf("  Notes: %s\n", a.Result.Notes)
		}

		if cfg.Output.Record {
			printRouteHistory(a.Ref.ID)
		}
		return nil
	},
}

// printRouteHistory shows what earlier runs graded the route. The ledger is
// optional here, so failures are only logged.
func printRouteHistory(routeID int64) {
	db, err := openDB()
	if err != nil {
		logger.Warn("Opening ledger failed", zap.Error(err))
		return
	}
	defer db.Close()

	history, err := db.GetRouteHistory(routeID)
	if err != nil {
		logger.Warn("Reading route history failed", zap.Int64("route_id", routeID), zap.Error(err))
		return
	}
	if h := report.History(history); h != "" {
		fmt.Print("\n" + h)
	}
}

func init() {
	classifyCmd.Flags().BoolVar(&lexicalOnly, "lexical", false, "Use the lexical classifier instead of the model")
}

// --- report command ---

var (
	reportRun      string
	reportOut      string
	reportMarkdown bool
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Render a recorded run as HTML",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		run, assessments, err := report.Load(db, reportRun)
		if err != nil {
			return err
		}

		if reportMarkdown {
			fmt.Print(report.Markdown(run, assessments))
			return nil
		}

		target := reportOut
		if target == "" {
			target = fmt.Sprintf("routefinder-%s.html", run.ID)
		}
		f, err := os.Create(target)
		if err != nil {
			return fmt.Errorf("creating report: %w", err)
		}
		defer f.Close()

		if err := report.Render(f, run, assessments); err != nil {
			return fmt.Errorf("rendering report: %w", err)
		}
		fmt.Printf("Wrote report for run %s to %s\n", run.ID, target)
		return nil
	},
}

func init() {
	reportCmd.Flags().StringVar(&reportRun, "run", "", "Run ID (default: most recent)")
	reportCmd.Flags().StringVarP(&reportOut, "out", "o", "", "HTML file to write")
	reportCmd.Flags().BoolVar(&reportMarkdown, "markdown", false, "Print the Markdown summary instead")
}
