package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/Aman-CERP/graphmem/internal/logging"
	"github.com/Aman-CERP/graphmem/internal/store"
	"github.com/Aman-CERP/graphmem/pkg/graphmem"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	nameStyle   = lipgloss.NewStyle().Bold(true)
	scoreStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

type cliOptions struct {
	configPath string
	storePath  string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	opts := &cliOptions{}

	root := &cobra.Command{
		Use:           "graphmem",
		Short:         "Embeddable knowledge-graph search engine",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logCfg := logging.DefaultConfig()
			if opts.logLevel != "" {
				logCfg.Level = opts.logLevel
			}
			slog.SetDefault(logging.Setup(logCfg))
		},
	}

	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "path to config YAML")
	root.PersistentFlags().StringVar(&opts.storePath, "store", "graphmem.jsonl", "path to the JSONL journal")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level (debug, info, warn, error)")

	root.AddCommand(newSearchCmd(opts))
	root.AddCommand(newStatsCmd(opts))
	root.AddCommand(newIndexCmd(opts))
	return root
}

// openEngine builds an engine over the configured journal and loads it.
func openEngine(ctx context.Context, opts *cliOptions) (*graphmem.Engine, error) {
	cfg, err := graphmem.LoadConfig(opts.configPath)
	if err != nil {
		return nil, err
	}

	js, err := store.NewJSONLStore(opts.storePath)
	if err != nil {
		return nil, err
	}

	engine, err := graphmem.New(cfg, graphmem.WithStore(js))
	if err != nil {
		return nil, err
	}
	if err := engine.Load(ctx); err != nil {
		_ = engine.Close()
		return nil, err
	}
	return engine, nil
}

func newSearchCmd(opts *cliOptions) *cobra.Command {
	var (
		mode      string
		limit     int
		offset    int
		tags      []string
		entityTyp string
		asJSON    bool
	)

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the graph (basic, ranked, bm25, boolean, fuzzy, semantic, hybrid, auto)",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			engine, err := openEngine(ctx, opts)
			if err != nil {
				return err
			}
			defer func() { _ = engine.Close() }()

			query := strings.Join(args, " ")
			filters := graphmem.Filters{Tags: tags, EntityType: entityTyp}
			page := graphmem.Page{Offset: offset, Limit: limit}

			var res *graphmem.Results
			switch mode {
			case "basic":
				res, err = engine.Basic(ctx, query, filters, page)
			case "ranked":
				res, err = engine.Ranked(ctx, query, filters, page)
			case "bm25":
				res, err = engine.BM25(ctx, query, filters, page)
			case "boolean":
				res, err = engine.Boolean(ctx, query, filters, page)
			case "fuzzy":
				res, err = engine.Fuzzy(ctx, query, filters, page)
			case "semantic":
				if _, err := engine.IndexAll(ctx); err != nil {
					return err
				}
				res, err = engine.Semantic(ctx, query, filters, page)
			case "hybrid":
				if _, err := engine.IndexAll(ctx); err != nil {
					return err
				}
				res, err = engine.Hybrid(ctx, query, filters, page)
			case "auto":
				if _, err := engine.IndexAll(ctx); err != nil {
					return err
				}
				res, err = engine.Query(ctx, query, filters, page)
			default:
				return fmt.Errorf("unknown search mode %q", mode)
			}
			if err != nil {
				return err
			}

			if asJSON {
				return json.NewEncoder(os.Stdout).Encode(res)
			}
			renderResults(query, res)
			return nil
		},
	}

	cmd.Flags().StringVar(&mode, "mode", "hybrid", "search mode")
	cmd.Flags().IntVar(&limit, "limit", 10, "max results")
	cmd.Flags().IntVar(&offset, "offset", 0, "result offset")
	cmd.Flags().StringSliceVar(&tags, "tag", nil, "require one of these tags")
	cmd.Flags().StringVar(&entityTyp, "type", "", "require this entity type")
	cmd.Flags().BoolVar(&asJSON, "json", false, "emit JSON")
	return cmd
}

func renderResults(query string, res *graphmem.Results) {
	fmt.Println(headerStyle.Render(fmt.Sprintf("%d results for %q", res.Total, query)))
	for i, r := range res.Results {
		line := fmt.Sprintf("%2d. %s  %s  %s",
			i+1,
			nameStyle.Render(r.Entity.Name),
			dimStyle.Render(r.Entity.EntityType),
			scoreStyle.Render(fmt.Sprintf("%.3f", r.Score)))
		fmt.Println(line)
		for _, obs := range r.Entity.Observations {
			fmt.Println(dimStyle.Render("      " + obs))
		}
	}
	if len(res.Relations) > 0 {
		fmt.Println(headerStyle.Render("relations"))
		for _, rel := range res.Relations {
			fmt.Printf("    %s -[%s]-> %s\n", rel.From, rel.Type, rel.To)
		}
	}
}

func newStatsCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show graph and cache statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			engine, err := openEngine(ctx, opts)
			if err != nil {
				return err
			}
			defer func() { _ = engine.Close() }()

			stats := engine.Stats()
			fmt.Println(headerStyle.Render("graph"))
			fmt.Printf("    entities:   %d\n", stats.Entities)
			fmt.Printf("    relations:  %d\n", stats.Relations)
			fmt.Printf("    generation: %d\n", stats.Generation)

			cache := engine.CacheStats()
			fmt.Println(headerStyle.Render("plan cache"))
			fmt.Printf("    size: %d  hits: %d  misses: %d  hit rate: %.2f\n",
				cache.PlanCache.Size, cache.PlanCache.Hits, cache.PlanCache.Misses, cache.PlanCache.HitRate)
			return nil
		},
	}
}

func newIndexCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "index",
		Short: "Embed all entities into the vector store",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			engine, err := openEngine(ctx, opts)
			if err != nil {
				return err
			}
			defer func() { _ = engine.Close() }()

			n, err := engine.IndexAll(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("indexed %d entities\n", n)
			return nil
		},
	}
}
