package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/tryterra/static-analysis/internal/analyzer"
	"github.com/tryterra/static-analysis/internal/config"
	"github.com/tryterra/static-analysis/internal/mcpserver"
	"github.com/tryterra/static-analysis/internal/types"
	"github.com/tryterra/static-analysis/internal/version"
)

func loadConfigWithOverrides(c *cli.Context) (*config.Config, error) {
	configPath := c.String("config")
	if rootFlag := c.String("root"); rootFlag != "" && configPath == ".sca.toml" {
		configPath = filepath.Join(rootFlag, ".sca.toml")
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config from %s: %w", configPath, err)
	}

	if includeFlags := c.StringSlice("include"); len(includeFlags) > 0 {
		cfg.Scope.Include = includeFlags
	}
	if excludeFlags := c.StringSlice("exclude"); len(excludeFlags) > 0 {
		cfg.Scope.Exclude = append(cfg.Scope.Exclude, excludeFlags...)
	}
	if rootFlag := c.String("root"); rootFlag != "" {
		absRoot, err := filepath.Abs(rootFlag)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve root path %q: %w", rootFlag, err)
		}
		cfg.Project.Root = absRoot
	}
	if c.Bool("watch") {
		cfg.Cache.WatchMode = true
	}
	return cfg, nil
}

func main() {
	app := &cli.App{
		Name:    "sca",
		Usage:   "Source-code analysis server for AI assistants",
		Version: version.Version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Config file path",
				Value:   ".sca.toml",
			},
			&cli.StringFlag{
				Name:    "root",
				Aliases: []string{"r"},
				Usage:   "Workspace root directory (overrides config)",
			},
			&cli.StringSliceFlag{
				Name:  "include",
				Usage: "Include files matching glob patterns",
			},
			&cli.StringSliceFlag{
				Name:  "exclude",
				Usage: "Exclude files matching glob patterns",
			},
			&cli.BoolFlag{
				Name:  "watch",
				Usage: "Watch tracked files and evict stale cache entries",
			},
		},
		Commands: []*cli.Command{
			serveCommand(),
			analyzeCommand(),
			smellsCommand(),
			summaryCommand(),
			versionCommand(),
		},
		// No subcommand starts the MCP server, the common launcher setup.
		Action: func(c *cli.Context) error {
			return runServe(c)
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:   "serve",
		Usage:  "Serve analysis tools over MCP stdio",
		Action: runServe,
	}
}

func runServe(c *cli.Context) error {
	cfg, err := loadConfigWithOverrides(c)
	if err != nil {
		return err
	}
	server, err := mcpserver.NewServer(cfg, true)
	if err != nil {
		return err
	}
	defer server.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	return server.Start(ctx)
}

// buildAnalyzer shares the server's wiring for direct CLI use; no stdio
// transport is started.
func buildAnalyzer(c *cli.Context) (*analyzer.Analyzer, func(), error) {
	cfg, err := loadConfigWithOverrides(c)
	if err != nil {
		return nil, nil, err
	}
	server, err := mcpserver.NewServer(cfg, false)
	if err != nil {
		return nil, nil, err
	}
	return server.Analyzer(), func() { _ = server.Close() }, nil
}

func printJSON(v any) error {
	encoded, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(encoded))
	return nil
}

func analyzeCommand() *cli.Command {
	return &cli.Command{
		Name:      "analyze",
		Usage:     "Analyze a single file and print the result as JSON",
		ArgsUsage: "<file>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "type",
				Usage: "Analysis type: symbols, dependencies, complexity or all",
				Value: "all",
			},
			&cli.BoolFlag{
				Name:  "private",
				Usage: "Include conventionally private symbols",
			},
			&cli.BoolFlag{
				Name:  "detailed",
				Usage: "Print full symbol listings, not just the summary",
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("expected exactly one file argument")
			}
			a, cleanup, err := buildAnalyzer(c)
			if err != nil {
				return err
			}
			defer cleanup()

			result, err := a.AnalyzeFile(c.Context, c.Args().First(), analyzer.FileAnalysisOptions{
				Type:           analyzer.AnalysisType(c.String("type")),
				IncludePrivate: c.Bool("private"),
				Detailed:       c.Bool("detailed"),
			})
			if err != nil {
				return err
			}
			return printJSON(result)
		},
	}
}

func smellsCommand() *cli.Command {
	return &cli.Command{
		Name:      "smells",
		Usage:     "Detect code smells in a file, or across the workspace with no argument",
		ArgsUsage: "[file]",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:  "category",
				Usage: "Detector categories to run (default all)",
			},
			&cli.IntFlag{
				Name:  "complexity",
				Usage: "Cyclomatic complexity threshold",
			},
		},
		Action: func(c *cli.Context) error {
			a, cleanup, err := buildAnalyzer(c)
			if err != nil {
				return err
			}
			defer cleanup()

			var categories []types.SmellCategory
			for _, name := range c.StringSlice("category") {
				categories = append(categories, types.SmellCategory(name))
			}
			findings, err := a.DetectSmells(c.Context, c.Args().First(), categories,
				analyzer.SmellThresholds{Complexity: c.Int("complexity")})
			if err != nil {
				return err
			}
			return printJSON(findings)
		},
	}
}

func summaryCommand() *cli.Command {
	return &cli.Command{
		Name:  "summary",
		Usage: "Summarize the workspace",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "metrics",
				Usage: "Include complexity metrics",
			},
			&cli.BoolFlag{
				Name:  "architecture",
				Usage: "Include the architecture sketch",
			},
		},
		Action: func(c *cli.Context) error {
			a, cleanup, err := buildAnalyzer(c)
			if err != nil {
				return err
			}
			defer cleanup()

			summary, err := a.SummarizeCodebase(c.Context, analyzer.SummaryOptions{
				IncludeMetrics:      c.Bool("metrics"),
				IncludeArchitecture: c.Bool("architecture"),
			})
			if err != nil {
				return err
			}
			return printJSON(summary)
		},
	}
}

func versionCommand() *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Print version information",
		Action: func(c *cli.Context) error {
			fmt.Println(version.FullInfo())
			return nil
		},
	}
}
