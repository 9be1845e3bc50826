package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"giftprobe/internal/config"
	"giftprobe/internal/logging"
	"giftprobe/internal/observability"
)

// Set with -ldflags "-X main.version=...".
var version = "dev"

var (
	green  = color.New(color.FgGreen).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
	gray   = color.New(color.FgHiBlack).SprintFunc()
	bold   = color.New(color.Bold).SprintFunc()
)

func errorText(msg string) string { return red("error: " + msg) }

// CLI carries state shared by every subcommand.
type CLI struct {
	v          *viper.Viper
	configFile string
	noColor    bool
	cfg        config.Config
	shutdown   func(context.Context) error
}

// flagBinding ties a persistent flag to a config key.
type flagBinding struct {
	key  string
	flag string
}

var persistentBindings = []flagBinding{
	{"output_dir", "output"},
	{"policy_file", "policy"},
	{"log.level", "log-level"},
	{"log.format", "log-format"},
	{"refine.good_threshold", "threshold"},
	{"refine.max_rounds", "max-rounds"},
	{"refine.top_k", "top-k"},
	{"refine.concurrency", "concurrency"},
	{"llm.provider", "llm-provider"},
	{"llm.model", "llm-model"},
	{"search.product_url", "url-base"},
}

// NewRootCommand creates the root cobra command.
func NewRootCommand() *cobra.Command {
	cli := &CLI{v: viper.New()}

	rootCmd := &cobra.Command{
		Use:   "giftprobe",
		Short: "Score and refine retail gift search queries",
		Long: fmt.Sprintf(`%s

Runs a sheet of gift search test cases against the retail search API, scores
the top results against the category policy, and refines failing queries for
a bounded number of rounds.

%s
  giftprobe run --input tests.csv
  giftprobe run --input tests.csv --human-scores scored.csv
  giftprobe prompts --input tests.csv && giftprobe fixes && giftprobe apply-fixes --input tests.csv
  giftprobe urls --input tests.csv --grouped
  giftprobe serve`,
			bold("giftprobe "+version),
			bold("EXAMPLES:")),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return cli.initialize(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			return cli.close(cmd.Context())
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&cli.configFile, "config", "c", "", "Config file (default ./giftprobe.yaml or $HOME/giftprobe.yaml)")
	flags.BoolVar(&cli.noColor, "no-color", false, "Disable coloured output")
	flags.StringP("output", "o", "out", "Output directory")
	flags.String("policy", "", "Category policy YAML (default built-in lists)")
	flags.String("log-level", "info", "Log level: debug, info, warn, error")
	flags.String("log-format", "text", "Log format: text or json")
	flags.Float64("threshold", 0.67, "Good-result fraction a test case must reach")
	flags.Int("max-rounds", 5, "Maximum search rounds per test case")
	flags.Int("top-k", 3, "Results scored per round")
	flags.Int("concurrency", 4, "Test cases refined in parallel")
	flags.String("llm-provider", "", "LLM provider for fixes: openai, openrouter, deepseek, mock (default heuristic only)")
	flags.String("llm-model", "gpt-4o-mini", "LLM model name")
	flags.String("url-base", config.DefaultProductURL, "Base URL for relative product links")
	for _, b := range persistentBindings {
		_ = cli.v.BindPFlag(b.key, flags.Lookup(b.flag))
	}

	rootCmd.AddCommand(newRunCommand(cli))
	rootCmd.AddCommand(newURLsCommand(cli))
	rootCmd.AddCommand(newPromptsCommand(cli))
	rootCmd.AddCommand(newFixesCommand(cli))
	rootCmd.AddCommand(newApplyFixesCommand(cli))
	rootCmd.AddCommand(newServeCommand(cli))
	rootCmd.AddCommand(newVersionCommand())

	return rootCmd
}

// isTTY reports whether stdout is a terminal.
func isTTY() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

func (cli *CLI) initialize(cmd *cobra.Command) error {
	if cli.noColor || !isTTY() {
		color.NoColor = true
	}
	if cmd.Name() == "version" {
		return nil
	}
	var bindErr error
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		for _, key := range f.Annotations[configKeyAnnotation] {
			if err := cli.v.BindPFlag(key, f); err != nil && bindErr == nil {
				bindErr = err
			}
		}
	})
	if bindErr != nil {
		return bindErr
	}
	cfg, err := config.Load(cli.v, cli.configFile)
	if err != nil {
		return err
	}
	cli.cfg = cfg
	logging.Configure(cfg.Log.Level, cfg.Log.Format, cmd.ErrOrStderr())

	shutdown, err := observability.InitTracing(cmd.Context(), cfg.Tracing)
	if err != nil {
		return err
	}
	cli.shutdown = shutdown
	return nil
}

// close flushes buffered spans. The command context may already be
// cancelled by a signal, so the flush gets its own deadline.
func (cli *CLI) close(ctx context.Context) error {
	if cli.shutdown == nil {
		return nil
	}
	flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	return cli.shutdown(flushCtx)
}

// configKeyAnnotation marks a subcommand flag with the config key it sets.
// Several subcommands share keys, so binding waits until the executing
// command is known.
const configKeyAnnotation = "giftprobe_config_key"

func (cli *CLI) bindLocal(cmd *cobra.Command, key, flag string) {
	_ = cmd.Flags().SetAnnotation(flag, configKeyAnnotation, []string{key})
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the giftprobe version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "giftprobe %s\n", version)
		},
	}
}
