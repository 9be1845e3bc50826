package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"giftprobe/internal/domain/catalog"
	"giftprobe/internal/fixgen"
	"giftprobe/internal/logging"
	"giftprobe/internal/merge"
	"giftprobe/internal/report"
	"giftprobe/internal/server"
)

func newRunCommand(cli *CLI) *cobra.Command {
	var input, humanScores string
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Score every test case and refine the ones that fall short",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cli.cfg)
			if err != nil {
				return err
			}
			cases, err := a.loadCases(input)
			if err != nil {
				return err
			}
			human, err := loadHuman(humanScores, a.cfg.Refine.TopK)
			if err != nil {
				return err
			}
			chain, err := a.chain()
			if err != nil {
				return err
			}

			run := a.loop(chain, a.cfg.RefineOptions()).RunBatch(cmd.Context(), cases)
			run = merge.MergeAll(run, human)
			return finish(cmd, a, run)
		},
	}
	cmd.Flags().StringVarP(&input, "input", "i", "", "Test case CSV")
	cmd.Flags().StringVar(&humanScores, "human-scores", "", "Human scoring CSV to merge (human scores override autocheck)")
	cmd.Flags().Bool("grouped", false, "Group urls.txt per test case")
	cli.bindLocal(cmd, "grouped_urls", "grouped")
	return cmd
}

func newURLsCommand(cli *CLI) *cobra.Command {
	var input, from string
	cmd := &cobra.Command{
		Use:   "urls",
		Short: "Emit only the product URLs for each test case",
		Long: `Runs the original query of every test case once, without refinement, and
writes the distinct product URLs to urls.txt. With --from, URLs are taken from
a previous run.json instead.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cli.cfg)
			if err != nil {
				return err
			}
			var run catalog.Run
			if from != "" {
				if run, err = report.LoadRun(from); err != nil {
					return err
				}
			} else {
				cases, err := a.loadCases(input)
				if err != nil {
					return err
				}
				opts := a.cfg.RefineOptions()
				opts.MaxRounds = 1
				run = a.loop(nil, opts).RunBatch(cmd.Context(), cases)
			}
			path, err := a.writer().WriteURLsFile(run)
			if err != nil {
				return err
			}
			if err := report.WriteURLs(cmd.OutOrStdout(), run, a.cfg.GroupedURLs); err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "%s %s\n", green("wrote"), path)
			return nil
		},
	}
	cmd.Flags().StringVarP(&input, "input", "i", "", "Test case CSV")
	cmd.Flags().StringVar(&from, "from", "", "Read URLs from an existing run.json")
	cmd.Flags().Bool("grouped", false, "Group URLs per test case")
	cli.bindLocal(cmd, "grouped_urls", "grouped")
	return cmd
}

func newPromptsCommand(cli *CLI) *cobra.Command {
	var input string
	cmd := &cobra.Command{
		Use:   "prompts",
		Short: "Write fix-generation prompts for failing test cases without calling a model",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cli.cfg)
			if err != nil {
				return err
			}
			cases, err := a.loadCases(input)
			if err != nil {
				return err
			}
			recorder := fixgen.NewPromptRecorder(a.promptsPath())
			opts := a.cfg.RefineOptions()
			opts.MaxRounds = 2
			run := a.loop(recorder, opts).RunBatch(cmd.Context(), cases)

			paths := recorder.Paths()
			for _, path := range paths {
				fmt.Fprintln(cmd.OutOrStdout(), path)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "%s %d prompt(s) for %d test case(s); %d already pass\n",
				green("wrote"), len(paths), len(run.Records), len(run.Records)-len(paths))
			return nil
		},
	}
	cmd.Flags().StringVarP(&input, "input", "i", "", "Test case CSV")
	return cmd
}

func newFixesCommand(cli *CLI) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fixes",
		Short: "Generate fixes from previously written prompts",
		Long: `Reads prompts/*.md from the output directory and writes one validated fix per
prompt to fixes/<id>.json. The heuristic generator is used unless an LLM
provider is configured, in which case it is the fallback.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cli.cfg)
			if err != nil {
				return err
			}
			prompts, err := fixgen.LoadPrompts(a.promptsPath())
			if err != nil {
				return err
			}
			chain, err := a.chain()
			if err != nil {
				return err
			}
			written, skipped, err := generateFixes(cmd.Context(), a, chain, prompts)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "%s %d fix(es) to %s, %s\n",
				green("wrote"), written, a.fixesPath(), yellow(fmt.Sprintf("%d without a valid fix", skipped)))
			return nil
		},
	}
	return cmd
}

func generateFixes(ctx context.Context, a *app, chain *fixgen.Chain, prompts []fixgen.SavedPrompt) (written, skipped int, err error) {
	logger := logging.NewComponentLogger("fixes")
	for _, p := range prompts {
		if err := ctx.Err(); err != nil {
			return written, skipped, err
		}
		req, err := p.Payload.Request(p.ID, a.policy.Categories, a.policy.Anchors)
		if err != nil {
			return written, skipped, fmt.Errorf("prompt %s: %w", p.ID, err)
		}
		proposal, err := chain.Resolve(ctx, req)
		if err != nil {
			logger.Warn("[%s] no fix: %v", p.ID, err)
			skipped++
			continue
		}
		if _, err := fixgen.SaveFix(a.fixesPath(), p.ID, proposal.Fix); err != nil {
			return written, skipped, err
		}
		written++
	}
	return written, skipped, nil
}

func newApplyFixesCommand(cli *CLI) *cobra.Command {
	var input, humanScores string
	cmd := &cobra.Command{
		Use:   "apply-fixes",
		Short: "Re-score test cases with previously saved fixes",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cli.cfg)
			if err != nil {
				return err
			}
			cases, err := a.loadCases(input)
			if err != nil {
				return err
			}
			fixes, err := fixgen.LoadFixes(a.fixesPath())
			if err != nil {
				return err
			}
			if len(fixes) == 0 {
				a.logger.Warn("no saved fixes under %s; every case gets one round", a.fixesPath())
			}
			human, err := loadHuman(humanScores, a.cfg.Refine.TopK)
			if err != nil {
				return err
			}

			run := a.loop(nil, a.cfg.RefineOptions()).ApplyFixes(cmd.Context(), cases, fixes)
			run = merge.MergeAll(run, human)
			return finish(cmd, a, run)
		},
	}
	cmd.Flags().StringVarP(&input, "input", "i", "", "Test case CSV")
	cmd.Flags().StringVar(&humanScores, "human-scores", "", "Human scoring CSV to merge")
	return cmd
}

func newServeCommand(cli *CLI) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve Prometheus metrics and the latest run over HTTP",
		RunE: func(cmd *cobra.Command, _ []string) error {
			srv := server.New(server.Config{
				Addr:      cli.cfg.Server.Addr,
				OutputDir: cli.cfg.OutputDir,
				Debug:     cli.cfg.Log.Level == "debug",
			}, nil, logging.NewComponentLogger("server"))
			return srv.Run(cmd.Context())
		},
	}
	cmd.Flags().String("addr", ":8088", "Listen address")
	cli.bindLocal(cmd, "server.addr", "addr")
	return cmd
}

func loadHuman(path string, topK int) (merge.HumanScores, error) {
	if path == "" {
		return merge.HumanScores{}, nil
	}
	return merge.LoadHumanScoresFile(path, merge.DefaultHumanSheet(topK))
}

// finish writes every report and prints the console summary.
func finish(cmd *cobra.Command, a *app, run catalog.Run) error {
	paths, err := a.writer().WriteAll(run)
	if err != nil {
		return err
	}
	summary := report.Summarize(run)
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, report.RenderConsole(run, summary))
	printSummary(out, summary)
	for _, path := range paths {
		fmt.Fprintf(cmd.ErrOrStderr(), "%s %s\n", gray("wrote"), path)
	}
	if err := cmd.Context().Err(); err != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), yellow("interrupted: unfinished cases are reported as cancelled"))
	}
	return nil
}

func printSummary(w io.Writer, s report.Summary) {
	rate := fmt.Sprintf("%d/%d cases pass (%.0f%%)", s.Passed, s.Tests, s.CasePassRate*100)
	if s.Passed == s.Tests {
		rate = green(rate)
	} else {
		rate = yellow(rate)
	}
	fmt.Fprintf(w, "%s  good gifts %d/%d  mean score %.3f\n", rate, s.GoodGifts, s.TotalGifts, s.MeanFinal)
	if s.Degraded > 0 {
		fmt.Fprintln(w, red(fmt.Sprintf("%d case(s) degraded by search errors", s.Degraded)))
	}
}
