package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/hyperengineering/vision/internal/config"
	"github.com/hyperengineering/vision/internal/dashboard"
	"github.com/hyperengineering/vision/internal/onboarding"
	"github.com/hyperengineering/vision/internal/types"
)

var (
	planJSONOutput  bool
	planUserID      string
	planContextFile string
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Generate and inspect strategic plans",
	Long:  "Generate a plan from a business context file and inspect a user's active plan without running the server.",
}

var planGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a plan from an onboarding context YAML file",
	Long: `Generate a 52-week plan from an onboarding context YAML file.
With --user the plan replaces that user's active plan; otherwise it is only printed.`,
	Args: cobra.NoArgs,
	RunE: runPlanGenerate,
}

var planShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show a user's active plan and progress",
	Args:  cobra.NoArgs,
	RunE:  runPlanShow,
}

func init() {
	planCmd.PersistentFlags().BoolVar(&planJSONOutput, "json", false, "Output in JSON format")
	planCmd.PersistentFlags().StringVar(&planUserID, "user", "", "User id (UUID)")

	planGenerateCmd.Flags().StringVar(&planContextFile, "context", "", "Onboarding context YAML file")
	planGenerateCmd.MarkFlagRequired("context")

	planCmd.AddCommand(planGenerateCmd)
	planCmd.AddCommand(planShowCmd)
}

// cliLogger logs to stderr so command output stays clean.
func cliLogger(cfg *config.Config, stderr io.Writer) *slog.Logger {
	return newLogger(stderr, config.LogConfig{Level: cfg.Log.Level, Format: "text"})
}

func readContextFile(path string) (types.OnboardingContext, error) {
	var c types.OnboardingContext
	data, err := os.ReadFile(path)
	if err != nil {
		return c, fmt.Errorf("read context file: %w", err)
	}
	if err := yaml.Unmarshal(data, &c); err != nil {
		return c, fmt.Errorf("parse context file: %w", err)
	}
	if c.MainBottleneck == nil {
		c.MainBottleneck = types.BottleneckList{}
	}
	return c, nil
}

func parseUserID(raw string) (string, error) {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", fmt.Errorf("invalid --user %q: must be a UUID", raw)
	}
	return id.String(), nil
}

func runPlanGenerate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	pc, err := readContextFile(planContextFile)
	if err != nil {
		return err
	}
	if err := onboarding.CheckAll(pc); err != nil {
		return fmt.Errorf("context file: %w", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	svc, err := buildServices(cfg, cliLogger(cfg, cmd.ErrOrStderr()))
	if err != nil {
		return err
	}
	defer svc.store.Close()

	if planUserID == "" {
		plan, err := svc.generator.Generate(ctx, pc.Goal, &pc)
		if err != nil {
			return err
		}
		if planJSONOutput {
			return printJSON(cmd.OutOrStdout(), plan)
		}
		printStrategicPlan(cmd.OutOrStdout(), *plan)
		return nil
	}

	userID, err := parseUserID(planUserID)
	if err != nil {
		return err
	}
	if _, err := svc.store.EnsureProfile(ctx, types.Session{UserID: userID}); err != nil {
		return fmt.Errorf("ensure profile: %w", err)
	}
	result, err := svc.onboarding.SubmitContext(ctx, userID, pc)
	if err != nil {
		return err
	}
	if planJSONOutput {
		return printJSON(cmd.OutOrStdout(), result.Plan)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Plan %s is now active for %s.\n", result.Plan.Plan.ID, userID)
	printStrategicPlan(cmd.OutOrStdout(), result.Plan.StrategicPlan())
	return nil
}

func runPlanShow(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	userID, err := parseUserID(planUserID)
	if err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	svc, err := buildServices(cfg, cliLogger(cfg, cmd.ErrOrStderr()))
	if err != nil {
		return err
	}
	defer svc.store.Close()

	p, err := svc.store.GetActivePlan(ctx, userID)
	if err != nil {
		return fmt.Errorf("load plan: %w", err)
	}

	completed := make(map[int]bool)
	for _, t := range p.Tactics {
		if t.Status == types.TacticCompleted && t.WeekNumber >= 1 && t.WeekNumber <= types.WeeksPerPlan {
			completed[t.WeekNumber-1] = true
		}
	}
	view := dashboard.Project(p, completed, dashboard.Policy{UnlockThreshold: cfg.Plan.UnlockThreshold}, time.Now())

	if planJSONOutput {
		return printJSON(cmd.OutOrStdout(), view)
	}
	printView(cmd.OutOrStdout(), view)
	return nil
}

func printStrategicPlan(w io.Writer, p types.StrategicPlan) {
	fmt.Fprintf(w, "Meta: %s\n\n", p.Goal)
	for q := 1; q <= types.QuartersPerPlan; q++ {
		fmt.Fprintf(w, "Q%d: %s\n", q, strings.Join(p.Quarters.At(q-1), "; "))
	}
	fmt.Fprintln(w)

	tw := newTabWriter(w)
	fmt.Fprintln(tw, "WEEK\tTITLE")
	for i, t := range p.WeeklyTactics {
		fmt.Fprintf(tw, "%d\t%s\n", i+1, t.Title)
	}
	tw.Flush()
}

func printView(w io.Writer, v dashboard.View) {
	fmt.Fprintf(w, "Meta: %s\n", v.Goal)
	fmt.Fprintf(w, "Criado: %s\n", humanize.Time(v.CreatedAt))
	fmt.Fprintf(w, "Progresso: %d%% (%d/%d semanas)\n\n", v.Progress, v.CompletedCount, v.TotalTactics)

	tw := newTabWriter(w)
	fmt.Fprintln(tw, "QUARTER\tSTATUS\tWEEKS\tDONE\tFOCUS")
	for _, q := range v.Quarters {
		fmt.Fprintf(tw, "Q%d\t%s\t%d-%d\t%d%%\t%s\n",
			q.Number, q.Status, q.FirstWeek, q.LastWeek, q.Progress, q.Title)
	}
	tw.Flush()
}

// printJSON marshals v to JSON and writes to the given writer.
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// newTabWriter returns a configured tabwriter for aligned columns.
func newTabWriter(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
}
