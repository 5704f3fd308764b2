package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"project-health-backend/internal/config"
	"project-health-backend/internal/projecthealth"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Evaluate a project snapshot without a database",
	Long: "Evaluate a project snapshot from flags or from a YAML/JSON file. " +
		"Flags given explicitly override values read from --file.",
	RunE: runHealth,
}

var (
	healthFile      string
	healthTotal     int
	healthCompleted int
	healthStart     string
	healthEnd       string
	healthRisks     []string
	healthDate      string
	healthFormat    string
)

func init() {
	f := healthCmd.Flags()
	f.StringVar(&healthFile, "file", "", "YAML or JSON snapshot file")
	f.IntVar(&healthTotal, "total", 0, "Total task count")
	f.IntVar(&healthCompleted, "completed", 0, "Completed task count")
	f.StringVar(&healthStart, "start", "", "Start date YYYY-MM-DD (default from config)")
	f.StringVar(&healthEnd, "end", "", "End date YYYY-MM-DD (default from config)")
	f.StringSliceVar(&healthRisks, "risk", nil, "Risk factor (repeatable)")
	f.StringVar(&healthDate, "date", "", "Evaluate as of YYYY-MM-DD (default today)")
	f.StringVar(&healthFormat, "format", "text", "Output format: text, json or markdown")
	rootCmd.AddCommand(healthCmd)
}

// snapshotFile is the on-disk snapshot. JSON is read by the same decoder.
type snapshotFile struct {
	TotalTaskCount     any      `yaml:"totalTaskCount"`
	CompletedTaskCount any      `yaml:"completedTaskCount"`
	StartDate          string   `yaml:"startDate"`
	EndDate            string   `yaml:"endDate"`
	RiskFactors        []string `yaml:"riskFactors"`
}

// healthInput is a fully resolved evaluation request.
type healthInput struct {
	Total       int
	Completed   int
	StartDate   string
	EndDate     string
	RiskFactors []string
}

func runHealth(cmd *cobra.Command, args []string) error {
	switch healthFormat {
	case "text", "json", "markdown":
	default:
		return fmt.Errorf("--format must be text, json or markdown, got %q", healthFormat)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	in := healthInput{
		StartDate: cfg.Project.StartDate,
		EndDate:   cfg.Project.EndDate,
	}
	if healthFile != "" {
		data, err := os.ReadFile(healthFile)
		if err != nil {
			return fmt.Errorf("read snapshot: %w", err)
		}
		if in, err = parseSnapshot(data, in); err != nil {
			return err
		}
	}

	flags := cmd.Flags()
	if flags.Changed("total") {
		in.Total = healthTotal
	}
	if flags.Changed("completed") {
		in.Completed = healthCompleted
	}
	if flags.Changed("start") {
		in.StartDate = healthStart
	}
	if flags.Changed("end") {
		in.EndDate = healthEnd
	}
	if flags.Changed("risk") {
		in.RiskFactors = healthRisks
	}

	now := time.Now()
	if healthDate != "" {
		if now, err = projecthealth.ParseDate("date", healthDate); err != nil {
			return err
		}
	}

	tracker, err := projecthealth.New(in.Total, in.Completed, in.StartDate, in.EndDate, in.RiskFactors)
	if err != nil {
		return err
	}
	report := tracker.Evaluate(now)

	switch healthFormat {
	case "json":
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	case "markdown":
		fmt.Fprintln(cmd.OutOrStdout(), renderMarkdown(healthMarkdown(in, now, report)))
	default:
		fmt.Fprint(cmd.OutOrStdout(), healthText(in, now, report))
	}
	return nil
}

// parseSnapshot overlays the values present in data onto base. Counts may be
// integers or integer strings.
func parseSnapshot(data []byte, base healthInput) (healthInput, error) {
	var f snapshotFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return healthInput{}, fmt.Errorf("parse snapshot: %w", err)
	}

	in := base
	if f.TotalTaskCount != nil {
		n, err := projecthealth.CoerceCount("totalTaskCount", f.TotalTaskCount)
		if err != nil {
			return healthInput{}, err
		}
		in.Total = n
	}
	if f.CompletedTaskCount != nil {
		n, err := projecthealth.CoerceCount("completedTaskCount", f.CompletedTaskCount)
		if err != nil {
			return healthInput{}, err
		}
		in.Completed = n
	}
	if f.StartDate != "" {
		in.StartDate = f.StartDate
	}
	if f.EndDate != "" {
		in.EndDate = f.EndDate
	}
	if f.RiskFactors != nil {
		in.RiskFactors = f.RiskFactors
	}
	return in, nil
}

func healthText(in healthInput, now time.Time, r projecthealth.Report) string {
	var b strings.Builder
	b.WriteString(styleTitle.Render("Project health") + "\n")
	row := func(label, value string) {
		b.WriteString(styleLabel.Render(label) + value + "\n")
	}
	row("Period", fmt.Sprintf("%s → %s", in.StartDate, in.EndDate))
	row("As of", now.Format(projecthealth.DateLayout))
	row("Tasks", fmt.Sprintf("%d/%d", in.Completed, in.Total))
	row("Progress", fmt.Sprintf("%.2f%%", r.ProgressPercentage))
	row("Completion rate", fmt.Sprintf("%.4f tasks/day", r.TaskCompletionRate))
	row("Days remaining", fmt.Sprintf("%d", r.DaysRemaining))
	row("Risk", fmt.Sprintf("%s %d factor(s)", renderRisk(r.RiskLevel), len(in.RiskFactors)))
	for _, rf := range in.RiskFactors {
		b.WriteString(strings.Repeat(" ", 18) + "- " + rf + "\n")
	}
	return b.String()
}

func healthMarkdown(in healthInput, now time.Time, r projecthealth.Report) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Project health as of %s\n\n", now.Format(projecthealth.DateLayout))
	b.WriteString("| Indicator | Value |\n|---|---|\n")
	fmt.Fprintf(&b, "| Period | %s to %s |\n", in.StartDate, in.EndDate)
	fmt.Fprintf(&b, "| Tasks | %d of %d completed |\n", in.Completed, in.Total)
	fmt.Fprintf(&b, "| Progress | %.2f%% |\n", r.ProgressPercentage)
	fmt.Fprintf(&b, "| Completion rate | %.4f tasks/day |\n", r.TaskCompletionRate)
	fmt.Fprintf(&b, "| Days remaining | %d |\n", r.DaysRemaining)
	fmt.Fprintf(&b, "| Risk level | **%s** |\n", r.RiskLevel)
	if len(in.RiskFactors) > 0 {
		b.WriteString("\n## Risk factors\n\n")
		for _, rf := range in.RiskFactors {
			fmt.Fprintf(&b, "- %s\n", rf)
		}
	}
	return b.String()
}
