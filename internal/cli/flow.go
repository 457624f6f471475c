package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"

	"github.com/seuros/pathflow/internal/database"
	"github.com/seuros/pathflow/internal/httpx"
	"github.com/seuros/pathflow/internal/journey"
	"github.com/seuros/pathflow/internal/store"
)

// Flow command flags
var (
	flowDays      int
	flowSteps     int
	flowStartStep string
	flowEndStep   string
	flowSelected  string
	flowActive    string
	flowFormat    string
)

var flowCmd = &cobra.Command{
	Use:   "flow <website-id> [--days 7] [--steps 5] [--format table|json|yaml]",
	Short: "Print the visitor journey of a website",
	Long: `Print the column-per-step journey of a website.

Each column lists the pages and events visitors reached at that step, with
the share of the previous column that remained.

Supported formats:
  table  - Human-readable table (default on a terminal)
  json   - Derived flow as JSON (default when piped)
  yaml   - Derived flow as YAML

Examples:
  pathflow flow 6f1c2d9e-3b7a-4c1e-9d2f-0a1b2c3d4e5f
  pathflow flow <id> --steps 4 --selected 1:/pricing
  pathflow flow <id> --start-step / --format json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runFlow(args[0])
	},
}

func runFlow(rawWebsiteID string) error {
	websiteID, err := uuid.Parse(rawWebsiteID)
	if err != nil {
		return fmt.Errorf("invalid website id: %w", err)
	}

	format, err := resolveFormat(flowFormat)
	if err != nil {
		return err
	}

	var sel journey.Selection
	if flowSelected != "" {
		ref, err := httpx.ParseNodeRef(flowSelected)
		if err != nil {
			return err
		}
		sel = sel.Click(ref)
	}

	end := time.Now().UTC()
	q := store.PathQuery{
		WebsiteID: websiteID,
		StartAt:   end.AddDate(0, 0, -flowDays),
		EndAt:     end,
		Steps:     flowSteps,
		StartStep: flowStartStep,
		EndStep:   flowEndStep,
	}
	if err := q.Validate(); err != nil {
		return err
	}

	closeDB, err := ensureDatabase()
	if err != nil {
		return err
	}
	defer closeDB()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	records, err := store.NewPostgres(database.DB).Paths(ctx, q)
	if err != nil {
		return err
	}

	if flowActive != "" {
		ref, err := httpx.ParseNodeRef(flowActive)
		if err != nil {
			return err
		}
		sel = sel.Hover(records, ref)
	}

	return outputFlow(journey.Derive(records, q.Steps, sel), format)
}

// ensureDatabase connects when no pool is open and returns the matching
// cleanup.
func ensureDatabase() (func(), error) {
	if database.DB != nil {
		return func() {}, nil
	}
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable is required")
	}
	if err := database.ConnectURL(cfg.DatabaseURL); err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}
	return func() {
		_ = database.Close()
		database.DB = nil
	}, nil
}

var stdoutIsTerminal = func() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

func resolveFormat(format string) (string, error) {
	switch format {
	case "":
		if stdoutIsTerminal() {
			return "table", nil
		}
		return "json", nil
	case "table", "json", "yaml":
		return format, nil
	default:
		return "", fmt.Errorf("invalid format: %s (use table, json, or yaml)", format)
	}
}

func outputFlow(flow *journey.Flow, format string) error {
	switch format {
	case "json":
		return printJSON(flow)
	case "yaml":
		return printYAML(flowReportOf(flow))
	default:
		return outputFlowTable(flow)
	}
}

// flowReport is the YAML shape of a flow: only what a reader needs.
type flowReport struct {
	State   string         `yaml:"state"`
	Columns []columnReport `yaml:"columns"`
}

type columnReport struct {
	Step     int          `yaml:"step"`
	Visitors int64        `yaml:"visitors"`
	DropOff  int          `yaml:"drop_off_percent"`
	Nodes    []nodeReport `yaml:"nodes"`
}

type nodeReport struct {
	Name      string `yaml:"name"`
	Visitors  int64  `yaml:"visitors"`
	Remaining *int   `yaml:"remaining_percent,omitempty"`
	Selected  bool   `yaml:"selected,omitempty"`
}

func flowReportOf(flow *journey.Flow) flowReport {
	report := flowReport{State: flow.State, Columns: make([]columnReport, len(flow.Columns))}
	for i, col := range flow.Columns {
		cr := columnReport{
			Step:     i + 1,
			Visitors: col.VisitorCount,
			DropOff:  journey.RoundPercent(col.DropOff),
			Nodes:    make([]nodeReport, len(col.Nodes)),
		}
		for j, n := range col.Nodes {
			nr := nodeReport{Name: n.Name, Visitors: n.DisplayCount, Selected: n.Selected}
			if n.HasConversion {
				remaining := n.Remaining
				nr.Remaining = &remaining
			}
			cr.Nodes[j] = nr
		}
		report.Columns[i] = cr
	}
	return report
}

func outputFlowTable(flow *journey.Flow) error {
	if len(flow.Columns) == 0 || len(flow.Columns[0].Nodes) == 0 {
		fmt.Println("No journeys found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	defer func() { _ = w.Flush() }()

	for i, col := range flow.Columns {
		if i > 0 {
			_, _ = fmt.Fprintln(w)
		}
		_, _ = fmt.Fprintf(w, "STEP %d\t%d visitors\t%s\n", i+1, col.VisitorCount, dropOffLabel(i, col.DropOff))
		for _, n := range col.Nodes {
			marker := " "
			if n.Selected {
				marker = "*"
			}
			remaining := ""
			if n.HasConversion {
				remaining = fmt.Sprintf("%d%% remaining", n.Remaining)
			}
			_, _ = fmt.Fprintf(w, "%s %s\t%d\t%s\n", marker, n.Name, n.DisplayCount, remaining)
		}
	}
	return nil
}

func dropOffLabel(column int, dropOff float64) string {
	if column == 0 {
		return ""
	}
	return fmt.Sprintf("%d%%", journey.RoundPercent(dropOff))
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

func printYAML(v any) error {
	data, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal YAML: %w", err)
	}
	fmt.Print(string(data))
	return nil
}

func init() {
	flowCmd.Flags().IntVar(&flowDays, "days", 7, "Number of days to look back")
	flowCmd.Flags().IntVar(&flowSteps, "steps", 5, "Number of steps (2-8)")
	flowCmd.Flags().StringVar(&flowStartStep, "start-step", "", "Only paths starting with this page or event")
	flowCmd.Flags().StringVar(&flowEndStep, "end-step", "", "Only paths reaching this page or event")
	flowCmd.Flags().StringVar(&flowSelected, "selected", "", "Drill into a node, as column:name")
	flowCmd.Flags().StringVar(&flowActive, "active", "", "Highlight a node on the selected paths, as column:name")
	flowCmd.Flags().StringVar(&flowFormat, "format", "", "Output format: table, json, yaml")
}
