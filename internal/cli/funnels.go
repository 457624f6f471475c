package cli

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/seuros/pathflow/internal/database"
	"github.com/seuros/pathflow/internal/store"
)

var funnelsCmd = &cobra.Command{
	Use:   "funnels",
	Short: "Inspect saved funnels",
	Run: func(cmd *cobra.Command, args []string) {
		_ = cmd.Help()
	},
}

var funnelsFormat string

var funnelsListCmd = &cobra.Command{
	Use:   "list <website-id> [--format table|json|yaml]",
	Short: "List the funnels saved for a website",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runFunnelsList(args[0], funnelsFormat)
	},
}

func runFunnelsList(rawWebsiteID, format string) error {
	websiteID, err := uuid.Parse(rawWebsiteID)
	if err != nil {
		return fmt.Errorf("invalid website id: %w", err)
	}
	format, err = resolveFormat(format)
	if err != nil {
		return err
	}

	closeDB, err := ensureDatabase()
	if err != nil {
		return err
	}
	defer closeDB()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	funnels, err := store.NewPostgres(database.DB).ListFunnels(ctx, websiteID)
	if err != nil {
		return err
	}
	return outputFunnels(funnels, format)
}

func outputFunnels(funnels []store.SavedFunnel, format string) error {
	switch format {
	case "json":
		return printJSON(funnels)
	case "yaml":
		return printYAML(funnels)
	}

	if len(funnels) == 0 {
		fmt.Println("No funnels found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	defer func() { _ = w.Flush() }()

	_, _ = fmt.Fprintln(w, "NAME\tSTEPS\tWINDOW\tCREATED AT")
	for _, f := range funnels {
		values := make([]string, len(f.Steps))
		for i, s := range f.Steps {
			values[i] = s.Value
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%dm\t%s\n",
			f.Name, strings.Join(values, " > "), f.Window, f.CreatedAt.Format(time.RFC3339))
	}
	return nil
}

func init() {
	funnelsListCmd.Flags().StringVar(&funnelsFormat, "format", "", "Output format: table, json, yaml")
	funnelsCmd.AddCommand(funnelsListCmd)
}
