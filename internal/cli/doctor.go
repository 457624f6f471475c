package cli

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/spf13/cobra"

	"github.com/seuros/pathflow/internal/config"
	"github.com/seuros/pathflow/internal/database"
	"github.com/seuros/pathflow/internal/pathcache"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Run health checks on a Pathflow installation",
	Long: `Run health checks on a Pathflow installation.

Checks performed:
  - Database connection
  - PostgreSQL version ≥13
  - Database migrations completed
  - Required tables exist
  - Redis reachable (when REDIS_URL is set)

Example:
  pathflow doctor
  pathflow doctor --json`,
	RunE: runDoctor,
}

// expectedMigrationVersion is the newest migration under internal/database/migrations.
const expectedMigrationVersion uint = 2

var requiredTables = []string{"website_event", "funnel"}

type CheckResult struct {
	Name       string `json:"name"`
	Pass       bool   `json:"pass"`
	Error      string `json:"error,omitempty"`
	Suggestion string `json:"suggestion,omitempty"`
	Details    string `json:"details,omitempty"`
}

var errChecksFailed = errors.New("health checks failed")

func checkDatabaseConnection(db *sql.DB) CheckResult {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return CheckResult{
			Name:       "Database Connection",
			Pass:       false,
			Error:      err.Error(),
			Suggestion: "Verify DATABASE_URL and ensure PostgreSQL is running",
		}
	}
	return CheckResult{Name: "Database Connection", Pass: true}
}

func checkPostgreSQLVersion(db *sql.DB) CheckResult {
	var version string
	if err := db.QueryRow("SHOW server_version").Scan(&version); err != nil {
		return CheckResult{Name: "PostgreSQL Version", Pass: false, Error: err.Error()}
	}

	// e.g. "17.1 (Debian 17.1-1)"
	number := strings.Fields(version)[0]
	major, _ := strconv.Atoi(strings.Split(number, ".")[0])

	if major < 13 {
		return CheckResult{
			Name:       "PostgreSQL Version",
			Pass:       false,
			Error:      fmt.Sprintf("Version %s found, need ≥13", number),
			Suggestion: "Upgrade PostgreSQL to version 13 or higher",
		}
	}
	return CheckResult{Name: "PostgreSQL Version", Pass: true, Details: number}
}

var migrationVersion = database.MigrationVersion

func checkMigrations(cfg *config.Config) CheckResult {
	version, dirty, err := migrationVersion(cfg.DatabaseURL)
	if err != nil {
		return CheckResult{
			Name:       "Database Migrations",
			Pass:       false,
			Error:      err.Error(),
			Suggestion: "Start the server once to apply migrations",
		}
	}
	if dirty {
		return CheckResult{
			Name:       "Database Migrations",
			Pass:       false,
			Error:      "Migration state is dirty",
			Suggestion: "Fix dirty migration state, may need manual intervention",
		}
	}
	if version != expectedMigrationVersion {
		return CheckResult{
			Name:       "Database Migrations",
			Pass:       false,
			Error:      fmt.Sprintf("Migration version %d, expected %d", version, expectedMigrationVersion),
			Suggestion: "Start the server once to apply migrations",
		}
	}
	return CheckResult{Name: "Database Migrations", Pass: true, Details: fmt.Sprintf("v%d", version)}
}

func checkTables(db *sql.DB) CheckResult {
	rows, err := db.Query(`
		SELECT tablename
		FROM pg_tables
		WHERE schemaname = 'public' AND tablename = ANY($1)
	`, pq.Array(requiredTables))
	if err != nil {
		return CheckResult{Name: "Required Tables", Pass: false, Error: err.Error()}
	}
	defer func() { _ = rows.Close() }()

	found := make(map[string]bool)
	for rows.Next() {
		var name string
		_ = rows.Scan(&name)
		found[name] = true
	}

	var missing []string
	for _, table := range requiredTables {
		if !found[table] {
			missing = append(missing, table)
		}
	}
	if len(missing) > 0 {
		return CheckResult{
			Name:       "Required Tables",
			Pass:       false,
			Error:      fmt.Sprintf("Missing tables: %s", strings.Join(missing, ", ")),
			Suggestion: "Start the server once to apply migrations",
		}
	}
	return CheckResult{
		Name:    "Required Tables",
		Pass:    true,
		Details: fmt.Sprintf("%d/%d tables found", len(requiredTables), len(requiredTables)),
	}
}

func checkRedis(url string) CheckResult {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	rdb, err := pathcache.Connect(ctx, url)
	if err != nil {
		return CheckResult{
			Name:       "Redis",
			Pass:       false,
			Error:      err.Error(),
			Suggestion: "Verify REDIS_URL or unset it to disable the path cache",
		}
	}
	_ = rdb.Close()
	return CheckResult{Name: "Redis", Pass: true}
}

func runDoctor(cmd *cobra.Command, args []string) error {
	jsonOutput, _ := cmd.Flags().GetBool("json")

	cfg, err := loadConfig()
	if err != nil {
		fmt.Printf("✗ Configuration Error: %v\n", err)
		return err
	}

	results := doctorChecks(cfg, func() (*sql.DB, error) { return sql.Open("pgx", cfg.DatabaseURL) })

	if jsonOutput {
		outputDoctorJSON(results)
	} else {
		outputDoctorHuman(results)
	}

	for _, r := range results {
		if !r.Pass {
			return errChecksFailed
		}
	}
	return nil
}

func doctorChecks(cfg *config.Config, open func() (*sql.DB, error)) []CheckResult {
	var results []CheckResult

	db, err := open()
	if err != nil {
		results = append(results, CheckResult{
			Name:       "Database Connection",
			Pass:       false,
			Error:      err.Error(),
			Suggestion: "Verify DATABASE_URL is valid",
		})
	} else {
		defer func() { _ = db.Close() }()

		conn := checkDatabaseConnection(db)
		results = append(results, conn)
		if conn.Pass {
			results = append(results,
				checkPostgreSQLVersion(db),
				checkMigrations(cfg),
				checkTables(db),
			)
		}
	}

	if cfg.RedisURL != "" {
		results = append(results, checkRedis(cfg.RedisURL))
	}
	return results
}

func outputDoctorHuman(results []CheckResult) {
	fmt.Println("\nPathflow Health Check")

	passed := 0
	for _, r := range results {
		icon := "✓"
		if r.Pass {
			passed++
		} else {
			icon = "✗"
		}

		fmt.Printf("%s %s", icon, r.Name)
		if r.Details != "" {
			fmt.Printf(" (%s)", r.Details)
		}
		fmt.Println()

		if !r.Pass {
			if r.Error != "" {
				fmt.Printf("  Error: %s\n", r.Error)
			}
			if r.Suggestion != "" {
				fmt.Printf("  Hint: %s\n", r.Suggestion)
			}
		}
	}

	fmt.Printf("\n%d/%d checks passed\n\n", passed, len(results))
}

func outputDoctorJSON(results []CheckResult) {
	data, _ := json.MarshalIndent(results, "", "  ")
	fmt.Println(string(data))
}

func init() {
	doctorCmd.Flags().Bool("json", false, "Output results as JSON")
	RootCmd.AddCommand(doctorCmd)
}
