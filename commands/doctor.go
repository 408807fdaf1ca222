package commands

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fenilmodi00/nuri-bid-crawler/config"
	"github.com/fenilmodi00/nuri-bid-crawler/database"
	"github.com/fenilmodi00/nuri-bid-crawler/services"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(doctorCmd)
}

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Checks the database, schema and portal reachability.",
	RunE: func(cmd *cobra.Command, args []string) error {
		checks := runDoctor(cmd.Context(), cfg, services.NewPreflight(cfg.Timing.NavigationTimeout, nil))
		if verdict := printDoctor(cmd.OutOrStdout(), checks); verdict == "UNHEALTHY" {
			return fmt.Errorf("system unhealthy")
		}
		return nil
	},
}

type doctorCheck struct {
	Name   string
	OK     bool
	Detail string
}

type portalChecker interface {
	Check(ctx context.Context, url string) (*services.PreflightResult, error)
}

func runDoctor(ctx context.Context, cfg *config.Config, portal portalChecker) []doctorCheck {
	checks := make([]doctorCheck, 0, 4)

	db, err := database.Open(cfg.DatabaseURL, cfg.Database)
	if err == nil {
		defer db.Close()
		err = db.HealthCheck(ctx)
	}
	if err != nil {
		checks = append(checks, doctorCheck{Name: "Database", Detail: err.Error()})
		checks = append(checks, doctorCheck{Name: "Schema", Detail: "skipped"})
		checks = append(checks, doctorCheck{Name: "Stored bids", Detail: "skipped"})
	} else {
		checks = append(checks, doctorCheck{Name: "Database", OK: true, Detail: string(db.Dialect)})
		checks = append(checks, schemaCheck(ctx, db))
		checks = append(checks, countCheck(ctx, db, cfg))
	}

	if result, err := portal.Check(ctx, cfg.TargetURL); err != nil {
		checks = append(checks, doctorCheck{Name: "Portal", Detail: err.Error()})
	} else {
		checks = append(checks, doctorCheck{Name: "Portal", OK: true,
			Detail: fmt.Sprintf("%d %q in %s", result.StatusCode, result.Title, result.Duration.Round(time.Millisecond))})
	}
	return checks
}

func schemaCheck(ctx context.Context, db *database.DB) doctorCheck {
	validator := database.NewSchemaValidator(db)
	result, err := validator.ValidateBidsTable(ctx)
	if err != nil {
		return doctorCheck{Name: "Schema", Detail: err.Error()}
	}
	report := strings.TrimSpace(validator.GenerateSchemaReport(result))
	return doctorCheck{Name: "Schema", OK: result.IsValid, Detail: strings.ReplaceAll(report, "\n", ";")}
}

func countCheck(ctx context.Context, db *database.DB, cfg *config.Config) doctorCheck {
	n, err := database.NewBidStore(db, cfg.Location(), nil).Count(ctx)
	if err != nil {
		return doctorCheck{Name: "Stored bids", Detail: err.Error()}
	}
	return doctorCheck{Name: "Stored bids", OK: true, Detail: fmt.Sprintf("%d records", n)}
}

// printDoctor writes one line per check and returns HEALTHY, DEGRADED or UNHEALTHY
func printDoctor(w io.Writer, checks []doctorCheck) string {
	fmt.Fprintf(w, "Nuri crawler health check - %s\n", time.Now().Format("2006-01-02 15:04:05"))
	fmt.Fprintln(w, strings.Repeat("=", 50))

	passed := 0
	for _, c := range checks {
		if c.OK {
			passed++
		}
		fmt.Fprintf(w, "%-12s %s\n", c.Name+":", check(c.OK, "("+c.Detail+")"))
	}
	fmt.Fprintln(w, strings.Repeat("-", 50))

	verdict := doctorVerdict(passed, len(checks))
	fmt.Fprintf(w, "SYSTEM %s: %d/%d checks passed\n", verdict, passed, len(checks))
	return verdict
}

func doctorVerdict(passed, total int) string {
	switch {
	case passed == total:
		return "HEALTHY"
	case passed >= total/2:
		return "DEGRADED"
	default:
		return "UNHEALTHY"
	}
}
