package commands

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/fenilmodi00/nuri-bid-crawler/config"
	"github.com/fenilmodi00/nuri-bid-crawler/database"
	"github.com/fenilmodi00/nuri-bid-crawler/jobs"
	"github.com/fenilmodi00/nuri-bid-crawler/models"
	"github.com/fenilmodi00/nuri-bid-crawler/services"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/sirupsen/logrus"
)

// newCrawlJob wires the production crawler: headless Chrome against DATABASE_URL
func newCrawlJob(cfg *config.Config) *jobs.CrawlJob {
	logger := logrus.NewEntry(logrus.StandardLogger())
	var preflight *services.Preflight
	if cfg.PreflightEnabled {
		preflight = services.NewPreflight(cfg.Timing.NavigationTimeout, logger)
	}
	crawler := services.NewBidCrawler(cfg,
		services.ChromePageOpener(cfg),
		services.DatabaseStoreOpener(cfg),
		preflight,
		logger)
	return jobs.NewCrawlJob(crawler)
}

// openStore opens and migrates the database for read-side commands
func openStore(ctx context.Context, cfg *config.Config) (*database.DB, *database.BidStore, error) {
	db, err := database.Open(cfg.DatabaseURL, cfg.Database)
	if err != nil {
		return nil, nil, err
	}
	if err := db.Migrate(ctx); err != nil {
		db.Close()
		return nil, nil, err
	}
	return db, database.NewBidStore(db, cfg.Location(), nil), nil
}

func printReport(report *models.RunReport) {
	if report == nil {
		return
	}
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Run", "Pages", "Rows", "Collected", "Deleted", "Patched", "Skipped", "Row errors", "Purged", "Duration"})
	t.AppendRow(table.Row{
		report.RunID, report.Pages, report.Rows, report.Collected, report.Deleted,
		report.Patched, report.Skipped, report.RowErrors, report.Purged, report.Duration.Round(time.Millisecond),
	})
	if report.Error != "" {
		t.AppendFooter(table.Row{"error", report.Error})
	}
	t.SetStyle(table.StyleRounded)
	t.Render()
}

func check(ok bool, detail string) string {
	if ok {
		return fmt.Sprintf("OK %s", detail)
	}
	return fmt.Sprintf("FAILED %s", detail)
}
