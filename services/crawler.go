package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/fenilmodi00/nuri-bid-crawler/browser"
	"github.com/fenilmodi00/nuri-bid-crawler/config"
	"github.com/fenilmodi00/nuri-bid-crawler/database"
	"github.com/fenilmodi00/nuri-bid-crawler/models"
	"github.com/fenilmodi00/nuri-bid-crawler/shared"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// PageOpener starts a browser session for one run
type PageOpener func(ctx context.Context, logger *logrus.Entry) (browser.Page, error)

// StoreOpener opens the record store for one run; the closer releases it
type StoreOpener func(ctx context.Context, logger *logrus.Entry) (BidRepository, io.Closer, error)

// ChromePageOpener launches headless Chrome with the configured settings
func ChromePageOpener(cfg *config.Config) PageOpener {
	return func(ctx context.Context, logger *logrus.Entry) (browser.Page, error) {
		return browser.NewChromePage(browser.ChromeOptions{
			Headless:          cfg.Headless,
			NavigationTimeout: cfg.Timing.NavigationTimeout,
		}, logger)
	}
}

// DatabaseStoreOpener opens DATABASE_URL, applies the schema and wraps it in a BidStore
func DatabaseStoreOpener(cfg *config.Config) StoreOpener {
	return func(ctx context.Context, logger *logrus.Entry) (BidRepository, io.Closer, error) {
		db, err := database.Open(cfg.DatabaseURL, cfg.Database)
		if err != nil {
			return nil, nil, err
		}
		if err := db.Migrate(ctx); err != nil {
			db.Close()
			return nil, nil, err
		}
		return database.NewBidStore(db, cfg.Location(), logger), db, nil
	}
}

// BidCrawler runs one complete crawl of the portal per RunOnce call
type BidCrawler struct {
	cfg       *config.Config
	openPage  PageOpener
	openStore StoreOpener
	preflight *Preflight
	now       func() time.Time
	logger    *logrus.Entry
}

// NewBidCrawler wires a crawler. preflight may be nil to skip the reachability probe.
func NewBidCrawler(cfg *config.Config, openPage PageOpener, openStore StoreOpener, preflight *Preflight, logger *logrus.Entry) *BidCrawler {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &BidCrawler{
		cfg:       cfg,
		openPage:  openPage,
		openStore: openStore,
		preflight: preflight,
		now:       time.Now,
		logger:    logger.WithField("component", "BidCrawler"),
	}
}

// WithClock replaces the clock used for deadline comparisons and housekeeping
func (c *BidCrawler) WithClock(now func() time.Time) *BidCrawler {
	c.now = now
	return c
}

// crawlSession holds the components built for a single run
type crawlSession struct {
	page       browser.Page
	clearer    *ObstructionClearer
	actuator   *Actuator
	navigator  *Navigator
	tracker    *PaginationTracker
	extractor  *DetailExtractor
	reconciler *RowReconciler
	report     *models.RunReport
	logger     *logrus.Entry

	// seen holds every bid reconciled this run. A re-search walks the listing again
	// from page 1 and those rows must not be reconciled or counted twice.
	seen map[string]bool
}

// RunOnce purges old records, walks every listing page and reconciles each row.
// The returned report is always non-nil and carries the terminal error, if any.
func (c *BidCrawler) RunOnce(ctx context.Context) (*models.RunReport, error) {
	runID := uuid.NewString()
	logger := c.logger.WithField("run_id", runID)
	report := &models.RunReport{RunID: runID, StartedAt: c.now()}

	logger.WithField("target_url", c.cfg.TargetURL).Info("Crawl run started")

	err := c.run(ctx, report, logger)

	report.FinishedAt = c.now()
	report.Duration = report.FinishedAt.Sub(report.StartedAt)
	if err != nil {
		report.Error = err.Error()
	}

	fields := logrus.Fields{
		"pages":      report.Pages,
		"rows":       report.Rows,
		"collected":  report.Collected,
		"deleted":    report.Deleted,
		"patched":    report.Patched,
		"skipped":    report.Skipped,
		"row_errors": report.RowErrors,
		"purged":     report.Purged,
		"duration":   report.Duration,
	}
	if err != nil {
		var serviceErr *shared.ServiceError
		if errors.As(err, &serviceErr) {
			serviceErr.LogError(logger)
		}
		logger.WithFields(fields).WithError(err).Error("Crawl run failed")
	} else {
		logger.WithFields(fields).Info("Crawl run finished")
	}
	return report, err
}

func (c *BidCrawler) run(ctx context.Context, report *models.RunReport, logger *logrus.Entry) error {
	store, closer, err := c.openStore(ctx, logger)
	if err != nil {
		return shared.WrapError(err, shared.ErrorCategoryDatabase, "STORE_OPEN_FAILED", "BidCrawler", "RunOnce", true)
	}
	defer func() {
		if cerr := closer.Close(); cerr != nil {
			logger.WithError(cerr).Warn("Failed to close store")
		}
	}()

	purged, err := store.PurgeExpiredOrStale(ctx, c.cfg.RetentionWindow(), c.now())
	if err != nil {
		return err
	}
	report.Purged = purged

	if c.cfg.PreflightEnabled && c.preflight != nil {
		if _, err := c.preflight.Check(ctx, c.cfg.TargetURL); err != nil {
			return err
		}
	}

	page, err := c.openPage(ctx, logger)
	if err != nil {
		return shared.NewServiceError(shared.ErrorCategoryNavigation, "BROWSER_START_FAILED",
			"could not start browser", "BidCrawler", "RunOnce", true, err)
	}
	defer func() {
		if cerr := page.Close(); cerr != nil {
			logger.WithError(cerr).Warn("Failed to close browser")
		}
	}()

	session := c.newSession(page, store, report, logger)
	if err := session.navigator.OpenListing(ctx); err != nil {
		return err
	}
	err = session.crawlPages(ctx, c.cfg.Timing)

	session.actuator.Metrics().LogSummary(logger)
	session.reconciler.Metrics().LogSummary(logger)
	return err
}

func (c *BidCrawler) newSession(page browser.Page, store BidRepository, report *models.RunReport, logger *logrus.Entry) *crawlSession {
	sel := c.cfg.Selectors
	timing := c.cfg.Timing

	clearer := NewObstructionClearer(page, sel, timing, logger)
	actuator := NewActuator(page, clearer, timing, logger)
	extractor := NewDetailExtractor(page, sel, timing, logger)
	limiter := shared.NewActionRateLimiter(c.cfg.DetailMinInterval)

	return &crawlSession{
		page:     page,
		clearer:  clearer,
		actuator: actuator,
		navigator: NewNavigator(page, actuator, clearer, NavigatorConfig{
			TargetURL:    c.cfg.TargetURL,
			StatusFilter: c.cfg.StatusFilter,
			Selectors:    sel,
			Timing:       timing,
		}, logger),
		tracker:   NewPaginationTracker(page, actuator, sel, timing, logger),
		extractor: extractor,
		reconciler: NewRowReconciler(page, store, actuator, clearer, extractor, limiter, ReconcilerConfig{
			Selectors: sel,
			Timing:    timing,
			Location:  c.cfg.Location(),
			Now:       c.now,
		}, logger),
		report: report,
		logger: logger,
		seen:   make(map[string]bool),
	}
}

func (s *crawlSession) rows(ctx context.Context) ([]ListingRow, error) {
	html, err := s.page.HTML(ctx)
	if err != nil {
		return nil, err
	}
	return ParseListingHTML(html, s.navigator.selectors)
}

// crawlPages processes the current page and advances until the listing runs out
func (s *crawlSession) crawlPages(ctx context.Context, timing config.Timing) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		current := s.tracker.CurrentPage(ctx)
		s.report.Pages++
		logger := s.logger.WithField("page", current)

		rows, err := s.rows(ctx)
		if err != nil {
			return shared.NewServiceError(shared.ErrorCategoryExtraction, "LISTING_READ_FAILED",
				"could not read listing", "BidCrawler", "crawlPages", true, err)
		}
		if len(rows) == 0 {
			logger.WithField("outcome", NoMoreRows).Info("Listing page has no rows, finishing")
			return nil
		}
		logger.WithField("rows", len(rows)).Info("Processing listing page")

		researched, err := s.processPage(ctx, len(rows), timing)
		if err != nil {
			return err
		}
		if researched {
			// The search fallback put the listing back on its first page
			logger.Warn("Listing was re-searched, resuming from the first page")
			continue
		}

		if err := sleepContext(ctx, timing.PageSettle); err != nil {
			return err
		}

		result := s.tracker.Advance(ctx, current)
		switch {
		case result.Outcome == NoNextControl:
			return nil
		case result.Changed:
			continue
		case result.Outcome == AdvancedNumbered:
			s.report.Stalled = true
			return shared.NewServiceError(shared.ErrorCategoryPagination, "PAGE_STALLED",
				fmt.Sprintf("page %d was clicked but the listing did not change", result.Target),
				"BidCrawler", "crawlPages", true, shared.ErrPaginationStalled)
		default:
			logger.Info("Next arrow did not change the listing, end of data")
			return nil
		}
	}
}

// processPage reconciles the rows of the current page in order. Rows are re-read before
// each one because a detail visit re-renders the grid.
func (s *crawlSession) processPage(ctx context.Context, count int, timing config.Timing) (researched bool, err error) {
	for i := 0; i < count; i++ {
		if err := sleepContext(ctx, timing.RowPause); err != nil {
			return false, err
		}

		rows, err := s.rows(ctx)
		if err != nil {
			return false, shared.NewServiceError(shared.ErrorCategoryExtraction, "LISTING_READ_FAILED",
				"could not read listing", "BidCrawler", "processPage", true, err)
		}
		if i >= len(rows) {
			break
		}
		row := rows[i]
		logger := s.logger.WithField("bid_no", row.BidNumber)

		if !row.HasLink {
			logger.Debug("Row has no title link, skipping")
			continue
		}
		if s.seen[row.BidNumber] {
			logger.Debug("Row already reconciled this run, skipping")
			continue
		}
		s.seen[row.BidNumber] = true
		s.report.Rows++

		result, rowErr := s.reconciler.Process(ctx, row)
		if rowErr != nil {
			if ctx.Err() != nil {
				return false, ctx.Err()
			}
			s.report.RowErrors++
			logger.WithFields(logrus.Fields{
				"action":   result.Action,
				"category": shared.CategoryOf(rowErr),
				"error":    rowErr.Error(),
			}).Warn("Row abandoned")
		} else {
			s.report.Count(result.Action)
		}

		if result.EnteredDetail {
			reset, err := s.navigator.ReturnToListing(ctx)
			if err != nil {
				return false, err
			}
			if reset {
				return true, nil
			}
		}
	}
	return false, nil
}
