package services

import (
	"context"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/fenilmodi00/nuri-bid-crawler/browser"
	"github.com/fenilmodi00/nuri-bid-crawler/browser/browsertest"
	"github.com/fenilmodi00/nuri-bid-crawler/config"
	"github.com/fenilmodi00/nuri-bid-crawler/database"
	"github.com/fenilmodi00/nuri-bid-crawler/models"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func quietLogger() *logrus.Entry {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logrus.NewEntry(logger)
}

// fastTiming keeps retry counts but removes every idle so tests run instantly
func fastTiming() config.Timing {
	t := config.DefaultTiming()
	t.ObstructionSettle = 0
	t.AttemptPause = 0
	t.HoverPause = 0
	t.ScriptClickSettle = 0
	t.MenuSettle = 0
	t.SubmenuSettle = 0
	t.ListingSettle = 0
	t.RowPause = 0
	t.DetailSettle = 0
	t.DetailTableTimeout = 0
	t.PageSettle = 0
	t.PagePollInterval = 0
	t.PageChangeTimeout = 0
	t.RecoverySettle = 0
	t.ListRestoreTimeout = 0
	return t
}

func testConfig() *config.Config {
	return &config.Config{
		TargetURL:     "https://nuri.example.test/",
		StatusFilter:  "입찰개시",
		RetentionDays: 31,
		Database:      config.DefaultDatabaseConfig(),
		Selectors:     config.DefaultSelectors(),
		Timing:        fastTiming(),
	}
}

// testNow is the wall clock every engine test runs at
var testNow = time.Date(2024, 5, 20, 12, 0, 0, 0, time.Local)

func deadlineIn(d time.Duration) string {
	return testNow.Add(d).Format(models.DeadlineLayout)
}

func portalBid(number, title string) browsertest.Bid {
	deadline := deadlineIn(72 * time.Hour)
	return browsertest.Bid{
		Number:   number,
		Title:    title,
		Status:   "입찰개시",
		Deadline: deadline,
		Fields: []models.Field{
			{Label: "공고명", Value: title},
			{Label: "공고번호", Value: number},
			{Label: "공고기관", Value: "조달청"},
			{Label: DeadlineFieldLabel, Value: deadline},
		},
		Attachments: []browsertest.Attachment{{Name: number + ".hwp", Size: "12KB"}},
	}
}

func portalBids(n int) []browsertest.Bid {
	out := make([]browsertest.Bid, n)
	for i := range out {
		number := "R24BK" + string(rune('A'+i)) + "0001"
		out[i] = portalBid(number, "용역 "+string(rune('A'+i)))
	}
	return out
}

// countingRepo records the writes that reach the store
type countingRepo struct {
	BidRepository
	upserts int
	deletes int
	patches int
}

func (r *countingRepo) Upsert(ctx context.Context, rec *models.BidRecord) error {
	r.upserts++
	return r.BidRepository.Upsert(ctx, rec)
}

func (r *countingRepo) Delete(ctx context.Context, bidNo string) error {
	r.deletes++
	return r.BidRepository.Delete(ctx, bidNo)
}

func (r *countingRepo) PatchDeadline(ctx context.Context, bidNo, deadline string) error {
	r.patches++
	return r.BidRepository.PatchDeadline(ctx, bidNo, deadline)
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

type harness struct {
	cfg         *config.Config
	site        *browsertest.Site
	store       *database.BidStore
	repo        *countingRepo
	crawler     *BidCrawler
	now         time.Time
	storeCloses int
}

func newHarness(t *testing.T, bids []browsertest.Bid, opts browsertest.Options) *harness {
	t.Helper()

	db, err := database.Open("sqlite://"+filepath.Join(t.TempDir(), "bids.db"), config.DefaultDatabaseConfig())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.Migrate(context.Background()))

	h := &harness{
		cfg:  testConfig(),
		site: browsertest.NewSite(bids, opts),
		now:  testNow,
	}
	h.store = database.NewBidStore(db, time.Local, quietLogger()).WithClock(func() time.Time { return h.now })
	h.repo = &countingRepo{BidRepository: h.store}

	openPage := func(ctx context.Context, logger *logrus.Entry) (browser.Page, error) {
		h.site.Reopen()
		return h.site, nil
	}
	openStore := func(ctx context.Context, logger *logrus.Entry) (BidRepository, io.Closer, error) {
		return h.repo, closerFunc(func() error {
			h.storeCloses++
			return nil
		}), nil
	}
	h.crawler = NewBidCrawler(h.cfg, openPage, openStore, nil, quietLogger()).
		WithClock(func() time.Time { return h.now })
	return h
}

func (h *harness) run(t *testing.T) (*models.RunReport, error) {
	t.Helper()
	report, err := h.crawler.RunOnce(context.Background())
	require.NotNil(t, report)
	require.True(t, h.site.Closed(), "browser session must be released")
	return report, err
}

func (h *harness) stored(t *testing.T) map[string]models.BidRecord {
	t.Helper()
	records, err := h.store.List(context.Background(), database.ListOptions{})
	require.NoError(t, err)
	out := make(map[string]models.BidRecord, len(records))
	for _, r := range records {
		out[r.BidNumber] = r
	}
	return out
}

// newPageComponents builds the per-run components over a fake site
func newPageComponents(site *browsertest.Site, timing config.Timing) (*ObstructionClearer, *Actuator) {
	clearer := NewObstructionClearer(site, config.DefaultSelectors(), timing, quietLogger())
	return clearer, NewActuator(site, clearer, timing, quietLogger())
}
