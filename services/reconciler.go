package services

import (
	"context"
	"time"

	"github.com/fenilmodi00/nuri-bid-crawler/browser"
	"github.com/fenilmodi00/nuri-bid-crawler/config"
	"github.com/fenilmodi00/nuri-bid-crawler/models"
	"github.com/fenilmodi00/nuri-bid-crawler/shared"
	"github.com/sirupsen/logrus"
)

// DeadlineFieldLabel is the detail table label holding the bid submission deadline
const DeadlineFieldLabel = "입찰서접수마감일시"

// BidRepository is the persistence the crawl engine needs
type BidRepository interface {
	GetMeta(ctx context.Context, bidNo string) (*models.BidMeta, error)
	Delete(ctx context.Context, bidNo string) error
	Upsert(ctx context.Context, rec *models.BidRecord) error
	PatchDeadline(ctx context.Context, bidNo, deadline string) error
	PurgeExpiredOrStale(ctx context.Context, maxAge time.Duration, now time.Time) (int, error)
}

// Decide picks the action for a listing row. Order matters: an expired listing deadline
// is checked before the status comparison so expired rows are never churned.
func Decide(webStatus string, webDeadline *time.Time, stored *models.BidMeta, now time.Time) models.RowAction {
	if webDeadline != nil && !webDeadline.After(now) {
		if stored != nil && stored.Deadline == "" {
			return models.ActionDelete
		}
		return models.ActionSkip
	}
	if stored == nil {
		return models.ActionCollect
	}
	if stored.Status != webStatus {
		return models.ActionDelete
	}
	if stored.Deadline == "" && webDeadline != nil {
		return models.ActionPatchDeadline
	}
	return models.ActionSkip
}

// RowResult is what processing one row did
type RowResult struct {
	Action models.RowAction
	// EnteredDetail is set once the row link was clicked, so the listing has to be restored
	EnteredDetail bool
}

// RowReconciler applies Decide to listing rows against the store
type RowReconciler struct {
	page      browser.Page
	store     BidRepository
	actuator  *Actuator
	clearer   *ObstructionClearer
	extractor *DetailExtractor
	limiter   *shared.ActionRateLimiter
	selectors config.Selectors
	timing    config.Timing
	location  *time.Location
	now       func() time.Time
	metrics   *shared.ServiceMetrics
	logger    *logrus.Entry
}

// ReconcilerConfig carries the settings a RowReconciler needs
type ReconcilerConfig struct {
	Selectors config.Selectors
	Timing    config.Timing
	Location  *time.Location
	Now       func() time.Time
}

// NewRowReconciler creates a new reconciler that reads and writes store for one run
func NewRowReconciler(
	page browser.Page,
	store BidRepository,
	actuator *Actuator,
	clearer *ObstructionClearer,
	extractor *DetailExtractor,
	limiter *shared.ActionRateLimiter,
	cfg ReconcilerConfig,
	logger *logrus.Entry,
) *RowReconciler {
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &RowReconciler{
		page:      page,
		store:     store,
		actuator:  actuator,
		clearer:   clearer,
		extractor: extractor,
		limiter:   limiter,
		selectors: cfg.Selectors,
		timing:    cfg.Timing,
		location:  cfg.Location,
		now:       cfg.Now,
		metrics:   shared.NewServiceMetrics("RowReconciler"),
		logger:    logger.WithField("component", "RowReconciler"),
	}
}

func (r *RowReconciler) Metrics() *shared.ServiceMetrics {
	return r.metrics
}

// Process decides and carries out the action for one row
func (r *RowReconciler) Process(ctx context.Context, row ListingRow) (RowResult, error) {
	logger := r.logger.WithFields(logrus.Fields{
		"method": "Process",
		"bid_no": row.BidNumber,
	})

	stored, err := r.store.GetMeta(ctx, row.BidNumber)
	if err != nil {
		return RowResult{}, err
	}

	webDeadline := models.ParseDeadline(row.DeadlineText, r.location)
	action := Decide(row.Status, webDeadline, stored, r.now())
	result := RowResult{Action: action}
	r.metrics.IncrementCounter(string(action))

	switch action {
	case models.ActionSkip:
		logger.Debug("Row unchanged or expired, skipping")
		return result, nil

	case models.ActionDelete:
		fields := logrus.Fields{"web_status": row.Status, "web_deadline": row.DeadlineText}
		if stored != nil {
			fields["stored_status"] = stored.Status
		}
		logger.WithFields(fields).Info("Deleting stale record")
		return result, r.store.Delete(ctx, row.BidNumber)

	case models.ActionPatchDeadline:
		logger.WithField("deadline", row.DeadlineText).Info("Filling in missing deadline")
		return result, r.store.PatchDeadline(ctx, row.BidNumber, row.DeadlineText)
	}

	return r.collect(ctx, row, logger)
}

func (r *RowReconciler) collect(ctx context.Context, row ListingRow, logger *logrus.Entry) (RowResult, error) {
	result := RowResult{Action: models.ActionCollect}
	start := time.Now()

	if err := r.limiter.Wait(ctx); err != nil {
		return result, err
	}

	r.clearer.Clear(ctx)
	if !r.actuator.Act(ctx, Action{
		Selector: r.selectors.RowLink(row.Position),
		Label:    "row:" + row.BidNumber,
		Timeout:  r.timing.ClickTimeout,
		Retries:  r.timing.ClickRetries,
	}) {
		r.metrics.RecordRequest(false, time.Since(start))
		return result, shared.NewServiceError(shared.ErrorCategoryTransientUI, "ROW_CLICK_FAILED",
			"could not open detail view", "RowReconciler", "collect", true, nil).WithDetails(row.BidNumber)
	}
	result.EnteredDetail = true

	if err := sleepContext(ctx, r.timing.DetailSettle); err != nil {
		return result, err
	}

	info, err := r.extractor.Extract(ctx)
	if err != nil {
		r.metrics.RecordRequest(false, time.Since(start))
		return result, err
	}

	record := MergeDetail(row, info)
	if err := r.store.Upsert(ctx, record); err != nil {
		r.metrics.RecordRequest(false, time.Since(start))
		return result, err
	}

	r.metrics.RecordRequest(true, time.Since(start))
	logger.WithFields(logrus.Fields{
		"title":       record.Title,
		"fields":      record.Fields.Len(),
		"attachments": len(record.Attachments),
	}).Info("Collected bid")
	return result, nil
}

// MergeDetail builds the record to store: identity comes from the listing row, the body
// from the detail view, and the deadline from the detail table when it has one.
func MergeDetail(row ListingRow, info models.DetailInfo) *models.BidRecord {
	deadline := row.DeadlineText
	if v, ok := info.Fields.Get(DeadlineFieldLabel); ok && v != "" {
		deadline = v
	}
	attachments := info.Attachments
	if attachments == nil {
		attachments = []string{}
	}
	return &models.BidRecord{
		BidNumber:   row.BidNumber,
		Title:       row.Title,
		Status:      row.Status,
		Deadline:    deadline,
		Fields:      info.Fields,
		Attachments: attachments,
	}
}
