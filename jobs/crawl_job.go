package jobs

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/fenilmodi00/nuri-bid-crawler/models"
	"github.com/fenilmodi00/nuri-bid-crawler/shared"
	"github.com/sirupsen/logrus"
)

// Runner performs one complete crawl
type Runner interface {
	RunOnce(ctx context.Context) (*models.RunReport, error)
}

// CrawlJob serializes crawl runs: scheduler ticks and manual triggers never overlap
type CrawlJob struct {
	Crawler Runner

	exclusive sync.Mutex
	running   atomic.Bool

	mu   sync.RWMutex
	last *models.RunReport
	runs int
}

// NewCrawlJob creates a new single-flight job around crawler
func NewCrawlJob(crawler Runner) *CrawlJob {
	return &CrawlJob{Crawler: crawler}
}

// Run executes a crawl and waits for it. It returns shared.ErrRunInProgress without
// doing anything when another run holds the job.
func (j *CrawlJob) Run(ctx context.Context) (*models.RunReport, error) {
	if !j.exclusive.TryLock() {
		logrus.WithField("job", "crawl").Warn("Crawl already running, skipping this trigger")
		return nil, shared.ErrRunInProgress
	}
	defer j.exclusive.Unlock()
	return j.execute(ctx)
}

// Start claims the job and runs the crawl in the background
func (j *CrawlJob) Start(ctx context.Context) error {
	if !j.exclusive.TryLock() {
		return shared.ErrRunInProgress
	}
	go func() {
		defer j.exclusive.Unlock()
		_, _ = j.execute(ctx)
	}()
	return nil
}

func (j *CrawlJob) execute(ctx context.Context) (*models.RunReport, error) {
	j.running.Store(true)
	defer j.running.Store(false)

	logrus.WithField("job", "crawl").Info("Starting crawl job")
	report, err := j.Crawler.RunOnce(ctx)

	j.mu.Lock()
	if report != nil {
		j.last = report
	}
	j.runs++
	j.mu.Unlock()

	if err != nil {
		logrus.WithField("job", "crawl").Errorf("Crawl job failed: %v", err)
	} else if report != nil {
		logrus.WithFields(logrus.Fields{
			"job":       "crawl",
			"run_id":    report.RunID,
			"collected": report.Collected,
			"deleted":   report.Deleted,
			"duration":  report.Duration,
		}).Info("Crawl job completed")
	}
	return report, err
}

// Running reports whether a crawl is in progress
func (j *CrawlJob) Running() bool {
	return j.running.Load()
}

// LastReport returns a copy of the most recent run's report, nil before the first run
func (j *CrawlJob) LastReport() *models.RunReport {
	j.mu.RLock()
	defer j.mu.RUnlock()
	if j.last == nil {
		return nil
	}
	report := *j.last
	return &report
}

// Runs counts finished runs, failed ones included
func (j *CrawlJob) Runs() int {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.runs
}
