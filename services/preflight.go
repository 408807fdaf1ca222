package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/fenilmodi00/nuri-bid-crawler/shared"
	"github.com/gocolly/colly/v2"
	"github.com/sirupsen/logrus"
)

// PreflightResult describes the portal landing page as seen by a plain HTTP client
type PreflightResult struct {
	URL        string        `json:"url"`
	StatusCode int           `json:"status_code"`
	Title      string        `json:"title"`
	Duration   time.Duration `json:"duration"`
}

// Preflight checks that the portal answers before a browser is launched for it
type Preflight struct {
	timeout   time.Duration
	userAgent string
	logger    *logrus.Entry
}

// NewPreflight creates a new probe; a non-positive timeout falls back to 30 seconds
func NewPreflight(timeout time.Duration, logger *logrus.Entry) *Preflight {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Preflight{
		timeout:   timeout,
		userAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		logger:    logger.WithField("component", "Preflight"),
	}
}

// Check fetches url once. Transport failures and HTTP error statuses are network errors.
func (p *Preflight) Check(ctx context.Context, url string) (*PreflightResult, error) {
	start := time.Now()
	result := &PreflightResult{URL: url}

	c := colly.NewCollector(
		colly.UserAgent(p.userAgent),
		colly.StdlibContext(ctx),
		colly.AllowURLRevisit(),
	)
	c.SetRequestTimeout(p.timeout)

	c.OnHTML("title", func(e *colly.HTMLElement) {
		if result.Title == "" {
			result.Title = strings.TrimSpace(e.Text)
		}
	})

	c.OnResponse(func(r *colly.Response) {
		result.StatusCode = r.StatusCode
	})

	var scrapeErr error
	c.OnError(func(r *colly.Response, err error) {
		scrapeErr = err
		if r != nil {
			result.StatusCode = r.StatusCode
		}
	})

	err := c.Visit(url)
	c.Wait()
	result.Duration = time.Since(start)

	if err == nil {
		err = scrapeErr
	}
	if err != nil {
		p.logger.WithFields(logrus.Fields{
			"url":         url,
			"status_code": result.StatusCode,
			"error":       err.Error(),
		}).Warn("Portal preflight failed")
		return result, shared.NewServiceError(shared.ErrorCategoryNetwork, "PREFLIGHT_FAILED",
			fmt.Sprintf("portal %s is not reachable", url), "Preflight", "Check", true, err).WithDetails(result)
	}

	p.logger.WithFields(logrus.Fields{
		"url":         url,
		"status_code": result.StatusCode,
		"title":       result.Title,
		"duration":    result.Duration,
	}).Info("Portal preflight succeeded")
	return result, nil
}
