package handlers

import (
	"context"
	"errors"
	"time"

	"github.com/fenilmodi00/nuri-bid-crawler/models"
	"github.com/fenilmodi00/nuri-bid-crawler/shared"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

// CrawlTrigger starts crawl runs and remembers the last one
type CrawlTrigger interface {
	Start(ctx context.Context) error
	Running() bool
	LastReport() *models.RunReport
}

type CrawlHandler struct {
	Job CrawlTrigger
	// BaseContext bounds background runs; cancelling it stops a triggered crawl
	BaseContext context.Context
}

// NewCrawlHandler creates a new handler. Triggered runs use baseCtx so they outlive the request.
func NewCrawlHandler(job CrawlTrigger, baseCtx context.Context) *CrawlHandler {
	if baseCtx == nil {
		baseCtx = context.Background()
	}
	return &CrawlHandler{Job: job, BaseContext: baseCtx}
}

// TriggerCrawl starts a crawl in the background. A run already in progress yields 409.
func (h *CrawlHandler) TriggerCrawl(c *fiber.Ctx) error {
	logrus.Info("Manual crawl triggered via admin endpoint")

	err := h.Job.Start(h.BaseContext)
	if errors.Is(err, shared.ErrRunInProgress) {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"success": false,
			"error":   err.Error(),
		})
	}
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"error":   err.Error(),
		})
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"success":   true,
		"message":   "Crawl started",
		"timestamp": time.Now(),
	})
}

// GetLastRun returns the report of the most recent run
func (h *CrawlHandler) GetLastRun(c *fiber.Ctx) error {
	report := h.Job.LastReport()
	if report == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"success": false,
			"running": h.Job.Running(),
			"error":   "No crawl has finished yet",
		})
	}
	return c.JSON(fiber.Map{
		"success": true,
		"running": h.Job.Running(),
		"data":    report,
	})
}
