package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
)

// Pinger reports database reachability
type Pinger interface {
	HealthCheck(ctx context.Context) error
}

// NewApp builds the fiber application with every route registered
func NewApp(bids *BidHandler, crawl *CrawlHandler, db Pinger) *fiber.App {
	app := fiber.New(fiber.Config{DisableStartupMessage: true})

	app.Use(logger.New())
	app.Use(cors.New())

	app.Get("/health", func(c *fiber.Ctx) error {
		if err := db.HealthCheck(c.Context()); err != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"status":    "degraded",
				"error":     err.Error(),
				"timestamp": time.Now().Unix(),
			})
		}
		return c.JSON(fiber.Map{
			"status":    "ok",
			"timestamp": time.Now().Unix(),
		})
	})

	api := app.Group("/api/v1")

	api.Get("/bids", bids.GetBids)
	api.Get("/bids/:bid_no", bids.GetBidByNumber)

	// TODO: Add auth middleware
	admin := api.Group("/admin")
	admin.Post("/crawl", crawl.TriggerCrawl)
	admin.Get("/crawl/last", crawl.GetLastRun)

	return app
}
