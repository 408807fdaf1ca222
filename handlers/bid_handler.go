package handlers

import (
	"context"
	"errors"

	"github.com/fenilmodi00/nuri-bid-crawler/database"
	"github.com/fenilmodi00/nuri-bid-crawler/models"
	"github.com/gofiber/fiber/v2"
)

const (
	defaultPageLimit = 50
	maxPageLimit     = 500
)

// BidReader is the read side of the bid store
type BidReader interface {
	Get(ctx context.Context, bidNo string) (*models.BidRecord, error)
	List(ctx context.Context, opts database.ListOptions) ([]models.BidRecord, error)
	Count(ctx context.Context) (int, error)
}

type BidHandler struct {
	Store BidReader
}

// NewBidHandler creates a new handler for the read-only bid endpoints
func NewBidHandler(store BidReader) *BidHandler {
	return &BidHandler{Store: store}
}

// GetBids lists stored bids, optionally filtered by status, newest first
func (h *BidHandler) GetBids(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", defaultPageLimit)
	if limit <= 0 || limit > maxPageLimit {
		limit = defaultPageLimit
	}
	offset := c.QueryInt("offset", 0)
	if offset < 0 {
		offset = 0
	}

	bids, err := h.Store.List(c.Context(), database.ListOptions{
		Status: c.Query("status"),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"error":   err.Error(),
		})
	}

	total, err := h.Store.Count(c.Context())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"error":   err.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    bids,
		"count":   len(bids),
		"total":   total,
		"limit":   limit,
		"offset":  offset,
	})
}

func (h *BidHandler) GetBidByNumber(c *fiber.Ctx) error {
	bid, err := h.Store.Get(c.Context(), c.Params("bid_no"))
	if errors.Is(err, database.ErrBidNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"success": false,
			"error":   "Bid not found",
		})
	}
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"error":   err.Error(),
		})
	}
	return c.JSON(fiber.Map{
		"success": true,
		"data":    bid,
	})
}
