package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/fenilmodi00/nuri-bid-crawler/browser"
	"github.com/fenilmodi00/nuri-bid-crawler/config"
	"github.com/fenilmodi00/nuri-bid-crawler/models"
	"github.com/fenilmodi00/nuri-bid-crawler/shared"
	"github.com/sirupsen/logrus"
)

// DetailExtractor turns the open detail view into label/value fields and attachment entries
type DetailExtractor struct {
	page      browser.Page
	selectors config.Selectors
	timing    config.Timing
	metrics   *shared.ServiceMetrics
	logger    *logrus.Entry
}

// NewDetailExtractor creates a new extractor for the detail view open on page
func NewDetailExtractor(page browser.Page, selectors config.Selectors, timing config.Timing, logger *logrus.Entry) *DetailExtractor {
	return &DetailExtractor{
		page:      page,
		selectors: selectors,
		timing:    timing,
		metrics:   shared.NewServiceMetrics("DetailExtractor"),
		logger:    logger.WithField("component", "DetailExtractor"),
	}
}

func (e *DetailExtractor) Metrics() *shared.ServiceMetrics {
	return e.metrics
}

// Extract snapshots the detail view and parses it. A view with neither fields nor
// attachments is reported as shared.ErrEmptyDetail.
func (e *DetailExtractor) Extract(ctx context.Context) (models.DetailInfo, error) {
	start := time.Now()
	logger := e.logger.WithField("method", "Extract")

	if err := e.page.WaitFor(ctx, e.selectors.DetailTables, browser.StateVisible, e.timing.DetailTableTimeout); err != nil {
		logger.WithError(err).Debug("Detail tables not visible, parsing whatever is rendered")
	}

	html, err := e.page.HTML(ctx)
	if err != nil {
		e.metrics.RecordRequest(false, time.Since(start))
		return models.DetailInfo{}, shared.NewServiceError(shared.ErrorCategoryExtraction, "SNAPSHOT_FAILED",
			"could not read detail view", "DetailExtractor", "Extract", true, err)
	}

	info, err := ParseDetailHTML(html, e.selectors)
	if err != nil {
		e.metrics.RecordRequest(false, time.Since(start))
		return models.DetailInfo{}, shared.NewServiceError(shared.ErrorCategoryExtraction, "PARSE_FAILED",
			"could not parse detail view", "DetailExtractor", "Extract", false, err)
	}
	if info.IsEmpty() {
		e.metrics.RecordRequest(false, time.Since(start))
		return info, shared.NewServiceError(shared.ErrorCategoryExtraction, "EMPTY_DETAIL",
			"detail view had no tables or attachments", "DetailExtractor", "Extract", false, shared.ErrEmptyDetail)
	}

	e.metrics.RecordRequest(true, time.Since(start))
	e.metrics.AddToCounter("fields", int64(info.Fields.Len()))
	e.metrics.AddToCounter("attachments", int64(len(info.Attachments)))
	logger.WithFields(logrus.Fields{
		"fields":      info.Fields.Len(),
		"attachments": len(info.Attachments),
	}).Debug("Extracted detail view")
	return info, nil
}

// ParseDetailHTML pairs th/td cells of every key/value table row by position, keeping the
// first value seen for a label, and reads "name (size)" entries from the attachment grid.
func ParseDetailHTML(html string, sel config.Selectors) (models.DetailInfo, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return models.DetailInfo{}, err
	}

	var info models.DetailInfo
	doc.Find(sel.DetailTables).Each(func(_ int, table *goquery.Selection) {
		table.Find("tbody tr").Each(func(_ int, tr *goquery.Selection) {
			headers := tr.ChildrenFiltered("th")
			values := tr.ChildrenFiltered("td")
			n := headers.Length()
			if values.Length() < n {
				n = values.Length()
			}
			for i := 0; i < n; i++ {
				label := NormalizeCellText(headers.Eq(i).Text())
				value := NormalizeCellText(values.Eq(i).Text())
				info.Fields.Add(label, value)
			}
		})
	})

	attachments := make([]string, 0)
	doc.Find(sel.AttachmentRows).Each(func(_ int, tr *goquery.Selection) {
		cells := tr.ChildrenFiltered("td")
		if cells.Length() < 6 {
			return
		}
		name := NormalizeCellText(cells.Eq(4).Text())
		if name == "" {
			return
		}
		size := NormalizeCellText(cells.Eq(5).Text())
		attachments = append(attachments, fmt.Sprintf("%s (%s)", name, size))
	})
	info.Attachments = attachments

	return info, nil
}
