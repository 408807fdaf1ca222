package services

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/fenilmodi00/nuri-bid-crawler/config"
)

// ListingRow is one announcement as shown in the search result grid
type ListingRow struct {
	// Position is the 1-based child index of the row inside the grid body
	Position     int
	BidNumber    string
	Title        string
	Status       string
	DeadlineText string
	HasLink      bool
}

// ParseListingHTML reads the listing grid out of a page snapshot.
// Rows without a bid number get a positional UNKNOWN-<index> key.
func ParseListingHTML(html string, sel config.Selectors) ([]ListingRow, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse listing html: %w", err)
	}

	rows := make([]ListingRow, 0)
	doc.Find(sel.ListingRows).Each(func(i int, tr *goquery.Selection) {
		link := tr.Find(sel.RowTitleLink).First()
		row := ListingRow{
			Position:     tr.PrevAll().Length() + 1,
			BidNumber:    CollapseWhitespace(tr.Find(sel.RowBidNumber).First().Text()),
			Status:       CollapseWhitespace(tr.Find(sel.RowStatus).First().Text()),
			DeadlineText: CollapseWhitespace(tr.Find(sel.RowDeadline).First().Text()),
			HasLink:      link.Length() > 0,
		}
		if row.HasLink {
			row.Title = CollapseWhitespace(link.Text())
		}
		if row.BidNumber == "" {
			row.BidNumber = fmt.Sprintf("UNKNOWN-%d", i)
		}
		rows = append(rows, row)
	})
	return rows, nil
}
