// Package browsertest provides a scripted, in-memory rendition of the Nuri
// bid portal that implements browser.Page for engine tests.
package browsertest

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/fenilmodi00/nuri-bid-crawler/browser"
	"github.com/fenilmodi00/nuri-bid-crawler/models"
)

var (
	errIntercepted = errors.New("element click intercepted by overlay")
	errNotVisible  = errors.New("element is not visible")
	errNotAttached = errors.New("element not attached")
	errTimeout     = errors.New("timeout exceeded waiting for element")
)

// Attachment is one row of the detail attachment grid
type Attachment struct {
	Name string
	Size string
}

// Bid is one announcement as the portal shows it
type Bid struct {
	Number   string
	Title    string
	Status   string
	Deadline string
	// Fields are rendered into the detail key/value tables in order, duplicates included
	Fields      []models.Field
	Attachments []Attachment
	// NoLink renders the title as plain text
	NoLink bool
	// EmptyDetail renders a detail view with no tables and no attachment grid
	EmptyDetail bool
}

// Options shapes the fake portal and injects failures
type Options struct {
	PageSize      int
	PagesPerGroup int

	HomePopups   int // popup windows covering the home view after navigation
	DetailPopups int // popup windows opened with every detail view

	// ClickFailures makes the next N forced clicks on a selector fail as not visible
	ClickFailures map[string]int
	// HideSubmenu leaves the optional second level menu out of the DOM
	HideSubmenu bool
	// Menu3NeedsHover keeps the listing menu hidden until the first level menu is hovered
	Menu3NeedsHover bool
	// BrokenListButton makes the detail view's list button do nothing
	BrokenListButton bool
	// FreezePaging makes pagination controls do nothing
	FreezePaging bool
	// NavigateErr is returned from Navigate
	NavigateErr error
}

type view int

const (
	viewBlank view = iota
	viewHome
	viewSearch
	viewListing
	viewDetail
)

// Site is a fake portal. It is safe for use by one crawl at a time.
type Site struct {
	mu   sync.Mutex
	opts Options
	bids []Bid

	view        view
	menuOpen    bool
	hovered     bool
	page        int
	detailIndex int
	popups      int
	modal       bool
	status      string
	closed      bool

	clickFailures map[string]int

	// counters for assertions
	detailVisits   map[string]int
	searchClicks   int
	pageClicks     []string
	navigations    int
	removedPopups  int
	scriptClicks   int
	listButtonHits int
}

var _ browser.Page = (*Site)(nil)

// NewSite builds a portal showing bids in listing order
func NewSite(bids []Bid, opts Options) *Site {
	if opts.PageSize <= 0 {
		opts.PageSize = 10
	}
	if opts.PagesPerGroup <= 0 {
		opts.PagesPerGroup = 10
	}
	failures := make(map[string]int, len(opts.ClickFailures))
	for k, v := range opts.ClickFailures {
		failures[k] = v
	}
	return &Site{
		opts:          opts,
		bids:          append([]Bid(nil), bids...),
		page:          1,
		clickFailures: failures,
		detailVisits:  make(map[string]int),
	}
}

// SetBids replaces the announcements the portal lists
func (s *Site) SetBids(bids []Bid) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bids = append([]Bid(nil), bids...)
}

// UpdateBid edits the announcement with the given number in place
func (s *Site) UpdateBid(number string, edit func(*Bid)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.bids {
		if s.bids[i].Number == number {
			edit(&s.bids[i])
		}
	}
}

// Reopen clears the closed flag so the site can serve another run
func (s *Site) Reopen() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = false
}

func (s *Site) DetailVisits(number string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.detailVisits[number]
}

func (s *Site) TotalDetailVisits() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for _, n := range s.detailVisits {
		total += n
	}
	return total
}

func (s *Site) SearchClicks() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.searchClicks
}

// PageClicks lists the pagination controls clicked, "page:N" or "next"
func (s *Site) PageClicks() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.pageClicks...)
}

func (s *Site) Navigations() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.navigations
}

func (s *Site) RemovedPopups() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.removedPopups
}

func (s *Site) ScriptClicks() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scriptClicks
}

func (s *Site) ListButtonHits() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listButtonHits
}

func (s *Site) SelectedStatus() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func (s *Site) CurrentPage() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.page
}

func (s *Site) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// ShowPopups opens n popup windows over the current view
func (s *Site) ShowPopups(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.popups += n
	s.modal = n > 0
}

func (s *Site) totalPages() int {
	if len(s.bids) == 0 {
		return 1
	}
	return (len(s.bids) + s.opts.PageSize - 1) / s.opts.PageSize
}

func (s *Site) checkOpen(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.closed {
		return errors.New("page closed")
	}
	return nil
}

// document renders the current view and parses it
func (s *Site) document() *goquery.Document {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s.render()))
	if err != nil {
		panic(fmt.Sprintf("browsertest: rendered invalid html: %v", err))
	}
	return doc
}

func (s *Site) Navigate(ctx context.Context, url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(ctx); err != nil {
		return err
	}
	if s.opts.NavigateErr != nil {
		return s.opts.NavigateErr
	}
	s.navigations++
	s.view = viewHome
	s.menuOpen = false
	s.hovered = false
	s.page = 1
	s.popups = s.opts.HomePopups
	s.modal = s.popups > 0
	return nil
}

// WaitFor checks the condition once; state only changes in response to actions so there is nothing to wait for
func (s *Site) WaitFor(ctx context.Context, selector string, state browser.ElementState, timeout time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(ctx); err != nil {
		return err
	}
	sel := s.document().Find(selector).First()
	if sel.Length() == 0 {
		return fmt.Errorf("wait for %s %s: %w", selector, state, errTimeout)
	}
	if state == browser.StateVisible && !rendered(sel) {
		return fmt.Errorf("wait for %s %s: %w", selector, state, errTimeout)
	}
	return nil
}

func (s *Site) Count(ctx context.Context, selector string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(ctx); err != nil {
		return 0, err
	}
	return s.document().Find(selector).Length(), nil
}

func (s *Site) Exists(ctx context.Context, selector string) (bool, error) {
	n, err := s.Count(ctx, selector)
	return n > 0, err
}

func (s *Site) IsVisible(ctx context.Context, selector string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(ctx); err != nil {
		return false, err
	}
	sel := s.document().Find(selector).First()
	return sel.Length() > 0 && rendered(sel), nil
}

func (s *Site) Text(ctx context.Context, selector string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(ctx); err != nil {
		return "", err
	}
	return s.document().Find(selector).First().Text(), nil
}

func (s *Site) HTML(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(ctx); err != nil {
		return "", err
	}
	return s.render(), nil
}

func (s *Site) ScrollIntoView(ctx context.Context, selector string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(ctx); err != nil {
		return err
	}
	if s.document().Find(selector).Length() == 0 {
		return fmt.Errorf("scroll %s: %w", selector, errNotAttached)
	}
	return nil
}

func (s *Site) Click(ctx context.Context, selector string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(ctx); err != nil {
		return err
	}
	sel := s.document().Find(selector).First()
	if sel.Length() == 0 {
		return fmt.Errorf("click %s: %w", selector, errNotAttached)
	}
	if s.popups > 0 || s.modal {
		return fmt.Errorf("click %s: %w", selector, errIntercepted)
	}
	if s.clickFailures[selector] > 0 {
		s.clickFailures[selector]--
		return fmt.Errorf("click %s: %w", selector, errNotVisible)
	}
	if !rendered(sel) {
		return fmt.Errorf("click %s: %w", selector, errNotVisible)
	}
	s.activate(sel)
	return nil
}

func (s *Site) Hover(ctx context.Context, selector string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(ctx); err != nil {
		return err
	}
	sel := s.document().Find(selector).First()
	if sel.Length() == 0 {
		return fmt.Errorf("hover %s: %w", selector, errNotAttached)
	}
	if action, _ := sel.Attr("data-action"); action == "menu1" {
		s.hovered = true
		s.menuOpen = true
	}
	return nil
}

func (s *Site) SelectOption(ctx context.Context, selector, label string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(ctx); err != nil {
		return err
	}
	found := false
	s.document().Find(selector).First().Find("option").EachWithBreak(func(_ int, opt *goquery.Selection) bool {
		if strings.TrimSpace(opt.Text()) == label {
			found = true
			return false
		}
		return true
	})
	if !found {
		return fmt.Errorf("select %q in %s: no such option", label, selector)
	}
	s.status = label
	return nil
}

func (s *Site) RemoveOverlays(ctx context.Context, popupSelectors, modalSelectors []string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(ctx); err != nil {
		return 0, err
	}
	doc := s.document()
	removed := 0
	if len(popupSelectors) > 0 {
		doc.Find(strings.Join(popupSelectors, ", ")).Each(func(_ int, el *goquery.Selection) {
			if rendered(el) {
				removed++
			}
		})
		if removed > 0 {
			s.popups = 0
		}
	}
	if len(modalSelectors) > 0 && doc.Find(strings.Join(modalSelectors, ", ")).Length() > 0 {
		s.modal = false
	}
	s.removedPopups += removed
	return removed, nil
}

func (s *Site) ScriptClick(ctx context.Context, selector string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(ctx); err != nil {
		return false, err
	}
	sel := s.document().Find(selector).First()
	if sel.Length() == 0 {
		return false, nil
	}
	s.scriptClicks++
	s.activate(sel)
	return true, nil
}

func (s *Site) ClickFirstVisible(ctx context.Context, selectors []string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(ctx); err != nil {
		return false, err
	}
	doc := s.document()
	for _, selector := range selectors {
		var target *goquery.Selection
		doc.Find(selector).EachWithBreak(func(_ int, el *goquery.Selection) bool {
			if rendered(el) {
				target = el
				return false
			}
			return true
		})
		if target != nil {
			s.activate(target)
			return true, nil
		}
	}
	return false, nil
}

func (s *Site) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// activate performs the behaviour bound to the clicked element
func (s *Site) activate(el *goquery.Selection) {
	actionEl := el.Closest("[data-action]")
	action, _ := actionEl.Attr("data-action")

	switch action {
	case "menu1":
		s.menuOpen = true
	case "menu3":
		if s.view == viewHome {
			s.view = viewSearch
		}
	case "search":
		s.searchClicks++
		s.view = viewListing
		s.page = 1
	case "detail":
		idx, err := strconv.Atoi(actionEl.AttrOr("data-index", ""))
		if err != nil || idx < 0 || idx >= len(s.bids) {
			return
		}
		s.view = viewDetail
		s.detailIndex = idx
		s.detailVisits[s.bids[idx].Number]++
		if s.opts.DetailPopups > 0 {
			s.popups = s.opts.DetailPopups
			s.modal = true
		}
	case "page":
		n, _ := strconv.Atoi(actionEl.AttrOr("data-page", ""))
		s.pageClicks = append(s.pageClicks, fmt.Sprintf("page:%d", n))
		if !s.opts.FreezePaging && n >= 1 && n <= s.totalPages() {
			s.page = n
		}
	case "next":
		s.pageClicks = append(s.pageClicks, "next")
		next := ((s.page-1)/s.opts.PagesPerGroup+1)*s.opts.PagesPerGroup + 1
		if !s.opts.FreezePaging && next <= s.totalPages() {
			s.page = next
		}
	case "list":
		s.listButtonHits++
		if !s.opts.BrokenListButton && s.view == viewDetail {
			s.view = viewListing
		}
	}
}

// rendered mirrors the browser check: neither the node nor an ancestor is display:none
func rendered(sel *goquery.Selection) bool {
	for node := sel.First(); node.Length() > 0; node = node.Parent() {
		if _, hidden := node.Attr("hidden"); hidden {
			return false
		}
		style := strings.ReplaceAll(strings.ToLower(node.AttrOr("style", "")), " ", "")
		if strings.Contains(style, "display:none") {
			return false
		}
	}
	return true
}

func esc(s string) string {
	return html.EscapeString(s)
}

func (s *Site) render() string {
	var b strings.Builder
	b.WriteString("<html><head><title>누리장터</title></head><body>")

	if s.view == viewBlank {
		b.WriteString("</body></html>")
		return b.String()
	}

	s.renderMenu(&b)

	switch s.view {
	case viewSearch:
		s.renderSearchForm(&b)
	case viewListing:
		s.renderSearchForm(&b)
		s.renderListing(&b)
	case viewDetail:
		s.renderSearchForm(&b)
		s.renderDetail(&b)
	}

	for i := 0; i < s.popups; i++ {
		fmt.Fprintf(&b, `<div class="w2window w2popup_window" id="popup_%d"><p>공지사항 %d</p></div>`, i, i)
	}
	// A popup that has been closed by the page itself stays in the DOM, hidden
	b.WriteString(`<div class="w2window" style="display: none"><p>closed notice</p></div>`)
	if s.modal {
		b.WriteString(`<div class="w2modal"></div>`)
	}

	b.WriteString("</body></html>")
	return b.String()
}

func (s *Site) renderMenu(b *strings.Builder) {
	b.WriteString(`<div id="mf_wfm_gnb"><ul>`)
	b.WriteString(`<li><a id="mf_wfm_gnb_wfm_gnbMenu_genDepth1_1_btn_menuLvl1" data-action="menu1" href="#">입찰공고</a>`)

	sub := ` style="display: none"`
	if s.menuOpen {
		sub = ""
	}
	fmt.Fprintf(b, `<ul class="depth2"%s>`, sub)
	if !s.opts.HideSubmenu {
		b.WriteString(`<li><a id="mf_wfm_gnb_wfm_gnbMenu_genDepth1_1_genDepth2_0_btn_menuLvl2" data-action="menu2" href="#">입찰공고</a>`)
	} else {
		b.WriteString(`<li>`)
	}

	menu3 := ""
	if s.opts.Menu3NeedsHover && !s.hovered {
		menu3 = ` style="display: none"`
	}
	fmt.Fprintf(b, `<ul class="depth3"%s><li><a id="mf_wfm_gnb_wfm_gnbMenu_genDepth1_1_genDepth2_0_genDepth3_0_btn_menuLvl3" data-action="menu3" href="#">입찰공고목록</a></li></ul>`, menu3)
	b.WriteString(`</li></ul></li></ul></div>`)
}

func (s *Site) renderSearchForm(b *strings.Builder) {
	b.WriteString(`<div id="mf_wfm_container_search">`)
	b.WriteString(`<select id="mf_wfm_container_sbxPrgrsStts">`)
	for _, opt := range []string{"전체", "입찰개시", "입찰마감", "개찰완료"} {
		selected := ""
		if opt == s.status {
			selected = ` selected="selected"`
		}
		fmt.Fprintf(b, `<option value="%s"%s>%s</option>`, esc(opt), selected, esc(opt))
	}
	b.WriteString(`</select>`)
	b.WriteString(`<input type="button" id="mf_wfm_container_btnS0001" class="btn_cm srch" value="검색" data-action="search"/>`)
	b.WriteString(`</div>`)
}

func (s *Site) renderListing(b *strings.Builder) {
	fmt.Fprintf(b, `<span id="mf_wfm_container_tbxTotCnt">%d</span>`, len(s.bids))
	b.WriteString(`<table id="mf_wfm_container_grdBidPbancList"><tbody id="mf_wfm_container_grdBidPbancList_body_tbody">`)

	start := (s.page - 1) * s.opts.PageSize
	end := start + s.opts.PageSize
	if end > len(s.bids) {
		end = len(s.bids)
	}
	for i := start; i < end; i++ {
		bid := s.bids[i]
		b.WriteString(`<tr class="grid_body_row">`)
		fmt.Fprintf(b, `<td col_id="bidPbancNum">%s</td>`, esc(bid.Number))
		if bid.NoLink {
			fmt.Fprintf(b, `<td col_id="bidPbancNm">%s</td>`, esc(bid.Title))
		} else {
			fmt.Fprintf(b, `<td col_id="bidPbancNm"><a href="#" data-action="detail" data-index="%d">%s</a></td>`, i, esc(bid.Title))
		}
		fmt.Fprintf(b, `<td col_id="pbancSttsGridCdNm">%s</td>`, esc(bid.Status))
		fmt.Fprintf(b, `<td col_id="slprRcptDdlnDt">%s</td>`, esc(bid.Deadline))
		b.WriteString(`</tr>`)
	}
	b.WriteString(`</tbody></table>`)

	total := s.totalPages()
	groupStart := (s.page-1)/s.opts.PagesPerGroup*s.opts.PagesPerGroup + 1
	groupEnd := groupStart + s.opts.PagesPerGroup - 1
	if groupEnd > total {
		groupEnd = total
	}
	b.WriteString(`<div class="w2pageList"><ul class="w2pageList_ul">`)
	for p := groupStart; p <= groupEnd; p++ {
		if p == s.page {
			fmt.Fprintf(b, `<li><a class="w2pageList_label_selected" title="%d">%d</a></li>`, p, p)
			continue
		}
		fmt.Fprintf(b, `<li><a href="#" class="w2pageList_label" title="%d" data-action="page" data-page="%d">%d</a></li>`, p, p, p)
	}
	b.WriteString(`</ul><div class="w2pageList_control_next"><a href="#" data-action="next">다음</a></div></div>`)
}

func (s *Site) renderDetail(b *strings.Builder) {
	bid := s.bids[s.detailIndex]
	b.WriteString(`<div id="mf_wfm_container_detail">`)

	if !bid.EmptyDetail {
		// Two pairs per row, the way the portal lays out its detail tables
		b.WriteString(`<table class="w2tb"><tbody>`)
		for i := 0; i < len(bid.Fields); i += 2 {
			b.WriteString("<tr>")
			for j := i; j < i+2 && j < len(bid.Fields); j++ {
				fmt.Fprintf(b, "<th>%s</th><td>%s</td>", esc(bid.Fields[j].Label), esc(bid.Fields[j].Value))
			}
			b.WriteString("</tr>")
		}
		b.WriteString(`</tbody></table>`)

		if len(bid.Attachments) > 0 {
			b.WriteString(`<div class="w2grid_dataLayer"><table><tbody>`)
			for i, att := range bid.Attachments {
				fmt.Fprintf(b, `<tr><td>%d</td><td>공고서</td><td></td><td></td><td>%s</td><td>%s</td></tr>`,
					i+1, esc(att.Name), esc(att.Size))
			}
			b.WriteString(`</tbody></table></div>`)
		}
	}

	b.WriteString(`<input type="button" class="btn_cm list" value="목록" data-action="list"/>`)
	b.WriteString(`</div>`)
}
