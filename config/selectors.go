package config

import (
	"fmt"
	"time"
)

// Selectors are the portal's WebSquare element locators.
type Selectors struct {
	MenuBidNotices    string // depth 1 "입찰공고"
	MenuBidSubmenu    string // optional depth 2, expanded when present
	MenuBidNoticeList string // depth 3 "입찰공고목록"
	StatusSelect      string
	SearchButton      string
	TotalCount        string

	ListingRows  string
	RowBidNumber string
	RowTitleLink string
	RowStatus    string
	RowDeadline  string

	PageSelected   string
	PageNumberLink string // fmt pattern, %d is the target page
	PageNextArrow  string

	DetailTables   string
	AttachmentRows string
	ListButtons    []string

	PopupClasses []string // removed only while rendered
	ModalClasses []string // removed unconditionally
}

func DefaultSelectors() Selectors {
	return Selectors{
		MenuBidNotices:    "#mf_wfm_gnb_wfm_gnbMenu_genDepth1_1_btn_menuLvl1",
		MenuBidSubmenu:    "#mf_wfm_gnb_wfm_gnbMenu_genDepth1_1_genDepth2_0_btn_menuLvl2",
		MenuBidNoticeList: "#mf_wfm_gnb_wfm_gnbMenu_genDepth1_1_genDepth2_0_genDepth3_0_btn_menuLvl3",
		StatusSelect:      "#mf_wfm_container_sbxPrgrsStts",
		SearchButton:      "#mf_wfm_container_btnS0001",
		TotalCount:        "#mf_wfm_container_tbxTotCnt",

		ListingRows:  "#mf_wfm_container_grdBidPbancList_body_tbody tr.grid_body_row",
		RowBidNumber: "td[col_id='bidPbancNum']",
		RowTitleLink: "td[col_id='bidPbancNm'] a",
		RowStatus:    "td[col_id='pbancSttsGridCdNm']",
		RowDeadline:  "td[col_id='slprRcptDdlnDt']",

		PageSelected:   ".w2pageList_label_selected",
		PageNumberLink: ".w2pageList_ul a[title='%d']",
		PageNextArrow:  ".w2pageList_control_next a",

		DetailTables:   "table.w2tb",
		AttachmentRows: ".w2grid_dataLayer tbody tr",
		ListButtons:    []string{"input[value='목록']", ".btn_cm.list", "a.btn_cm.list"},

		PopupClasses: []string{".w2window", ".w2popup_window"},
		ModalClasses: []string{".w2modal"},
	}
}

// PageLink returns the numbered pagination control for page n
func (s Selectors) PageLink(n int) string {
	return fmt.Sprintf(s.PageNumberLink, n)
}

// RowLink addresses the title link of the 1-based listing row
func (s Selectors) RowLink(row int) string {
	return fmt.Sprintf("%s:nth-child(%d) %s", s.ListingRows, row, s.RowTitleLink)
}

// Timing collects every fixed idle, poll interval and per-wait bound used by the engine.
type Timing struct {
	NavigationTimeout  time.Duration
	ObstructionSettle  time.Duration
	AttemptPause       time.Duration
	HoverPause         time.Duration
	ScriptClickSettle  time.Duration
	MenuSettle         time.Duration
	SubmenuSettle      time.Duration
	ListingSettle      time.Duration
	RowPause           time.Duration
	DetailSettle       time.Duration
	DetailTableTimeout time.Duration
	PageSettle         time.Duration
	PagePollInterval   time.Duration
	PageChangeTimeout  time.Duration
	RecoverySettle     time.Duration
	ListRestoreTimeout time.Duration

	Menu1Timeout time.Duration
	Menu1Retries int
	Menu2Timeout time.Duration
	Menu2Retries int
	Menu3Timeout time.Duration
	Menu3Retries int
	ClickTimeout time.Duration
	ClickRetries int
}

func DefaultTiming() Timing {
	return Timing{
		NavigationTimeout:  30 * time.Second,
		ObstructionSettle:  500 * time.Millisecond,
		AttemptPause:       500 * time.Millisecond,
		HoverPause:         300 * time.Millisecond,
		ScriptClickSettle:  300 * time.Millisecond,
		MenuSettle:         time.Second,
		SubmenuSettle:      500 * time.Millisecond,
		ListingSettle:      2 * time.Second,
		RowPause:           time.Second,
		DetailSettle:       3 * time.Second,
		DetailTableTimeout: 5 * time.Second,
		PageSettle:         time.Second,
		PagePollInterval:   500 * time.Millisecond,
		PageChangeTimeout:  15 * time.Second,
		RecoverySettle:     time.Second,
		ListRestoreTimeout: 10 * time.Second,

		Menu1Timeout: 10 * time.Second,
		Menu1Retries: 4,
		Menu2Timeout: 5 * time.Second,
		Menu2Retries: 2,
		Menu3Timeout: 7 * time.Second,
		Menu3Retries: 4,
		ClickTimeout: 5 * time.Second,
		ClickRetries: 3,
	}
}
