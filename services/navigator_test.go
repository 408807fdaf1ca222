package services

import (
	"context"
	"testing"

	"github.com/fenilmodi00/nuri-bid-crawler/browser/browsertest"
	"github.com/fenilmodi00/nuri-bid-crawler/config"
	"github.com/fenilmodi00/nuri-bid-crawler/shared"
	"github.com/stretchr/testify/require"
)

func newTestNavigator(site *browsertest.Site, mutate func(*NavigatorConfig)) *Navigator {
	clearer, actuator := newPageComponents(site, fastTiming())
	cfg := NavigatorConfig{
		TargetURL:    "https://nuri.example.test/",
		StatusFilter: "입찰개시",
		Selectors:    config.DefaultSelectors(),
		Timing:       fastTiming(),
	}
	if mutate != nil {
		mutate(&cfg)
	}
	return NewNavigator(site, actuator, clearer, cfg, quietLogger())
}

func TestOpenListingAppliesStatusFilter(t *testing.T) {
	site := browsertest.NewSite(portalBids(2), browsertest.Options{HomePopups: 1})
	nav := newTestNavigator(site, nil)

	require.NoError(t, nav.OpenListing(context.Background()))
	require.Equal(t, "입찰개시", site.SelectedStatus())
	require.Equal(t, 1, site.SearchClicks())
	require.Equal(t, 1, site.Navigations())
	require.Equal(t, 1, site.RemovedPopups())
}

func TestOpenListingWithoutSubmenu(t *testing.T) {
	site := browsertest.NewSite(portalBids(1), browsertest.Options{HideSubmenu: true})
	nav := newTestNavigator(site, nil)

	require.NoError(t, nav.OpenListing(context.Background()))
	require.Equal(t, 1, site.SearchClicks())
}

func TestOpenListingUnknownStatusSearchesUnfiltered(t *testing.T) {
	site := browsertest.NewSite(portalBids(1), browsertest.Options{})
	nav := newTestNavigator(site, func(cfg *NavigatorConfig) { cfg.StatusFilter = "없는상태" })

	require.NoError(t, nav.OpenListing(context.Background()))
	require.Equal(t, "", site.SelectedStatus())
	require.Equal(t, 1, site.SearchClicks())
}

func TestOpenListingMissingMenuIsFatal(t *testing.T) {
	site := browsertest.NewSite(portalBids(1), browsertest.Options{})
	nav := newTestNavigator(site, func(cfg *NavigatorConfig) { cfg.Selectors.MenuBidNoticeList = "#gone" })

	err := nav.OpenListing(context.Background())
	require.ErrorIs(t, err, shared.ErrNavigationFailed)
	require.False(t, shared.IsRetryableError(err))
	require.Zero(t, site.SearchClicks())
}

func TestOpenListingEmptyResult(t *testing.T) {
	site := browsertest.NewSite(nil, browsertest.Options{})
	nav := newTestNavigator(site, nil)

	require.NoError(t, nav.OpenListing(context.Background()))
	require.Equal(t, 1, site.SearchClicks())
}

func TestReturnToListingUsesListButton(t *testing.T) {
	site := browsertest.NewSite(portalBids(2), browsertest.Options{DetailPopups: 2})
	nav := newTestNavigator(site, nil)
	ctx := context.Background()
	require.NoError(t, nav.OpenListing(ctx))
	require.True(t, nav.actuator.Act(ctx, Action{Selector: nav.selectors.RowLink(2), Retries: 1}))

	researched, err := nav.ReturnToListing(ctx)
	require.NoError(t, err)
	require.False(t, researched)
	require.Equal(t, 1, site.ListButtonHits())
	require.Equal(t, 1, site.SearchClicks())

	rows, err := ParseListingHTML(mustHTML(t, site), nav.selectors)
	require.NoError(t, err)
	require.Len(t, rows, 2)
}

func TestReturnToListingFallsBackToSearch(t *testing.T) {
	site := browsertest.NewSite(portalBids(25), browsertest.Options{BrokenListButton: true})
	nav := newTestNavigator(site, nil)
	ctx := context.Background()
	require.NoError(t, nav.OpenListing(ctx))
	require.True(t, nav.actuator.Act(ctx, Action{Selector: nav.selectors.PageLink(2), Retries: 1}))
	require.Equal(t, 2, site.CurrentPage())
	require.True(t, nav.actuator.Act(ctx, Action{Selector: nav.selectors.RowLink(1), Retries: 1}))

	researched, err := nav.ReturnToListing(ctx)
	require.NoError(t, err)
	require.True(t, researched)
	require.Equal(t, 2, site.SearchClicks())
	require.Equal(t, 1, site.CurrentPage())
}

func TestReturnToListingFailsWhenSearchIsGone(t *testing.T) {
	site := browsertest.NewSite(portalBids(1), browsertest.Options{BrokenListButton: true})
	nav := newTestNavigator(site, nil)
	ctx := context.Background()
	require.NoError(t, nav.OpenListing(ctx))
	require.True(t, nav.actuator.Act(ctx, Action{Selector: nav.selectors.RowLink(1), Retries: 1}))

	nav.selectors.SearchButton = "#gone"
	_, err := nav.ReturnToListing(ctx)
	require.ErrorIs(t, err, shared.ErrRecoveryFailed)
	require.ErrorIs(t, err, shared.ErrNavigationFailed)
	require.Equal(t, shared.ErrorCategoryRecovery, shared.CategoryOf(err))
}

func mustHTML(t *testing.T, site *browsertest.Site) string {
	t.Helper()
	html, err := site.HTML(context.Background())
	require.NoError(t, err)
	return html
}
