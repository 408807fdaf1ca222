package services

import (
	"context"
	"testing"

	"github.com/fenilmodi00/nuri-bid-crawler/browser/browsertest"
	"github.com/fenilmodi00/nuri-bid-crawler/config"
	"github.com/stretchr/testify/require"
)

func openHome(t *testing.T, site *browsertest.Site) {
	t.Helper()
	require.NoError(t, site.Navigate(context.Background(), "https://nuri.example.test/"))
}

func TestActuatorVisibleClick(t *testing.T) {
	site := browsertest.NewSite(nil, browsertest.Options{})
	openHome(t, site)
	_, actuator := newPageComponents(site, fastTiming())
	sel := config.DefaultSelectors()

	require.True(t, actuator.Act(context.Background(), Action{Selector: sel.MenuBidNotices, Label: "menu1", Retries: 3}))
	require.Equal(t, int64(1), actuator.Metrics().Counter("attempts"))
	require.Equal(t, int64(1), actuator.Metrics().Counter("strategy:visible_click"))
	require.Zero(t, site.ScriptClicks())
}

func TestActuatorFallsBackToScriptClick(t *testing.T) {
	sel := config.DefaultSelectors()
	site := browsertest.NewSite(nil, browsertest.Options{ClickFailures: map[string]int{sel.MenuBidNotices: 1}})
	openHome(t, site)
	_, actuator := newPageComponents(site, fastTiming())

	require.True(t, actuator.Act(context.Background(), Action{Selector: sel.MenuBidNotices, Retries: 3}))
	require.Equal(t, 1, site.ScriptClicks())
	require.Equal(t, int64(1), actuator.Metrics().Counter("strategy:script_click"))
}

func TestActuatorRevealsHiddenMenuByHover(t *testing.T) {
	sel := config.DefaultSelectors()
	site := browsertest.NewSite(nil, browsertest.Options{Menu3NeedsHover: true})
	openHome(t, site)
	_, actuator := newPageComponents(site, fastTiming())
	ctx := context.Background()

	require.True(t, actuator.Act(ctx, Action{Selector: sel.MenuBidNotices, Retries: 1}))
	require.True(t, actuator.Act(ctx, Action{Selector: sel.MenuBidNoticeList, RevealHint: sel.MenuBidNotices, Retries: 1}))
	require.Equal(t, int64(1), actuator.Metrics().Counter("strategy:hover_reveal"))
	require.Zero(t, site.ScriptClicks())
}

func TestActuatorClearsPopupsFirst(t *testing.T) {
	sel := config.DefaultSelectors()
	site := browsertest.NewSite(nil, browsertest.Options{HomePopups: 3})
	openHome(t, site)
	clearer, actuator := newPageComponents(site, fastTiming())

	require.True(t, actuator.Act(context.Background(), Action{Selector: sel.MenuBidNotices, Retries: 1}))
	require.Equal(t, 3, site.RemovedPopups())
	require.Equal(t, 3, clearer.Cleared())
	require.Equal(t, int64(1), actuator.Metrics().Counter("strategy:visible_click"))
}

func TestActuatorGivesUpAfterRetries(t *testing.T) {
	site := browsertest.NewSite(nil, browsertest.Options{})
	openHome(t, site)
	_, actuator := newPageComponents(site, fastTiming())

	require.False(t, actuator.Act(context.Background(), Action{Selector: "#missing", Retries: 4}))
	require.Equal(t, int64(4), actuator.Metrics().Counter("attempts"))
	require.Equal(t, int64(1), actuator.Metrics().Counter("exhausted"))
}

func TestActuatorStopsOnCancelledContext(t *testing.T) {
	site := browsertest.NewSite(nil, browsertest.Options{})
	openHome(t, site)
	_, actuator := newPageComponents(site, fastTiming())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.False(t, actuator.Act(ctx, Action{Selector: config.DefaultSelectors().MenuBidNotices, Retries: 5}))
	require.Zero(t, actuator.Metrics().Counter("attempts"))
}
