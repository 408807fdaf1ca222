package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	for _, key := range []string{"TARGET_URL", "DATABASE_URL", "STATUS_FILTER", "RETENTION_DAYS", "HEADLESS", "NAVIGATION_TIMEOUT_SECONDS", "DETAIL_MIN_INTERVAL_MS"} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}

	cfg := LoadConfig()
	require.Equal(t, "https://nuri.g2b.go.kr/", cfg.TargetURL)
	require.Equal(t, "입찰개시", cfg.StatusFilter)
	require.Equal(t, 31, cfg.RetentionDays)
	require.Equal(t, 31*24*time.Hour, cfg.RetentionWindow())
	require.True(t, cfg.Headless)
	require.Equal(t, time.Second, cfg.DetailMinInterval)
	require.Equal(t, DefaultTiming().NavigationTimeout, cfg.Timing.NavigationTimeout)
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://crawler@localhost/bids")
	t.Setenv("RETENTION_DAYS", "7")
	t.Setenv("HEADLESS", "false")
	t.Setenv("NAVIGATION_TIMEOUT_SECONDS", "45")
	t.Setenv("DETAIL_MIN_INTERVAL_MS", "250")

	cfg := LoadConfig()
	require.Equal(t, "postgres://crawler@localhost/bids", cfg.DatabaseURL)
	require.Equal(t, 7, cfg.RetentionDays)
	require.False(t, cfg.Headless)
	require.Equal(t, 45*time.Second, cfg.Timing.NavigationTimeout)
	require.Equal(t, 250*time.Millisecond, cfg.DetailMinInterval)
}

func TestInvalidValuesFallBack(t *testing.T) {
	t.Setenv("RETENTION_DAYS", "a month")
	t.Setenv("HEADLESS", "maybe")
	require.Equal(t, 31, getEnvInt("RETENTION_DAYS", 31))
	require.True(t, getEnvBool("HEADLESS", true))

	t.Setenv("RETENTION_DAYS", "-3")
	require.Equal(t, 31, getEnvInt("RETENTION_DAYS", 31))

	t.Setenv("NAVIGATION_TIMEOUT_SECONDS", "0")
	require.Equal(t, 30*time.Second, getEnvSeconds("NAVIGATION_TIMEOUT_SECONDS", 30*time.Second))
}

func TestLocation(t *testing.T) {
	cfg := &Config{TimeZone: "Asia/Seoul"}
	require.Equal(t, "Asia/Seoul", cfg.Location().String())

	cfg.TimeZone = "Mars/Olympus"
	require.Equal(t, time.Local, cfg.Location())

	cfg.TimeZone = ""
	require.Equal(t, time.Local, cfg.Location())
}

func TestSelectorBuilders(t *testing.T) {
	s := DefaultSelectors()
	require.Equal(t, ".w2pageList_ul a[title='3']", s.PageLink(3))
	require.Equal(t,
		"#mf_wfm_container_grdBidPbancList_body_tbody tr.grid_body_row:nth-child(2) td[col_id='bidPbancNm'] a",
		s.RowLink(2))
}
