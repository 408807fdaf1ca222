package commands

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fenilmodi00/nuri-bid-crawler/config"
	"github.com/fenilmodi00/nuri-bid-crawler/database"
	"github.com/fenilmodi00/nuri-bid-crawler/models"
	"github.com/fenilmodi00/nuri-bid-crawler/services"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func TestSetupLogging(t *testing.T) {
	logger := logrus.New()
	var stdout bytes.Buffer

	closer, err := setupLogging(logger, "DEBUG", "json", "", &stdout)
	require.NoError(t, err)
	require.Nil(t, closer)
	require.Equal(t, logrus.DebugLevel, logger.GetLevel())
	_, isJSON := logger.Formatter.(*logrus.JSONFormatter)
	require.True(t, isJSON)

	_, err = setupLogging(logger, "loud", "text", "", &stdout)
	require.NoError(t, err)
	require.Equal(t, logrus.InfoLevel, logger.GetLevel())
	_, isText := logger.Formatter.(*logrus.TextFormatter)
	require.True(t, isText)
}

func TestSetupLoggingTeesIntoFile(t *testing.T) {
	logger := logrus.New()
	var stdout bytes.Buffer
	path := filepath.Join(t.TempDir(), "crawler.log")

	closer, err := setupLogging(logger, "info", "text", path, &stdout)
	require.NoError(t, err)
	require.NotNil(t, closer)

	logger.Info("run finished")
	require.NoError(t, closer.Close())

	written, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(written), "run finished")
	require.Contains(t, stdout.String(), "run finished")
}

func TestSetupLoggingBadPath(t *testing.T) {
	_, err := setupLogging(logrus.New(), "info", "text", filepath.Join(t.TempDir(), "missing", "x.log"), &bytes.Buffer{})
	require.Error(t, err)
}

func TestScheduleFromFlags(t *testing.T) {
	seoul := time.FixedZone("KST", 9*3600)

	s, err := scheduleFromFlags(8*time.Hour, "", seoul)
	require.NoError(t, err)
	require.Equal(t, "every 8h0m0s", s.String())

	s, err = scheduleFromFlags(0, "18:00,09:00", seoul)
	require.NoError(t, err)
	require.Equal(t, "daily at 09:00,18:00 KST", s.String())

	_, err = scheduleFromFlags(time.Hour, "09:00", seoul)
	require.Error(t, err)

	_, err = scheduleFromFlags(0, "", seoul)
	require.Error(t, err)

	_, err = scheduleFromFlags(0, "25:00", seoul)
	require.Error(t, err)
}

func TestDoctorVerdict(t *testing.T) {
	require.Equal(t, "HEALTHY", doctorVerdict(4, 4))
	require.Equal(t, "DEGRADED", doctorVerdict(2, 4))
	require.Equal(t, "UNHEALTHY", doctorVerdict(1, 4))
}

type portalFunc func(ctx context.Context, url string) (*services.PreflightResult, error)

func (f portalFunc) Check(ctx context.Context, url string) (*services.PreflightResult, error) {
	return f(ctx, url)
}

func doctorConfig(t *testing.T) *config.Config {
	return &config.Config{
		TargetURL:   "https://portal.invalid/",
		DatabaseURL: "sqlite://" + filepath.Join(t.TempDir(), "bids.db"),
		TimeZone:    "UTC",
		Database:    config.DefaultDatabaseConfig(),
	}
}

func TestRunDoctorHealthy(t *testing.T) {
	cfg := doctorConfig(t)
	db, store, err := openStore(context.Background(), cfg)
	require.NoError(t, err)
	require.NoError(t, store.Upsert(context.Background(), &models.BidRecord{BidNumber: "B-1", Title: "one", Status: "입찰개시"}))
	require.NoError(t, db.Close())

	var checkedURL string
	checks := runDoctor(context.Background(), cfg, portalFunc(func(ctx context.Context, url string) (*services.PreflightResult, error) {
		checkedURL = url
		return &services.PreflightResult{URL: url, StatusCode: 200, Title: "누리장터"}, nil
	}))

	require.Equal(t, cfg.TargetURL, checkedURL)
	require.Len(t, checks, 4)
	for _, c := range checks {
		require.True(t, c.OK, "%s: %s", c.Name, c.Detail)
	}
	require.Equal(t, "1 records", checks[2].Detail)

	var out bytes.Buffer
	require.Equal(t, "HEALTHY", printDoctor(&out, checks))
	require.Contains(t, out.String(), "4/4 checks passed")
}

func TestRunDoctorUnmigratedAndPortalDown(t *testing.T) {
	cfg := doctorConfig(t)
	checks := runDoctor(context.Background(), cfg, portalFunc(func(ctx context.Context, url string) (*services.PreflightResult, error) {
		return nil, errors.New("connection refused")
	}))

	require.Len(t, checks, 4)
	require.True(t, checks[0].OK)
	require.False(t, checks[1].OK, "schema should be reported invalid before migration")
	require.False(t, checks[3].OK)
	require.Equal(t, "connection refused", checks[3].Detail)
}

func TestRunDoctorUnsupportedDatabase(t *testing.T) {
	cfg := doctorConfig(t)
	cfg.DatabaseURL = "mysql://nope"
	checks := runDoctor(context.Background(), cfg, portalFunc(func(ctx context.Context, url string) (*services.PreflightResult, error) {
		return &services.PreflightResult{StatusCode: 200}, nil
	}))

	require.False(t, checks[0].OK)
	require.Equal(t, "skipped", checks[1].Detail)
	require.Equal(t, "skipped", checks[2].Detail)
	require.True(t, checks[3].OK)

	var out bytes.Buffer
	require.Equal(t, "UNHEALTHY", printDoctor(&out, checks[:3]))
}

func TestRenderBids(t *testing.T) {
	collected := time.Date(2024, 5, 20, 9, 30, 0, 0, time.UTC)
	var out bytes.Buffer
	renderBids(&out, []models.BidRecord{
		{BidNumber: "R24BK00000001", Status: "입찰개시", Deadline: "2024/05/23 10:00", Title: "청사 청소용역", CollectedAt: collected},
	}, 7)

	rendered := out.String()
	require.Contains(t, rendered, "R24BK00000001")
	require.Contains(t, rendered, "2024-05-20 09:30")
	require.True(t, strings.Contains(rendered, "1 / 7"))
}

func TestOpenStoreMigrates(t *testing.T) {
	cfg := doctorConfig(t)
	db, store, err := openStore(context.Background(), cfg)
	require.NoError(t, err)
	defer db.Close()

	_, err = store.Get(context.Background(), "missing")
	require.ErrorIs(t, err, database.ErrBidNotFound)
}
