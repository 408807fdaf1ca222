package services

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fenilmodi00/nuri-bid-crawler/browser/browsertest"
	"github.com/fenilmodi00/nuri-bid-crawler/database"
	"github.com/fenilmodi00/nuri-bid-crawler/models"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

type staticLister []models.BidRecord

func (l staticLister) List(ctx context.Context, opts database.ListOptions) ([]models.BidRecord, error) {
	return l, nil
}

func exportFixture() staticLister {
	return staticLister{{
		BidNumber: "R24BK00000001",
		Title:     "청사 청소용역",
		Status:    "입찰개시",
		Deadline:  "2024/05/23 10:00",
		Fields: models.NewFieldSet(
			models.Field{Label: "공고명", Value: "청사 청소용역"},
			models.Field{Label: "공고기관", Value: "조달청"},
		),
		Attachments: []string{"공고서.hwp (120KB)"},
		CollectedAt: time.Date(2024, 5, 20, 3, 0, 0, 0, time.UTC),
	}}
}

func newTestExporter(lister BidLister) *ExportService {
	svc := NewExportService(lister, quietLogger())
	svc.now = func() time.Time { return time.Date(2024, 5, 20, 9, 30, 15, 0, time.UTC) }
	return svc
}

func TestExportJSON(t *testing.T) {
	dir := t.TempDir()
	result, err := newTestExporter(exportFixture()).Export(context.Background(), dir, "JSON")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "bids_20240520_093015.json"), result.Path)
	require.Equal(t, 1, result.Records)

	data, err := os.ReadFile(result.Path)
	require.NoError(t, err)

	var doc struct {
		Count int `json:"count"`
		Bids  []struct {
			BidNumber string          `json:"bid_number"`
			Fields    json.RawMessage `json:"fields"`
		} `json:"bids"`
	}
	require.NoError(t, json.Unmarshal(data, &doc))
	require.Equal(t, 1, doc.Count)
	require.Equal(t, "R24BK00000001", doc.Bids[0].BidNumber)
	require.JSONEq(t, `{"공고명":"청사 청소용역","공고기관":"조달청"}`, string(doc.Bids[0].Fields))
}

func TestExportYAMLKeepsFieldOrder(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "exports")
	result, err := newTestExporter(exportFixture()).Export(context.Background(), dir, "yml")
	require.NoError(t, err)
	require.Equal(t, "yaml", result.Format)
	require.Equal(t, "bids_20240520_093015.yaml", filepath.Base(result.Path))

	data, err := os.ReadFile(result.Path)
	require.NoError(t, err)

	require.Contains(t, string(data), "공고명: 청사 청소용역\n")

	var parsed struct {
		Count int `yaml:"count"`
		Bids  []struct {
			Fields yaml.Node `yaml:"fields"`
		} `yaml:"bids"`
	}
	require.NoError(t, yaml.Unmarshal(data, &parsed))
	require.Equal(t, 1, parsed.Count)
	keys := parsed.Bids[0].Fields.Content
	require.Len(t, keys, 4)
	require.Equal(t, "공고명", keys[0].Value)
	require.Equal(t, "공고기관", keys[2].Value)
}

func TestExportRejectsUnknownFormat(t *testing.T) {
	_, err := newTestExporter(exportFixture()).Export(context.Background(), t.TempDir(), "csv")
	require.Error(t, err)
}

func TestExportFromStore(t *testing.T) {
	h := newHarness(t, portalBids(3), browsertest.Options{})
	_, err := h.run(t)
	require.NoError(t, err)

	result, err := newTestExporter(h.store).Export(context.Background(), t.TempDir(), "json")
	require.NoError(t, err)
	require.Equal(t, 3, result.Records)
}
