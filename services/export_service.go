package services

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fenilmodi00/nuri-bid-crawler/database"
	"github.com/fenilmodi00/nuri-bid-crawler/models"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// BidLister reads stored records
type BidLister interface {
	List(ctx context.Context, opts database.ListOptions) ([]models.BidRecord, error)
}

// ExportService writes every stored record to a timestamped file
type ExportService struct {
	store  BidLister
	now    func() time.Time
	logger *logrus.Entry
}

// ExportResult describes a written export file
type ExportResult struct {
	Path    string `json:"path"`
	Format  string `json:"format"`
	Records int    `json:"records"`
}

// NewExportService creates a new exporter over store
func NewExportService(store BidLister, logger *logrus.Entry) *ExportService {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &ExportService{
		store:  store,
		now:    time.Now,
		logger: logger.WithField("component", "ExportService"),
	}
}

type exportDocument struct {
	ExportedAt time.Time          `json:"exported_at" yaml:"exported_at"`
	Count      int                `json:"count" yaml:"count"`
	Bids       []models.BidRecord `json:"bids" yaml:"bids"`
}

// Export writes bids_<timestamp>.<format> under dir. format is json or yaml.
func (s *ExportService) Export(ctx context.Context, dir, format string) (*ExportResult, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "yml" {
		format = "yaml"
	}
	if format != "json" && format != "yaml" {
		return nil, fmt.Errorf("unsupported export format %q", format)
	}

	records, err := s.store.List(ctx, database.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to load records: %w", err)
	}

	now := s.now()
	doc := exportDocument{ExportedAt: now, Count: len(records), Bids: records}

	var data []byte
	if format == "json" {
		data, err = json.MarshalIndent(doc, "", "  ")
	} else {
		data, err = yaml.Marshal(doc)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to encode export: %w", err)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create export directory: %w", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("bids_%s.%s", now.Format("20060102_150405"), format))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return nil, fmt.Errorf("failed to write export: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"path":    path,
		"format":  format,
		"records": len(records),
	}).Info("Exported bid records")
	return &ExportResult{Path: path, Format: format, Records: len(records)}, nil
}
