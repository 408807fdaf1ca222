package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/fenilmodi00/nuri-bid-crawler/models"
	"github.com/fenilmodi00/nuri-bid-crawler/shared"
	"github.com/sirupsen/logrus"
)

// ErrBidNotFound is returned by Get when no record has the requested bid number
var ErrBidNotFound = errors.New("bid not found")

// BidStore persists bid records keyed by bid number
type BidStore struct {
	db       *DB
	location *time.Location
	logger   *logrus.Entry
	now      func() time.Time
}

// ListOptions narrows List results
type ListOptions struct {
	Status string
	Limit  int
	Offset int
}

// fieldsDocument is the JSON stored in the fields column
type fieldsDocument struct {
	Fields      models.FieldSet `json:"fields"`
	Attachments []string        `json:"attachments"`
}

// NewBidStore creates a store. Deadlines are interpreted in location during purges.
func NewBidStore(db *DB, location *time.Location, logger *logrus.Entry) *BidStore {
	if location == nil {
		location = time.Local
	}
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &BidStore{
		db:       db,
		location: location,
		logger:   logger.WithField("component", "BidStore"),
		now:      time.Now,
	}
}

// WithClock replaces the clock used to stamp collected_at
func (s *BidStore) WithClock(now func() time.Time) *BidStore {
	s.now = now
	return s
}

// WithLogger returns a copy of the store that logs on logger
func (s *BidStore) WithLogger(logger *logrus.Entry) *BidStore {
	clone := *s
	clone.logger = logger.WithField("component", "BidStore")
	return &clone
}

func (s *BidStore) dbError(err error, code, operation string) error {
	return shared.WrapError(err, shared.ErrorCategoryDatabase, code, "BidStore", operation, shared.IsRetryableError(err))
}

// GetMeta returns the stored status and deadline, or nil when the bid is absent
func (s *BidStore) GetMeta(ctx context.Context, bidNo string) (*models.BidMeta, error) {
	var meta models.BidMeta
	err := s.db.QueryRowContext(ctx,
		s.db.Rebind(`SELECT status, deadline FROM bids WHERE bid_no = ?`), bidNo,
	).Scan(&meta.Status, &meta.Deadline)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, s.dbError(err, "GET_META_FAILED", "GetMeta")
	}
	return &meta, nil
}

// Delete removes a record; deleting an absent bid is not an error
func (s *BidStore) Delete(ctx context.Context, bidNo string) error {
	if _, err := s.db.ExecContext(ctx, s.db.Rebind(`DELETE FROM bids WHERE bid_no = ?`), bidNo); err != nil {
		return s.dbError(err, "DELETE_FAILED", "Delete")
	}
	s.logger.WithField("bid_no", bidNo).Debug("Deleted bid record")
	return nil
}

// Upsert inserts or fully replaces a record and stamps CollectedAt
func (s *BidStore) Upsert(ctx context.Context, rec *models.BidRecord) error {
	if rec == nil || rec.BidNumber == "" {
		return shared.NewServiceError(shared.ErrorCategoryDatabase, "INVALID_RECORD",
			"record has no bid number", "BidStore", "Upsert", false, nil)
	}

	attachments := rec.Attachments
	if attachments == nil {
		attachments = []string{}
	}
	blob, err := json.Marshal(fieldsDocument{Fields: rec.Fields, Attachments: attachments})
	if err != nil {
		return shared.WrapError(err, shared.ErrorCategoryDatabase, "ENCODE_FAILED", "BidStore", "Upsert", false)
	}

	rec.CollectedAt = s.now().UTC()

	query := `
		INSERT INTO bids (bid_no, title, status, deadline, fields, collected_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (bid_no) DO UPDATE SET
			title = excluded.title,
			status = excluded.status,
			deadline = excluded.deadline,
			fields = excluded.fields,
			collected_at = excluded.collected_at`

	if _, err := s.db.ExecContext(ctx, s.db.Rebind(query),
		rec.BidNumber, rec.Title, rec.Status, rec.Deadline, string(blob), rec.CollectedAt,
	); err != nil {
		return s.dbError(err, "UPSERT_FAILED", "Upsert")
	}

	s.logger.WithFields(logrus.Fields{
		"bid_no":      rec.BidNumber,
		"fields":      rec.Fields.Len(),
		"attachments": len(rec.Attachments),
	}).Debug("Upserted bid record")
	return nil
}

// PatchDeadline sets only the deadline of an existing record
func (s *BidStore) PatchDeadline(ctx context.Context, bidNo, deadline string) error {
	res, err := s.db.ExecContext(ctx,
		s.db.Rebind(`UPDATE bids SET deadline = ? WHERE bid_no = ?`), deadline, bidNo)
	if err != nil {
		return s.dbError(err, "PATCH_FAILED", "PatchDeadline")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		s.logger.WithField("bid_no", bidNo).Warn("Deadline patch matched no record")
	}
	return nil
}

// PurgeExpiredOrStale deletes records whose deadline is earlier than now or whose
// collected_at is older than maxAge. Empty or unparseable deadlines only age out.
func (s *BidStore) PurgeExpiredOrStale(ctx context.Context, maxAge time.Duration, now time.Time) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, s.dbError(err, "PURGE_FAILED", "PurgeExpiredOrStale")
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, `SELECT bid_no, deadline, collected_at FROM bids`)
	if err != nil {
		return 0, s.dbError(err, "PURGE_FAILED", "PurgeExpiredOrStale")
	}

	cutoff := now.Add(-maxAge)
	var doomed []string
	for rows.Next() {
		var (
			bidNo       string
			deadline    string
			collectedAt time.Time
		)
		if err := rows.Scan(&bidNo, &deadline, &collectedAt); err != nil {
			rows.Close()
			return 0, s.dbError(err, "PURGE_FAILED", "PurgeExpiredOrStale")
		}
		if d := models.ParseDeadline(deadline, s.location); d != nil && d.Before(now) {
			doomed = append(doomed, bidNo)
			continue
		}
		if collectedAt.Before(cutoff) {
			doomed = append(doomed, bidNo)
		}
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return 0, s.dbError(err, "PURGE_FAILED", "PurgeExpiredOrStale")
	}
	rows.Close()

	deleteQuery := s.db.Rebind(`DELETE FROM bids WHERE bid_no = ?`)
	for _, bidNo := range doomed {
		if _, err := tx.ExecContext(ctx, deleteQuery, bidNo); err != nil {
			return 0, s.dbError(err, "PURGE_FAILED", "PurgeExpiredOrStale")
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, s.dbError(err, "PURGE_FAILED", "PurgeExpiredOrStale")
	}

	s.logger.WithFields(logrus.Fields{
		"purged":  len(doomed),
		"max_age": maxAge,
	}).Info("Purged expired and stale bid records")
	return len(doomed), nil
}

// Get loads a full record
func (s *BidStore) Get(ctx context.Context, bidNo string) (*models.BidRecord, error) {
	row := s.db.QueryRowContext(ctx, s.db.Rebind(
		`SELECT bid_no, title, status, deadline, fields, collected_at FROM bids WHERE bid_no = ?`), bidNo)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrBidNotFound
	}
	if err != nil {
		return nil, s.dbError(err, "GET_FAILED", "Get")
	}
	return rec, nil
}

// List returns records, most recently collected first
func (s *BidStore) List(ctx context.Context, opts ListOptions) ([]models.BidRecord, error) {
	query := `SELECT bid_no, title, status, deadline, fields, collected_at FROM bids`
	var args []interface{}
	if opts.Status != "" {
		query += ` WHERE status = ?`
		args = append(args, opts.Status)
	}
	query += ` ORDER BY collected_at DESC, bid_no`
	if opts.Limit > 0 {
		query += ` LIMIT ? OFFSET ?`
		args = append(args, opts.Limit, opts.Offset)
	}

	rows, err := s.db.QueryContext(ctx, s.db.Rebind(query), args...)
	if err != nil {
		return nil, s.dbError(err, "LIST_FAILED", "List")
	}
	defer rows.Close()

	records := make([]models.BidRecord, 0)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, s.dbError(err, "LIST_FAILED", "List")
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, s.dbError(err, "LIST_FAILED", "List")
	}
	return records, nil
}

// Count returns the number of stored records
func (s *BidStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM bids`).Scan(&n); err != nil {
		return 0, s.dbError(err, "COUNT_FAILED", "Count")
	}
	return n, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(row rowScanner) (*models.BidRecord, error) {
	var (
		rec  models.BidRecord
		blob string
	)
	if err := row.Scan(&rec.BidNumber, &rec.Title, &rec.Status, &rec.Deadline, &blob, &rec.CollectedAt); err != nil {
		return nil, err
	}
	var doc fieldsDocument
	if blob != "" {
		if err := json.Unmarshal([]byte(blob), &doc); err != nil {
			return nil, fmt.Errorf("decode fields of %s: %w", rec.BidNumber, err)
		}
	}
	rec.Fields = doc.Fields
	rec.Attachments = doc.Attachments
	if rec.Attachments == nil {
		rec.Attachments = []string{}
	}
	return &rec, nil
}
