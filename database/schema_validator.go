package database

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// ValidationResult represents the result of schema validation for one table
type ValidationResult struct {
	TableName       string   `json:"table_name"`
	IsValid         bool     `json:"is_valid"`
	MissingColumns  []string `json:"missing_columns"`
	MissingIndexes  []string `json:"missing_indexes"`
	Recommendations []string `json:"recommendations"`
}

// SchemaValidator checks that the bids table matches what the store expects
type SchemaValidator struct {
	db *DB
}

// NewSchemaValidator creates a new schema validator instance
func NewSchemaValidator(db *DB) *SchemaValidator {
	return &SchemaValidator{db: db}
}

var requiredBidColumns = []string{"bid_no", "title", "status", "deadline", "fields", "collected_at"}

var requiredBidIndexes = []string{"idx_bids_collected_at", "idx_bids_status"}

// ValidateBidsTable validates the bids table structure
func (v *SchemaValidator) ValidateBidsTable(ctx context.Context) (*ValidationResult, error) {
	result := &ValidationResult{
		TableName:       "bids",
		IsValid:         true,
		MissingColumns:  make([]string, 0),
		MissingIndexes:  make([]string, 0),
		Recommendations: make([]string, 0),
	}

	columns, err := v.tableColumns(ctx, "bids")
	if err != nil {
		return nil, fmt.Errorf("failed to get bids columns: %w", err)
	}
	if len(columns) == 0 {
		result.IsValid = false
		result.MissingColumns = append(result.MissingColumns, "entire table missing")
		result.Recommendations = append(result.Recommendations, "Run the migrate step to create the bids table")
		return result, nil
	}

	for _, column := range requiredBidColumns {
		if !columns[column] {
			result.IsValid = false
			result.MissingColumns = append(result.MissingColumns, column)
		}
	}

	indexes, err := v.indexes(ctx, "bids")
	if err != nil {
		return nil, fmt.Errorf("failed to get bids indexes: %w", err)
	}
	for _, index := range requiredBidIndexes {
		if !indexes[index] {
			result.MissingIndexes = append(result.MissingIndexes, index)
		}
	}

	if len(result.MissingColumns) > 0 {
		result.Recommendations = append(result.Recommendations,
			"Recreate the bids table; existing rows predate the current schema")
	}
	if len(result.MissingIndexes) > 0 {
		result.Recommendations = append(result.Recommendations,
			"Run the migrate step to create missing indexes: "+strings.Join(result.MissingIndexes, ", "))
	}

	return result, nil
}

func (v *SchemaValidator) tableColumns(ctx context.Context, table string) (map[string]bool, error) {
	query := `SELECT name FROM pragma_table_info(?)`
	if v.db.Dialect == DialectPostgres {
		query = `SELECT column_name FROM information_schema.columns WHERE table_schema = current_schema() AND table_name = ?`
	}
	return v.nameSet(ctx, query, table)
}

func (v *SchemaValidator) indexes(ctx context.Context, table string) (map[string]bool, error) {
	query := `SELECT name FROM sqlite_master WHERE type = 'index' AND tbl_name = ?`
	if v.db.Dialect == DialectPostgres {
		query = `SELECT indexname FROM pg_indexes WHERE schemaname = current_schema() AND tablename = ?`
	}
	return v.nameSet(ctx, query, table)
}

func (v *SchemaValidator) nameSet(ctx context.Context, query, arg string) (map[string]bool, error) {
	rows, err := v.db.QueryContext(ctx, v.db.Rebind(query), arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	names := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names[name] = true
	}
	return names, rows.Err()
}

// GenerateSchemaReport renders a validation result as human readable text
func (v *SchemaValidator) GenerateSchemaReport(result *ValidationResult) string {
	var report strings.Builder

	status := "VALID"
	if !result.IsValid {
		status = "INVALID"
	}
	fmt.Fprintf(&report, "Table %s: %s\n", result.TableName, status)

	missing := append([]string(nil), result.MissingColumns...)
	sort.Strings(missing)
	for _, column := range missing {
		fmt.Fprintf(&report, "  missing column: %s\n", column)
	}
	for _, index := range result.MissingIndexes {
		fmt.Fprintf(&report, "  missing index: %s\n", index)
	}
	for _, rec := range result.Recommendations {
		fmt.Fprintf(&report, "  recommendation: %s\n", rec)
	}
	return report.String()
}
