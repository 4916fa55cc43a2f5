package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/yberthe/call-triage/internal/session"
	"github.com/yberthe/call-triage/pkg/logger"

	_ "modernc.org/sqlite"
)

// ReportStorage persists triage reports. It implements session.ReportSink;
// the triage core only ever writes through it.
type ReportStorage struct {
	db     *sql.DB
	logger *logger.Logger
}

var _ session.ReportSink = (*ReportStorage)(nil)

// Open opens (or creates) the SQLite database at the given path.
func Open(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, nil
}

// NewReportStorage creates a new SQLite report storage.
func NewReportStorage(db *sql.DB, log *logger.Logger) *ReportStorage {
	storage := &ReportStorage{
		db:     db,
		logger: log.Named("sqlite-reports"),
	}

	if err := storage.initDB(); err != nil {
		storage.logger.Error("Failed to initialize report storage", logger.Error(err))
	}

	return storage
}

// initDB initializes the database tables
func (s *ReportStorage) initDB() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS triage_reports (
			id TEXT PRIMARY KEY,
			call_id TEXT NOT NULL,
			tier TEXT NOT NULL,
			score INTEGER NOT NULL,
			summary TEXT NOT NULL,
			confidence REAL NOT NULL,
			matched_criteria TEXT NOT NULL,
			is_partial INTEGER NOT NULL,
			facility_name TEXT,
			facility_distance_km REAL,
			eta_minutes INTEGER,
			created_at TIMESTAMP NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create triage_reports table: %w", err)
	}

	indexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_reports_call_id ON triage_reports(call_id)`,
		`CREATE INDEX IF NOT EXISTS idx_reports_tier ON triage_reports(tier)`,
		`CREATE INDEX IF NOT EXISTS idx_reports_created_at ON triage_reports(created_at)`,
	}

	for _, indexSQL := range indexes {
		if _, err = s.db.Exec(indexSQL); err != nil {
			return fmt.Errorf("failed to create report index: %w", err)
		}
	}

	return nil
}

// StoreReport persists one triage report.
func (s *ReportStorage) StoreReport(ctx context.Context, report *session.Report) error {
	criteriaJSON, err := json.Marshal(report.MatchedCriteria)
	if err != nil {
		return fmt.Errorf("failed to marshal criteria: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO triage_reports
		(id, call_id, tier, score, summary, confidence, matched_criteria, is_partial, facility_name, facility_distance_km, eta_minutes, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		report.ID,
		report.CallID,
		string(report.Tier),
		report.Score,
		report.Summary,
		report.Confidence,
		string(criteriaJSON),
		report.IsPartial,
		report.FacilityName,
		report.FacilityDistanceKm,
		report.ETAMinutes,
		report.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to insert triage report: %w", err)
	}

	s.logger.Debug("Stored triage report",
		logger.String("id", report.ID),
		logger.String("call_id", report.CallID),
		logger.String("tier", string(report.Tier)))
	return nil
}

// GetReportsByCallID returns the reports for a call, most recent first.
// Used by the dispatcher console API, never by the triage core itself.
func (s *ReportStorage) GetReportsByCallID(callID string, limit int) ([]*ReportRecord, error) {
	rows, err := s.db.Query(
		`SELECT id, call_id, tier, score, summary, confidence, matched_criteria, is_partial, facility_name, facility_distance_km, eta_minutes, created_at
		FROM triage_reports
		WHERE call_id = ?
		ORDER BY created_at DESC
		LIMIT ?`,
		callID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query reports by call_id: %w", err)
	}
	defer rows.Close()

	return s.scanReportRows(rows)
}

// GetRecentReports returns recent reports across all calls.
func (s *ReportStorage) GetRecentReports(limit int) ([]*ReportRecord, error) {
	rows, err := s.db.Query(
		`SELECT id, call_id, tier, score, summary, confidence, matched_criteria, is_partial, facility_name, facility_distance_km, eta_minutes, created_at
		FROM triage_reports
		ORDER BY created_at DESC
		LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent reports: %w", err)
	}
	defer rows.Close()

	return s.scanReportRows(rows)
}

// scanReportRows scans database rows into ReportRecord structs
func (s *ReportStorage) scanReportRows(rows *sql.Rows) ([]*ReportRecord, error) {
	var records []*ReportRecord
	for rows.Next() {
		var record ReportRecord
		var criteriaJSON, createdAt string
		var facilityName sql.NullString
		var facilityDistance sql.NullFloat64
		var etaMinutes sql.NullInt64

		if err := rows.Scan(
			&record.ID,
			&record.CallID,
			&record.Tier,
			&record.Score,
			&record.Summary,
			&record.Confidence,
			&criteriaJSON,
			&record.IsPartial,
			&facilityName,
			&facilityDistance,
			&etaMinutes,
			&createdAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan report: %w", err)
		}

		if err := json.Unmarshal([]byte(criteriaJSON), &record.MatchedCriteria); err != nil {
			return nil, fmt.Errorf("failed to unmarshal criteria: %w", err)
		}

		var err error
		record.CreatedAt, err = time.Parse(time.RFC3339, createdAt)
		if err != nil {
			return nil, fmt.Errorf("failed to parse created_at: %w", err)
		}

		if facilityName.Valid {
			record.FacilityName = facilityName.String
		}
		if facilityDistance.Valid {
			record.FacilityDistanceKm = facilityDistance.Float64
		}
		if etaMinutes.Valid {
			record.ETAMinutes = int(etaMinutes.Int64)
		}

		records = append(records, &record)
	}

	return records, nil
}
