// Package storage provides SQLite-backed persistence for monthly mortality
// records and expected-death data, the engine's only inputs.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/icuwatch/mortalert/internal/models"
	_ "modernc.org/sqlite"
)

// Storage wraps a SQLite database for all persistence operations.
type Storage struct {
	db *sql.DB
}

// New opens or creates the SQLite database at dbPath.
// An empty dbPath defaults to $TMPDIR/mortalert/data.db.
func New(dbPath string) (*Storage, error) {
	if dbPath == "" {
		dbPath = filepath.Join(os.TempDir(), "mortalert", "data.db")
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1) // single writer; WAL allows concurrent readers
	if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}
	if _, err := db.Exec(`PRAGMA foreign_keys=ON`); err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	s := &Storage{db: db}
	if err := s.createTables(); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Storage) Close() error {
	return s.db.Close()
}

func (s *Storage) createTables() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS monthly_mortality (
			hospital_name  TEXT NOT NULL,
			year           INTEGER NOT NULL,
			month          INTEGER NOT NULL,
			total_patients INTEGER NOT NULL,
			deaths         INTEGER NOT NULL,
			PRIMARY KEY (hospital_name, year, month)
		)`,
		`CREATE TABLE IF NOT EXISTS expected_deaths (
			hospital_name TEXT NOT NULL,
			year          INTEGER NOT NULL,
			month         INTEGER NOT NULL,
			expected_pct  REAL NOT NULL,
			PRIMARY KEY (hospital_name, year, month)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_monthly_period ON monthly_mortality(year, month)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// UpsertMonthlyRecord inserts or replaces one hospital-month. The mortality
// rate is never written; reads always recompute it from the counts.
func (s *Storage) UpsertMonthlyRecord(ctx context.Context, record *models.MonthlyRecord) error {
	if err := record.Validate(); err != nil {
		return fmt.Errorf("invalid record: %w", err)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO monthly_mortality
			(hospital_name, year, month, total_patients, deaths)
		VALUES (?,?,?,?,?)`,
		record.HospitalName, record.Period.Year, record.Period.Month,
		record.TotalPatients, record.Deaths,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert record: %w", err)
	}
	return nil
}

// UpsertMonthlyRecords writes a batch in one transaction.
func (s *Storage) UpsertMonthlyRecords(ctx context.Context, records []models.MonthlyRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	for i := range records {
		if err := records[i].Validate(); err != nil {
			return fmt.Errorf("invalid record for %q %s: %w", records[i].HospitalName, records[i].Period, err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT OR REPLACE INTO monthly_mortality
				(hospital_name, year, month, total_patients, deaths)
			VALUES (?,?,?,?,?)`,
			records[i].HospitalName, records[i].Period.Year, records[i].Period.Month,
			records[i].TotalPatients, records[i].Deaths,
		); err != nil {
			return fmt.Errorf("failed to upsert record: %w", err)
		}
	}
	return tx.Commit()
}

// UpsertExpectedDeaths writes a batch of expected-death rows in one
// transaction.
func (s *Storage) UpsertExpectedDeaths(ctx context.Context, infos []models.ExpectedDeathInfo) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	for i := range infos {
		if err := infos[i].Validate(); err != nil {
			return fmt.Errorf("invalid expected-death row for %q %s: %w", infos[i].HospitalName, infos[i].Period, err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT OR REPLACE INTO expected_deaths
				(hospital_name, year, month, expected_pct)
			VALUES (?,?,?,?)`,
			infos[i].HospitalName, infos[i].Period.Year, infos[i].Period.Month,
			infos[i].Percentage,
		); err != nil {
			return fmt.Errorf("failed to upsert expected-death row: %w", err)
		}
	}
	return tx.Commit()
}

// FetchMonthlyRecords returns records ordered by hospital and period. An
// empty hospital selects all hospitals; nil bounds leave the range open.
func (s *Storage) FetchMonthlyRecords(ctx context.Context, hospital string, start, end *models.Period) ([]models.MonthlyRecord, error) {
	query := `SELECT ` + recordCols + ` FROM monthly_mortality WHERE 1=1`
	var args []any
	if hospital != "" {
		query += ` AND hospital_name = ?`
		args = append(args, hospital)
	}
	if start != nil {
		query += ` AND (year * 12 + month) >= ?`
		args = append(args, start.Year*12+start.Month)
	}
	if end != nil {
		query += ` AND (year * 12 + month) <= ?`
		args = append(args, end.Year*12+end.Month)
	}
	query += ` ORDER BY hospital_name, year, month`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	defer rows.Close()

	var records []models.MonthlyRecord
	for rows.Next() {
		r, err := scanRecord(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// FetchExpectedDeathInfo returns the expected-death row for one
// hospital-month, or nil when none exists.
func (s *Storage) FetchExpectedDeathInfo(ctx context.Context, hospital string, period models.Period) (*models.ExpectedDeathInfo, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT hospital_name, year, month, expected_pct
		FROM expected_deaths
		WHERE hospital_name = ? AND year = ? AND month = ?`,
		hospital, period.Year, period.Month)

	var info models.ExpectedDeathInfo
	err := row.Scan(&info.HospitalName, &info.Period.Year, &info.Period.Month, &info.Percentage)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load expected-death row: %w", err)
	}
	return &info, nil
}

// Hospitals returns the distinct hospital names, sorted.
func (s *Storage) Hospitals(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT hospital_name FROM monthly_mortality ORDER BY hospital_name`)
	if err != nil {
		return nil, fmt.Errorf("failed to query hospitals: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan hospital: %w", err)
		}
		names = append(names, name)
	}
	if names == nil {
		names = []string{}
	}
	return names, rows.Err()
}

// LatestPeriod returns the most recent period with any data, or nil for an
// empty store.
func (s *Storage) LatestPeriod(ctx context.Context) (*models.Period, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT year, month FROM monthly_mortality
		ORDER BY year DESC, month DESC LIMIT 1`)

	var p models.Period
	err := row.Scan(&p.Year, &p.Month)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load latest period: %w", err)
	}
	return &p, nil
}

const recordCols = `hospital_name, year, month, total_patients, deaths`

func scanRecord(scan func(...any) error) (models.MonthlyRecord, error) {
	var r models.MonthlyRecord
	err := scan(&r.HospitalName, &r.Period.Year, &r.Period.Month, &r.TotalPatients, &r.Deaths)
	if err != nil {
		return models.MonthlyRecord{}, err
	}
	r.MortalityRate = models.Rate(r.Deaths, r.TotalPatients)
	return r, nil
}
