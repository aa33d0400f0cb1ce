// Package store implements the raw and normalized job stores. Both backends
// implement the same duplicate-safe insert protocol: companies resolve by
// (name, domain) with a name-only fallback, job posts dedupe by URL first and
// by (company, title, source) second, and insert races collapse to the
// existing row instead of surfacing an error.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/Siacelp-NTT/Crawler-database/internal/model"
)

// SQLiteStore is the default store backend, suitable for single-node
// deployments and tests.
type SQLiteStore struct {
	db *sql.DB
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS raw_jobs (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	title           TEXT NOT NULL DEFAULT '',
	description     TEXT NOT NULL DEFAULT '',
	salary_text     TEXT NOT NULL DEFAULT '',
	pay_period      TEXT NOT NULL DEFAULT '',
	work_type       TEXT NOT NULL DEFAULT '',
	experience_text TEXT NOT NULL DEFAULT '',
	location_text   TEXT NOT NULL DEFAULT '',
	applicant_count INTEGER,
	posted_text     TEXT NOT NULL DEFAULT '',
	currency_hint   TEXT NOT NULL DEFAULT '',
	company_name    TEXT NOT NULL DEFAULT '',
	company_url     TEXT NOT NULL DEFAULT '',
	source          TEXT NOT NULL,
	url             TEXT NOT NULL UNIQUE,
	crawled_at      DATETIME NOT NULL,
	processed       INTEGER NOT NULL DEFAULT 0,
	processed_at    DATETIME
);
CREATE INDEX IF NOT EXISTS idx_raw_jobs_pending
	ON raw_jobs (source, processed, crawled_at);

CREATE TABLE IF NOT EXISTS companies (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	name       TEXT NOT NULL,
	location   TEXT NOT NULL DEFAULT '',
	domain     TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_companies_name_domain
	ON companies (lower(trim(name)), lower(domain));

CREATE TABLE IF NOT EXISTS jobs (
	id                  INTEGER PRIMARY KEY AUTOINCREMENT,
	company_id          INTEGER NOT NULL REFERENCES companies(id),
	title               TEXT NOT NULL,
	description         TEXT NOT NULL DEFAULT '',
	monthly_salary      REAL,
	currency_id         INTEGER,
	experience_level_id INTEGER,
	city                TEXT,
	country_code        TEXT,
	applicant_count     INTEGER,
	posted_date         DATETIME NOT NULL,
	source_id           INTEGER NOT NULL,
	url                 TEXT NOT NULL UNIQUE,
	crawled_at          DATETIME,
	created_at          DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at          DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
-- SQLite's lower() folds ASCII only, so non-ASCII cased titles ("KỸ SƯ" vs
-- "kỹ sư") stay distinct here while the Postgres backend merges them. Title
-- casing across reposts is heuristic to begin with; under-merging is the
-- accepted direction.
CREATE UNIQUE INDEX IF NOT EXISTS idx_jobs_company_title_source
	ON jobs (company_id, lower(trim(title)), source_id);
`

// NewSQLiteStore opens (or creates) a SQLite database at dbPath and ensures
// the schema exists.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging sqlite db: %w", err)
	}

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// InsertRawJob records a scraped posting. A known URL is a no-op returning
// the existing id.
func (s *SQLiteStore) InsertRawJob(ctx context.Context, rec *model.RawJobRecord) (int64, error) {
	crawled := rec.CrawledAt
	if crawled.IsZero() {
		crawled = time.Now()
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO raw_jobs
		 (title, description, salary_text, pay_period, work_type, experience_text,
		  location_text, applicant_count, posted_text, currency_hint, company_name,
		  company_url, source, url, crawled_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.Title, rec.Description, rec.SalaryText, rec.PayPeriod, rec.WorkType,
		rec.ExperienceText, rec.LocationText, rec.ApplicantCount, rec.PostedText,
		rec.CurrencyHint, rec.CompanyName, rec.CompanyURL, rec.Source, rec.URL, crawled,
	)
	if err != nil {
		return 0, fmt.Errorf("inserting raw job: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return res.LastInsertId()
	}
	var id int64
	if err := s.db.QueryRowContext(ctx, `SELECT id FROM raw_jobs WHERE url = ?`, rec.URL).Scan(&id); err != nil {
		return 0, fmt.Errorf("looking up raw job by url: %w", err)
	}
	return id, nil
}

// FetchUnprocessedBatch returns up to limit unprocessed records for source,
// oldest-crawled first to bound starvation.
func (s *SQLiteStore) FetchUnprocessedBatch(ctx context.Context, source string, limit int) ([]model.RawJobRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, description, salary_text, pay_period, work_type,
		        experience_text, location_text, applicant_count, posted_text,
		        currency_hint, company_name, company_url, source, url, crawled_at
		 FROM raw_jobs
		 WHERE source = ? AND processed = 0
		 ORDER BY crawled_at ASC, id ASC
		 LIMIT ?`,
		source, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("fetching unprocessed batch for %s: %w", source, err)
	}
	defer rows.Close()

	var batch []model.RawJobRecord
	for rows.Next() {
		var r model.RawJobRecord
		var applicants sql.NullInt64
		if err := rows.Scan(
			&r.ID, &r.Title, &r.Description, &r.SalaryText, &r.PayPeriod, &r.WorkType,
			&r.ExperienceText, &r.LocationText, &applicants, &r.PostedText,
			&r.CurrencyHint, &r.CompanyName, &r.CompanyURL, &r.Source, &r.URL, &r.CrawledAt,
		); err != nil {
			return nil, fmt.Errorf("scanning raw job: %w", err)
		}
		if applicants.Valid {
			n := int(applicants.Int64)
			r.ApplicantCount = &n
		}
		batch = append(batch, r)
	}
	return batch, rows.Err()
}

// MarkProcessed flags the given raw records as processed. Idempotent.
func (s *SQLiteStore) MarkProcessed(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	query := fmt.Sprintf(
		`UPDATE raw_jobs SET processed = 1, processed_at = CURRENT_TIMESTAMP
		 WHERE id IN (%s)`,
		placeholders(len(ids)),
	)
	if _, err := s.db.ExecContext(ctx, query, int64Args(ids)...); err != nil {
		return fmt.Errorf("marking %d records processed: %w", len(ids), err)
	}
	return nil
}

// ResetProcessed clears the processed flag for a source, or for all sources
// when source is empty. Returns the number of records reset.
func (s *SQLiteStore) ResetProcessed(ctx context.Context, source string) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE raw_jobs SET processed = 0, processed_at = NULL
		 WHERE processed = 1 AND (? = '' OR source = ?)`,
		source, source,
	)
	if err != nil {
		return 0, fmt.Errorf("resetting processed flags: %w", err)
	}
	return res.RowsAffected()
}

// UpsertCompany resolves or creates a company. Matching is case-insensitive
// on (name, domain); with no domain it falls back to name-only so sources
// that never supply a domain do not fork duplicate companies. Re-sightings
// refresh the location, never the name.
func (s *SQLiteStore) UpsertCompany(ctx context.Context, name, domain, location string) (int64, error) {
	id, found, err := s.lookupCompany(ctx, name, domain)
	if err != nil {
		return 0, err
	}
	if found {
		return id, s.refreshCompany(ctx, id, location)
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO companies (name, location, domain) VALUES (?, ?, ?)`,
		strings.TrimSpace(name), location, strings.ToLower(domain),
	)
	if err != nil {
		return 0, fmt.Errorf("inserting company %q: %w", name, err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return res.LastInsertId()
	}

	// Insert raced with another writer; the row exists now.
	id, found, err = s.lookupCompany(ctx, name, domain)
	if err != nil {
		return 0, err
	}
	if !found {
		return 0, fmt.Errorf("company %q vanished after conflicting insert", name)
	}
	return id, nil
}

func (s *SQLiteStore) lookupCompany(ctx context.Context, name, domain string) (int64, bool, error) {
	var (
		id  int64
		err error
	)
	key := strings.ToLower(strings.TrimSpace(name))
	if domain != "" {
		err = s.db.QueryRowContext(ctx,
			`SELECT id FROM companies WHERE lower(trim(name)) = ? AND lower(domain) = ?`,
			key, strings.ToLower(domain),
		).Scan(&id)
	} else {
		err = s.db.QueryRowContext(ctx,
			`SELECT id FROM companies WHERE lower(trim(name)) = ?`,
			key,
		).Scan(&id)
	}
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("looking up company %q: %w", name, err)
	}
	return id, true, nil
}

func (s *SQLiteStore) refreshCompany(ctx context.Context, id int64, location string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE companies
		 SET location = CASE WHEN ? != '' THEN ? ELSE location END,
		     updated_at = CURRENT_TIMESTAMP
		 WHERE id = ?`,
		location, location, id,
	)
	if err != nil {
		return fmt.Errorf("refreshing company %d: %w", id, err)
	}
	return nil
}

// InsertNormalizedJob inserts rec unless a duplicate exists: by URL first
// (authoritative), then by (company, title, source) to catch reposts under a
// different URL. A duplicate refreshes updated_at on the surviving row; the
// earliest-created record always wins.
func (s *SQLiteStore) InsertNormalizedJob(ctx context.Context, rec *model.NormalizedJobRecord) (int64, bool, error) {
	if id, found, err := s.lookupJob(ctx, rec); err != nil {
		return 0, false, err
	} else if found {
		return id, false, s.touchJob(ctx, id)
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO jobs
		 (company_id, title, description, monthly_salary, currency_id,
		  experience_level_id, city, country_code, applicant_count, posted_date,
		  source_id, url, crawled_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.CompanyID, rec.Title, rec.Description, rec.MonthlySalary, rec.CurrencyID,
		rec.ExperienceLevelID, rec.City, rec.CountryCode, rec.ApplicantCount,
		rec.PostedDate, rec.SourceID, rec.URL, rec.CrawledAt,
	)
	if err != nil {
		return 0, false, fmt.Errorf("inserting job %q: %w", rec.URL, err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		id, err := res.LastInsertId()
		return id, true, err
	}

	// Constraint race: treat exactly like a detected duplicate.
	id, found, err := s.lookupJob(ctx, rec)
	if err != nil {
		return 0, false, err
	}
	if !found {
		return 0, false, fmt.Errorf("job %q vanished after conflicting insert", rec.URL)
	}
	return id, false, s.touchJob(ctx, id)
}

func (s *SQLiteStore) lookupJob(ctx context.Context, rec *model.NormalizedJobRecord) (int64, bool, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, `SELECT id FROM jobs WHERE url = ?`, rec.URL).Scan(&id)
	if err == nil {
		return id, true, nil
	}
	if err != sql.ErrNoRows {
		return 0, false, fmt.Errorf("looking up job by url: %w", err)
	}

	err = s.db.QueryRowContext(ctx,
		`SELECT id FROM jobs
		 WHERE company_id = ? AND lower(trim(title)) = lower(trim(?)) AND source_id = ?`,
		rec.CompanyID, rec.Title, rec.SourceID,
	).Scan(&id)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("looking up job by company/title/source: %w", err)
	}
	return id, true, nil
}

func (s *SQLiteStore) touchJob(ctx context.Context, id int64) error {
	if _, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET updated_at = CURRENT_TIMESTAMP WHERE id = ?`, id,
	); err != nil {
		return fmt.Errorf("refreshing job %d: %w", id, err)
	}
	return nil
}

// CountJobs returns the number of normalized job posts. Used for monitoring
// and tests.
func (s *SQLiteStore) CountJobs(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM jobs`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting jobs: %w", err)
	}
	return n, nil
}

// CountCompanies returns the number of normalized companies.
func (s *SQLiteStore) CountCompanies(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM companies`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting companies: %w", err)
	}
	return n, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func int64Args(ids []int64) []any {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}
