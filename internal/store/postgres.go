package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Siacelp-NTT/Crawler-database/internal/model"
)

// PostgresStore is the production store backend, backed by a pgx pool.
type PostgresStore struct {
	pool *pgxpool.Pool
}

const postgresSchema = `
CREATE TABLE IF NOT EXISTS raw_jobs (
	id              BIGSERIAL PRIMARY KEY,
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
	crawled_at      TIMESTAMPTZ NOT NULL,
	processed       BOOLEAN NOT NULL DEFAULT FALSE,
	processed_at    TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS idx_raw_jobs_pending
	ON raw_jobs (source, processed, crawled_at);

CREATE TABLE IF NOT EXISTS companies (
	id         BIGSERIAL PRIMARY KEY,
	name       TEXT NOT NULL,
	location   TEXT NOT NULL DEFAULT '',
	domain     TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_companies_name_domain
	ON companies (lower(trim(name)), lower(domain));

CREATE TABLE IF NOT EXISTS jobs (
	id                  BIGSERIAL PRIMARY KEY,
	company_id          BIGINT NOT NULL REFERENCES companies(id),
	title               TEXT NOT NULL,
	description         TEXT NOT NULL DEFAULT '',
	monthly_salary      DOUBLE PRECISION,
	currency_id         BIGINT,
	experience_level_id BIGINT,
	city                TEXT,
	country_code        TEXT,
	applicant_count     INTEGER,
	posted_date         DATE NOT NULL,
	source_id           BIGINT NOT NULL,
	url                 TEXT NOT NULL UNIQUE,
	crawled_at          TIMESTAMPTZ,
	created_at          TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at          TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_jobs_company_title_source
	ON jobs (company_id, lower(trim(title)), source_id);
`

// NewPostgresStore connects to databaseURL and ensures the schema exists.
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

// InsertRawJob records a scraped posting; a known URL returns the existing id.
func (s *PostgresStore) InsertRawJob(ctx context.Context, rec *model.RawJobRecord) (int64, error) {
	crawled := rec.CrawledAt
	if crawled.IsZero() {
		crawled = time.Now()
	}
	var id int64
	err := s.pool.QueryRow(ctx,
		`INSERT INTO raw_jobs
		 (title, description, salary_text, pay_period, work_type, experience_text,
		  location_text, applicant_count, posted_text, currency_hint, company_name,
		  company_url, source, url, crawled_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		 ON CONFLICT (url) DO NOTHING
		 RETURNING id`,
		rec.Title, rec.Description, rec.SalaryText, rec.PayPeriod, rec.WorkType,
		rec.ExperienceText, rec.LocationText, rec.ApplicantCount, rec.PostedText,
		rec.CurrencyHint, rec.CompanyName, rec.CompanyURL, rec.Source, rec.URL, crawled,
	).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("inserting raw job: %w", err)
	}
	if err := s.pool.QueryRow(ctx, `SELECT id FROM raw_jobs WHERE url = $1`, rec.URL).Scan(&id); err != nil {
		return 0, fmt.Errorf("looking up raw job by url: %w", err)
	}
	return id, nil
}

// FetchUnprocessedBatch returns up to limit unprocessed records for source,
// oldest-crawled first.
func (s *PostgresStore) FetchUnprocessedBatch(ctx context.Context, source string, limit int) ([]model.RawJobRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, title, description, salary_text, pay_period, work_type,
		        experience_text, location_text, applicant_count, posted_text,
		        currency_hint, company_name, company_url, source, url, crawled_at
		 FROM raw_jobs
		 WHERE source = $1 AND processed = FALSE
		 ORDER BY crawled_at ASC, id ASC
		 LIMIT $2`,
		source, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("fetching unprocessed batch for %s: %w", source, err)
	}
	defer rows.Close()

	var batch []model.RawJobRecord
	for rows.Next() {
		var r model.RawJobRecord
		if err := rows.Scan(
			&r.ID, &r.Title, &r.Description, &r.SalaryText, &r.PayPeriod, &r.WorkType,
			&r.ExperienceText, &r.LocationText, &r.ApplicantCount, &r.PostedText,
			&r.CurrencyHint, &r.CompanyName, &r.CompanyURL, &r.Source, &r.URL, &r.CrawledAt,
		); err != nil {
			return nil, fmt.Errorf("scanning raw job: %w", err)
		}
		batch = append(batch, r)
	}
	return batch, rows.Err()
}

// MarkProcessed flags the given raw records as processed. Idempotent.
func (s *PostgresStore) MarkProcessed(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	if _, err := s.pool.Exec(ctx,
		`UPDATE raw_jobs SET processed = TRUE, processed_at = now()
		 WHERE id = ANY($1)`,
		ids,
	); err != nil {
		return fmt.Errorf("marking %d records processed: %w", len(ids), err)
	}
	return nil
}

// ResetProcessed clears the processed flag for a source (all when empty).
func (s *PostgresStore) ResetProcessed(ctx context.Context, source string) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE raw_jobs SET processed = FALSE, processed_at = NULL
		 WHERE processed = TRUE AND ($1 = '' OR source = $1)`,
		source,
	)
	if err != nil {
		return 0, fmt.Errorf("resetting processed flags: %w", err)
	}
	return tag.RowsAffected(), nil
}

// UpsertCompany resolves or creates a company per the duplicate protocol.
func (s *PostgresStore) UpsertCompany(ctx context.Context, name, domain, location string) (int64, error) {
	id, found, err := s.lookupCompany(ctx, name, domain)
	if err != nil {
		return 0, err
	}
	if found {
		return id, s.refreshCompany(ctx, id, location)
	}

	err = s.pool.QueryRow(ctx,
		`INSERT INTO companies (name, location, domain) VALUES ($1, $2, $3)
		 ON CONFLICT DO NOTHING
		 RETURNING id`,
		strings.TrimSpace(name), location, strings.ToLower(domain),
	).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("inserting company %q: %w", name, err)
	}

	id, found, err = s.lookupCompany(ctx, name, domain)
	if err != nil {
		return 0, err
	}
	if !found {
		return 0, fmt.Errorf("company %q vanished after conflicting insert", name)
	}
	return id, nil
}

func (s *PostgresStore) lookupCompany(ctx context.Context, name, domain string) (int64, bool, error) {
	var (
		id  int64
		err error
	)
	key := strings.ToLower(strings.TrimSpace(name))
	if domain != "" {
		err = s.pool.QueryRow(ctx,
			`SELECT id FROM companies WHERE lower(trim(name)) = $1 AND lower(domain) = $2`,
			key, strings.ToLower(domain),
		).Scan(&id)
	} else {
		err = s.pool.QueryRow(ctx,
			`SELECT id FROM companies WHERE lower(trim(name)) = $1`,
			key,
		).Scan(&id)
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("looking up company %q: %w", name, err)
	}
	return id, true, nil
}

func (s *PostgresStore) refreshCompany(ctx context.Context, id int64, location string) error {
	if _, err := s.pool.Exec(ctx,
		`UPDATE companies
		 SET location = CASE WHEN $1 != '' THEN $1 ELSE location END,
		     updated_at = now()
		 WHERE id = $2`,
		location, id,
	); err != nil {
		return fmt.Errorf("refreshing company %d: %w", id, err)
	}
	return nil
}

// InsertNormalizedJob inserts rec per the duplicate protocol: URL check,
// repost check, constraint races collapse to the existing row.
func (s *PostgresStore) InsertNormalizedJob(ctx context.Context, rec *model.NormalizedJobRecord) (int64, bool, error) {
	if id, found, err := s.lookupJob(ctx, rec); err != nil {
		return 0, false, err
	} else if found {
		return id, false, s.touchJob(ctx, id)
	}

	var id int64
	err := s.pool.QueryRow(ctx,
		`INSERT INTO jobs
		 (company_id, title, description, monthly_salary, currency_id,
		  experience_level_id, city, country_code, applicant_count, posted_date,
		  source_id, url, crawled_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		 ON CONFLICT DO NOTHING
		 RETURNING id`,
		rec.CompanyID, rec.Title, rec.Description, rec.MonthlySalary, rec.CurrencyID,
		rec.ExperienceLevelID, rec.City, rec.CountryCode, rec.ApplicantCount,
		rec.PostedDate, rec.SourceID, rec.URL, rec.CrawledAt,
	).Scan(&id)
	if err == nil {
		return id, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, false, fmt.Errorf("inserting job %q: %w", rec.URL, err)
	}

	id, found, err := s.lookupJob(ctx, rec)
	if err != nil {
		return 0, false, err
	}
	if !found {
		return 0, false, fmt.Errorf("job %q vanished after conflicting insert", rec.URL)
	}
	return id, false, s.touchJob(ctx, id)
}

func (s *PostgresStore) lookupJob(ctx context.Context, rec *model.NormalizedJobRecord) (int64, bool, error) {
	var id int64
	err := s.pool.QueryRow(ctx, `SELECT id FROM jobs WHERE url = $1`, rec.URL).Scan(&id)
	if err == nil {
		return id, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, false, fmt.Errorf("looking up job by url: %w", err)
	}

	err = s.pool.QueryRow(ctx,
		`SELECT id FROM jobs
		 WHERE company_id = $1 AND lower(trim(title)) = lower(trim($2)) AND source_id = $3`,
		rec.CompanyID, rec.Title, rec.SourceID,
	).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("looking up job by company/title/source: %w", err)
	}
	return id, true, nil
}

func (s *PostgresStore) touchJob(ctx context.Context, id int64) error {
	if _, err := s.pool.Exec(ctx,
		`UPDATE jobs SET updated_at = now() WHERE id = $1`, id,
	); err != nil {
		return fmt.Errorf("refreshing job %d: %w", id, err)
	}
	return nil
}

// CountJobs returns the number of normalized job posts.
func (s *PostgresStore) CountJobs(ctx context.Context) (int64, error) {
	var n int64
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM jobs`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting jobs: %w", err)
	}
	return n, nil
}

// CountCompanies returns the number of normalized companies.
func (s *PostgresStore) CountCompanies(ctx context.Context) (int64, error) {
	var n int64
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM companies`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting companies: %w", err)
	}
	return n, nil
}

// Close releases the connection pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
