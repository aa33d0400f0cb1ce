package model

import (
	"context"
	"time"
)

// RawJobRecord is a job posting as scraped, minimally validated.
// Created by the ingestion side; the engine only ever flips Processed.
type RawJobRecord struct {
	ID             int64
	Title          string
	Description    string // raw HTML or text
	SalaryText     string // free text, e.g. "15 Mil - 25 Mil VND"
	PayPeriod      string // "month", "year", source-dependent
	WorkType       string // "full-time", "contract", ...
	ExperienceText string // free text
	LocationText   string // free text
	ApplicantCount *int
	PostedText     string // free text or timestamp, e.g. "3 days ago"
	CurrencyHint   string // optional currency hint from the scraper
	CompanyName    string
	CompanyURL     string // company site, used for domain derivation
	Source         string // source name, e.g. "itviec"
	URL            string // canonical posting URL, unique in the raw store
	CrawledAt      time.Time
	Processed      bool
	ProcessedAt    *time.Time
}

// NormalizedJobRecord is a job posting after rule-based transformation.
type NormalizedJobRecord struct {
	ID                int64
	CompanyID         int64
	Title             string // raw title, unchanged
	Description       string // cleaned
	MonthlySalary     *float64
	CurrencyID        *int64
	ExperienceLevelID *int64
	City              *string
	CountryCode       *string
	ApplicantCount    *int
	PostedDate        time.Time // defaults to processing date when unparseable
	SourceID          int64
	URL               string // unique
	CrawledAt         time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Company is a normalized employer. Unique on (name, domain); a missing
// domain falls back to case-insensitive name-only matching.
type Company struct {
	ID        int64
	Name      string
	Location  string
	Domain    string // host lower-cased, "www." stripped; empty if unknown
	CreatedAt time.Time
	UpdatedAt time.Time
}

// SalaryKind tags which pattern type produced a Salary.
type SalaryKind string

const (
	SalaryRange      SalaryKind = "range"
	SalaryMin        SalaryKind = "min"
	SalaryMax        SalaryKind = "max"
	SalaryExact      SalaryKind = "exact"
	SalaryNegotiable SalaryKind = "negotiable"
)

// Salary is the structured result of salary parsing. All numeric fields are
// nil for negotiable salaries.
type Salary struct {
	Min      *float64
	Max      *float64
	Average  *float64
	Currency string
	Kind     SalaryKind
}

// Location is the structured result of location normalization.
type Location struct {
	City        string
	CountryCode string
	IsRemote    bool
	IsHybrid    bool
}

// The six canonical experience levels, in id order (1..6).
const (
	LevelInternship = "Internship"
	LevelEntry      = "Entry"
	LevelMid        = "Mid"
	LevelSenior     = "Senior"
	LevelLead       = "Lead"
	LevelExecutive  = "Executive"
)

// CanonicalLevels lists the canonical experience levels in id order.
var CanonicalLevels = []string{
	LevelInternship, LevelEntry, LevelMid, LevelSenior, LevelLead, LevelExecutive,
}

// LevelID converts a canonical level name to its fixed numeric id (1..6).
// Unknown names map to 2 (Entry) as a safe default.
func LevelID(name string) int64 {
	for i, l := range CanonicalLevels {
		if l == name {
			return int64(i + 1)
		}
	}
	return 2
}

// IsCanonicalLevel reports whether name is one of the six canonical levels.
func IsCanonicalLevel(name string) bool {
	for _, l := range CanonicalLevels {
		if l == name {
			return true
		}
	}
	return false
}

// Store is the contract between the engine and the raw/normalized stores.
// Implementations must make InsertNormalizedJob and UpsertCompany
// duplicate-safe so that replaying a batch converges to the same contents.
type Store interface {
	// InsertRawJob records a scraped posting. Inserting an already-known URL
	// is a no-op returning the existing id.
	InsertRawJob(ctx context.Context, rec *RawJobRecord) (int64, error)

	// FetchUnprocessedBatch returns up to limit unprocessed raw records for
	// one source, oldest-crawled first.
	FetchUnprocessedBatch(ctx context.Context, source string, limit int) ([]RawJobRecord, error)

	// MarkProcessed flags the given raw records as processed. Idempotent.
	MarkProcessed(ctx context.Context, ids []int64) error

	// ResetProcessed clears the processed flag for a source (all sources if
	// empty) so records can be re-run after a configuration fix. Returns the
	// number of records reset.
	ResetProcessed(ctx context.Context, source string) (int64, error)

	// UpsertCompany resolves or creates a company by (name, domain) and
	// returns its id. Re-sightings refresh location, never the name.
	UpsertCompany(ctx context.Context, name, domain, location string) (int64, error)

	// InsertNormalizedJob inserts rec unless a duplicate exists by URL or by
	// (company, title, source). Returns the surviving id and whether a new
	// row was created.
	InsertNormalizedJob(ctx context.Context, rec *NormalizedJobRecord) (int64, bool, error)

	Close() error
}
