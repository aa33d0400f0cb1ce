// Package processor binds one source to its compiled rules and drives raw
// records through the normalizers into candidate normalized records.
package processor

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/Siacelp-NTT/Crawler-database/internal/config"
	"github.com/Siacelp-NTT/Crawler-database/internal/model"
	"github.com/Siacelp-NTT/Crawler-database/internal/normalize"
)

// maxLoggedErrors caps the per-cycle error list carried in a Result.
const maxLoggedErrors = 10

// Result summarizes one batch run for a single source.
type Result struct {
	Attempted []int64 // raw ids attempted; all of these get marked processed
	Processed int
	Succeeded int
	Failed    int
	Skipped   int // duplicates detected by the insert protocol
	Errors    []string
}

// Processor transforms one source's raw records. A per-field normalization
// miss degrades that field to null/default; it never aborts the record.
type Processor struct {
	cfg    *config.SourceConfig
	global *config.GlobalConfig
	store  model.Store
	logger *slog.Logger

	salary      *normalize.SalaryParser
	experience  *normalize.ExperienceMapper
	location    *normalize.LocationNormalizer
	date        *normalize.DateParser
	description *normalize.DescriptionCleaner
	hook        Hook

	now func() time.Time
}

// New wires a processor for one source. ai may be nil when the AI layer is
// disabled; the normalizers then skip their fallback paths.
func New(cfg *config.SourceConfig, global *config.GlobalConfig, store model.Store, ai normalize.Completer, logger *slog.Logger) *Processor {
	logger = logger.With("source", cfg.Name)
	return &Processor{
		cfg:         cfg,
		global:      global,
		store:       store,
		logger:      logger,
		salary:      normalize.NewSalaryParser(cfg.Salary, ai, logger),
		experience:  normalize.NewExperienceMapper(cfg.Experience, ai, logger),
		location:    normalize.NewLocationNormalizer(cfg.Location, ai, logger),
		date:        normalize.NewDateParser(cfg.Date, ai, logger),
		description: normalize.NewDescriptionCleaner(cfg.Description, ai, logger),
		hook:        hookFor(cfg.Name),
		now:         time.Now,
	}
}

// Name returns the source name this processor serves.
func (p *Processor) Name() string { return p.cfg.Name }

// Process runs the batch record by record. Records failing validation or
// hitting transient store errors count as failed but stay in Attempted, so
// the orchestrator still marks them processed: one attempt per raw record
// under normal operation, with reset-for-reprocessing as the escape hatch.
func (p *Processor) Process(ctx context.Context, batch []model.RawJobRecord) Result {
	var res Result
	for _, raw := range batch {
		if ctx.Err() != nil {
			// Cooperative cancellation between records: work done so far is
			// committed and only the attempted subset gets marked.
			break
		}
		res.Processed++
		res.Attempted = append(res.Attempted, raw.ID)

		rec := p.transform(ctx, raw)
		if err := p.validate(rec, raw); err != nil {
			res.Failed++
			res.addError(fmt.Errorf("record %d: %w", raw.ID, err))
			p.logger.Debug("record failed validation", "raw_id", raw.ID, "error", err)
			continue
		}

		companyName := strings.TrimSpace(raw.CompanyName)
		if companyName == "" {
			// Never resolve a nameless company: the name-only lookup would
			// merge every such posting into one "" row.
			res.Failed++
			res.addError(fmt.Errorf("record %d: missing company name", raw.ID))
			continue
		}

		companyID, err := p.store.UpsertCompany(ctx, companyName, deriveDomain(raw.CompanyURL), derefStr(rec.City))
		if err != nil {
			res.Failed++
			res.addError(fmt.Errorf("record %d: resolve company: %w", raw.ID, err))
			continue
		}
		rec.CompanyID = companyID

		_, created, err := p.store.InsertNormalizedJob(ctx, rec)
		if err != nil {
			res.Failed++
			res.addError(fmt.Errorf("record %d: insert: %w", raw.ID, err))
			continue
		}
		if created {
			res.Succeeded++
		} else {
			res.Skipped++
		}
	}
	return res
}

// transform builds the candidate record. Every field degrades independently.
func (p *Processor) transform(ctx context.Context, raw model.RawJobRecord) *model.NormalizedJobRecord {
	now := p.now()

	rec := &model.NormalizedJobRecord{
		Title:          raw.Title,
		Description:    p.description.Clean(ctx, raw.Description),
		ApplicantCount: raw.ApplicantCount,
		SourceID:       p.cfg.ID,
		URL:            raw.URL,
		CrawledAt:      raw.CrawledAt,
	}

	if sal := p.salary.Parse(ctx, raw.SalaryText); sal != nil {
		rec.MonthlySalary = monthlyAmount(sal.Average, raw.PayPeriod)
		if id, ok := p.global.CurrencyID(sal.Currency); ok {
			rec.CurrencyID = &id
		}
	}

	level := p.experience.Map(ctx, raw.ExperienceText)
	levelID := p.global.LevelStoreID(level)
	rec.ExperienceLevelID = &levelID

	loc := p.location.Normalize(ctx, raw.LocationText)
	if loc.City != "" {
		rec.City = &loc.City
	}
	if loc.CountryCode != "" {
		rec.CountryCode = &loc.CountryCode
	}

	if posted, ok := p.date.Parse(ctx, raw.PostedText, now); ok {
		rec.PostedDate = posted
	} else {
		// Documented default-on-failure policy: fall back to processing date.
		rec.PostedDate = now
	}

	if p.hook != nil {
		p.hook(rec, raw)
	}
	return rec
}

// validate applies the source's quality checks.
func (p *Processor) validate(rec *model.NormalizedJobRecord, raw model.RawJobRecord) error {
	for _, f := range p.cfg.Quality.RequiredFields {
		switch f {
		case "title":
			if strings.TrimSpace(rec.Title) == "" {
				return fmt.Errorf("missing required field title")
			}
		case "description":
			if strings.TrimSpace(rec.Description) == "" {
				return fmt.Errorf("missing required field description")
			}
		case "company":
			if strings.TrimSpace(raw.CompanyName) == "" {
				return fmt.Errorf("missing required field company")
			}
		case "url":
			if strings.TrimSpace(rec.URL) == "" {
				return fmt.Errorf("missing required field url")
			}
		case "salary":
			if rec.MonthlySalary == nil {
				return fmt.Errorf("missing required field salary")
			}
		case "city":
			if rec.City == nil {
				return fmt.Errorf("missing required field city")
			}
		default:
			return fmt.Errorf("unknown required field %q", f)
		}
	}
	if max := p.cfg.Quality.MaxTitleLength; max > 0 && len([]rune(rec.Title)) > max {
		return fmt.Errorf("title exceeds %d characters", max)
	}
	return nil
}

func (r *Result) addError(err error) {
	if len(r.Errors) < maxLoggedErrors {
		r.Errors = append(r.Errors, err.Error())
	}
}

// monthlyAmount converts a parsed salary average to a monthly figure using
// the raw pay period. Hourly rates are dropped rather than guessed.
func monthlyAmount(avg *float64, payPeriod string) *float64 {
	if avg == nil {
		return nil
	}
	switch strings.ToLower(strings.TrimSpace(payPeriod)) {
	case "year", "yearly", "annual", "annually", "per year":
		m := *avg / 12
		return &m
	case "hour", "hourly", "per hour":
		return nil
	default:
		v := *avg
		return &v
	}
}

// deriveDomain extracts a company domain from a URL: host, lower-cased,
// "www." stripped. Returns "" when no host can be derived.
func deriveDomain(rawURL string) string {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return ""
	}
	if !strings.Contains(rawURL, "://") {
		rawURL = "https://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return ""
	}
	host := strings.ToLower(u.Host)
	host = strings.TrimPrefix(host, "www.")
	if i := strings.IndexByte(host, ':'); i >= 0 {
		host = host[:i]
	}
	return host
}

func derefStr(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
