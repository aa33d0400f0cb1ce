package store

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/Siacelp-NTT/Crawler-database/internal/model"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	st, err := NewSQLiteStore(filepath.Join(t.TempDir(), "jobs.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func rawFixture(id int, source string, crawled time.Time) *model.RawJobRecord {
	return &model.RawJobRecord{
		Title:       fmt.Sprintf("Engineer %d", id),
		Description: "build things",
		CompanyName: "Acme",
		Source:      source,
		URL:         fmt.Sprintf("https://%s.example/jobs/%d", source, id),
		CrawledAt:   crawled,
	}
}

func jobFixture(companyID int64, title, url string) *model.NormalizedJobRecord {
	return &model.NormalizedJobRecord{
		CompanyID:   companyID,
		Title:       title,
		Description: "desc",
		PostedDate:  time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
		SourceID:    1,
		URL:         url,
		CrawledAt:   time.Now(),
	}
}

func TestInsertRawJob_DuplicateURLReturnsExistingID(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	rec := rawFixture(1, "itviec", time.Now())
	id1, err := st.InsertRawJob(ctx, rec)
	if err != nil {
		t.Fatalf("first insert: %v", err)
	}
	id2, err := st.InsertRawJob(ctx, rec)
	if err != nil {
		t.Fatalf("second insert: %v", err)
	}
	if id1 != id2 {
		t.Errorf("ids differ: %d vs %d", id1, id2)
	}
}

func TestFetchUnprocessedBatch_OldestFirstAndBounded(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	// Inserted newest first; fetch must return oldest first.
	for i := 3; i >= 1; i-- {
		if _, err := st.InsertRawJob(ctx, rawFixture(i, "itviec", base.AddDate(0, 0, i))); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := st.InsertRawJob(ctx, rawFixture(9, "topcv", base)); err != nil {
		t.Fatal(err)
	}

	batch, err := st.FetchUnprocessedBatch(ctx, "itviec", 2)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(batch) != 2 {
		t.Fatalf("len = %d, want limit applied", len(batch))
	}
	if batch[0].Title != "Engineer 1" || batch[1].Title != "Engineer 2" {
		t.Errorf("order = %q, %q", batch[0].Title, batch[1].Title)
	}
	for _, r := range batch {
		if r.Source != "itviec" {
			t.Errorf("foreign source %q in batch", r.Source)
		}
	}
}

func TestMarkProcessed_RemovesFromBatchAndIsIdempotent(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	id, err := st.InsertRawJob(ctx, rawFixture(1, "itviec", time.Now()))
	if err != nil {
		t.Fatal(err)
	}
	if err := st.MarkProcessed(ctx, []int64{id}); err != nil {
		t.Fatalf("mark: %v", err)
	}
	if err := st.MarkProcessed(ctx, []int64{id}); err != nil {
		t.Fatalf("second mark: %v", err)
	}
	if err := st.MarkProcessed(ctx, nil); err != nil {
		t.Fatalf("empty mark: %v", err)
	}

	batch, err := st.FetchUnprocessedBatch(ctx, "itviec", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(batch) != 0 {
		t.Errorf("batch = %d records, want none", len(batch))
	}
}

func TestResetProcessed_BySourceAndGlobal(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	var ids []int64
	for i, source := range []string{"itviec", "topcv"} {
		id, err := st.InsertRawJob(ctx, rawFixture(i+1, source, time.Now()))
		if err != nil {
			t.Fatal(err)
		}
		ids = append(ids, id)
	}
	if err := st.MarkProcessed(ctx, ids); err != nil {
		t.Fatal(err)
	}

	n, err := st.ResetProcessed(ctx, "itviec")
	if err != nil {
		t.Fatalf("reset: %v", err)
	}
	if n != 1 {
		t.Errorf("reset count = %d, want 1", n)
	}

	batch, _ := st.FetchUnprocessedBatch(ctx, "itviec", 10)
	if len(batch) != 1 {
		t.Errorf("itviec pending = %d", len(batch))
	}
	batch, _ = st.FetchUnprocessedBatch(ctx, "topcv", 10)
	if len(batch) != 0 {
		t.Errorf("topcv pending = %d, reset must be scoped", len(batch))
	}

	// Empty source resets everything still marked.
	n, err = st.ResetProcessed(ctx, "")
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("global reset count = %d", n)
	}
}

func TestUpsertCompany_MatchesCaseAndWhitespace(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	id1, err := st.UpsertCompany(ctx, "Acme Corp", "acme.example.com", "Hanoi")
	if err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	id2, err := st.UpsertCompany(ctx, "  ACME CORP  ", "ACME.example.com", "")
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if id1 != id2 {
		t.Errorf("ids differ: %d vs %d", id1, id2)
	}

	n, err := st.CountCompanies(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("companies = %d", n)
	}
}

func TestUpsertCompany_NameOnlyFallbackWithoutDomain(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	id1, err := st.UpsertCompany(ctx, "Acme Corp", "acme.example.com", "")
	if err != nil {
		t.Fatal(err)
	}
	// A sighting with no domain must resolve to the same company.
	id2, err := st.UpsertCompany(ctx, "acme corp", "", "")
	if err != nil {
		t.Fatal(err)
	}
	if id1 != id2 {
		t.Errorf("ids differ: %d vs %d", id1, id2)
	}
}

func TestUpsertCompany_DifferentDomainsAreDistinct(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	id1, err := st.UpsertCompany(ctx, "Acme", "acme.vn", "")
	if err != nil {
		t.Fatal(err)
	}
	id2, err := st.UpsertCompany(ctx, "Acme", "acme.sg", "")
	if err != nil {
		t.Fatal(err)
	}
	if id1 == id2 {
		t.Error("distinct domains must fork distinct companies")
	}
}

func TestInsertNormalizedJob_DedupeByURL(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	companyID, err := st.UpsertCompany(ctx, "Acme", "", "")
	if err != nil {
		t.Fatal(err)
	}

	id1, created, err := st.InsertNormalizedJob(ctx, jobFixture(companyID, "Engineer", "https://x.example/1"))
	if err != nil || !created {
		t.Fatalf("first insert: id=%d created=%v err=%v", id1, created, err)
	}

	dup := jobFixture(companyID, "Completely Different Title", "https://x.example/1")
	id2, created, err := st.InsertNormalizedJob(ctx, dup)
	if err != nil {
		t.Fatalf("dup insert: %v", err)
	}
	if created || id2 != id1 {
		t.Errorf("dup: id=%d created=%v, want existing row %d", id2, created, id1)
	}
}

func TestInsertNormalizedJob_DedupeByCompanyTitleSource(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	companyID, err := st.UpsertCompany(ctx, "Acme", "", "")
	if err != nil {
		t.Fatal(err)
	}

	id1, _, err := st.InsertNormalizedJob(ctx, jobFixture(companyID, "Go Engineer", "https://x.example/1"))
	if err != nil {
		t.Fatal(err)
	}

	// Repost: same company/title/source under a fresh URL.
	repost := jobFixture(companyID, "  go engineer ", "https://x.example/2-repost")
	id2, created, err := st.InsertNormalizedJob(ctx, repost)
	if err != nil {
		t.Fatalf("repost insert: %v", err)
	}
	if created || id2 != id1 {
		t.Errorf("repost: id=%d created=%v, want existing row %d", id2, created, id1)
	}

	// Same title from a different source is a distinct posting.
	other := jobFixture(companyID, "Go Engineer", "https://y.example/1")
	other.SourceID = 2
	_, created, err = st.InsertNormalizedJob(ctx, other)
	if err != nil {
		t.Fatal(err)
	}
	if !created {
		t.Error("different source must create a new row")
	}

	n, err := st.CountJobs(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("jobs = %d, want 2", n)
	}
}

func TestInsertNormalizedJob_NullableFieldsRoundTrip(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	companyID, err := st.UpsertCompany(ctx, "Acme", "", "")
	if err != nil {
		t.Fatal(err)
	}

	salary := 25000000.0
	currency := int64(1)
	city := "Hanoi"
	rec := jobFixture(companyID, "Engineer", "https://x.example/1")
	rec.MonthlySalary = &salary
	rec.CurrencyID = &currency
	rec.City = &city

	if _, _, err := st.InsertNormalizedJob(ctx, rec); err != nil {
		t.Fatalf("insert with nullables: %v", err)
	}

	bare := jobFixture(companyID, "Other Engineer", "https://x.example/2")
	if _, _, err := st.InsertNormalizedJob(ctx, bare); err != nil {
		t.Fatalf("insert with nulls: %v", err)
	}
}
