package storage

import (
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"receipts/internal/core"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "receipts.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func sampleReceipt() core.Receipt {
	return core.Receipt{
		Vendor:   "Green Fresh Supermarket",
		Date:     core.NewDate(2026, 2, 26),
		Total:    core.Money{Cents: 247},
		Currency: "CAD",
		Category: core.CategoryGrocery,
		Items: []core.Item{
			{Name: "milk", Price: core.Money{Cents: 199}},
			{Name: "bread", Price: core.Money{Cents: 48}},
		},
	}
}

func TestCreateGetRoundTrip(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	created, err := repo.Create(ctx, sampleReceipt())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if created.ID == 0 {
		t.Fatal("Create did not assign an id")
	}
	if created.CreatedAt.IsZero() {
		t.Fatal("Create did not assign created_at")
	}

	got, err := repo.Get(ctx, created.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.ID != created.ID ||
		got.Vendor != created.Vendor ||
		got.Date.String() != created.Date.String() ||
		got.Total != created.Total ||
		got.Currency != created.Currency ||
		got.Category != created.Category ||
		!reflect.DeepEqual(got.Items, created.Items) ||
		!got.CreatedAt.Equal(created.CreatedAt) {
		t.Errorf("round trip mismatch:\n got  %+v\n want %+v", got, created)
	}
}

func TestCreateValidation(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	rec := sampleReceipt()
	rec.Total = core.Money{Cents: -1}
	if _, err := repo.Create(ctx, rec); err == nil {
		t.Fatal("Create with negative total succeeded")
	} else {
		var verr *core.ValidationError
		if !errors.As(err, &verr) || verr.Field != "total" {
			t.Fatalf("Create error = %v, want ValidationError on total", err)
		}
	}

	// Nothing may be persisted by a failed create.
	all, err := repo.All(ctx)
	if err != nil {
		t.Fatalf("All: %v", err)
	}
	if len(all) != 0 {
		t.Fatalf("failed create left %d receipts behind", len(all))
	}

	rec = sampleReceipt()
	rec.Total = core.Money{Cents: 0}
	if _, err := repo.Create(ctx, rec); err != nil {
		t.Fatalf("Create with zero total: %v", err)
	}
}

func TestCreateDefaultsCategory(t *testing.T) {
	repo := newTestRepo(t)

	rec := sampleReceipt()
	rec.Category = ""
	created, err := repo.Create(context.Background(), rec)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if created.Category != core.CategoryOther {
		t.Errorf("category = %q, want %q", created.Category, core.CategoryOther)
	}
}

func TestCreateDuplicateImage(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	rec := sampleReceipt()
	rec.ImagePath = "images/abc.jpg"
	rec.ImageSHA = "abc123"
	first, err := repo.Create(ctx, rec)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	_, err = repo.Create(ctx, rec)
	var dup *core.DuplicateImageError
	if !errors.As(err, &dup) {
		t.Fatalf("second Create = %v, want DuplicateImageError", err)
	}
	if dup.ReceiptID != first.ID {
		t.Errorf("duplicate points at %d, want %d", dup.ReceiptID, first.ID)
	}
}

func TestDeleteThenGetFails(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	created, err := repo.Create(ctx, sampleReceipt())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := repo.Delete(ctx, created.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	var nf *core.NotFoundError
	if _, err := repo.Get(ctx, created.ID); !errors.As(err, &nf) {
		t.Fatalf("Get after delete = %v, want NotFoundError", err)
	}
	// Second delete of the same id fails too.
	if err := repo.Delete(ctx, created.ID); !errors.As(err, &nf) {
		t.Fatalf("second Delete = %v, want NotFoundError", err)
	}
}

func TestFindFiltersAndOrdering(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	seed := []core.Receipt{
		{Vendor: "Walmart", Date: core.NewDate(2026, 2, 10), Total: core.Money{Cents: 1200}, Currency: "CAD", Category: core.CategoryGrocery},
		{Vendor: "WALMART SUPERCENTER", Date: core.NewDate(2026, 2, 27), Total: core.Money{Cents: 4550}, Currency: "CAD", Category: core.CategoryGrocery},
		{Vendor: "Target", Date: core.NewDate(2026, 2, 27), Total: core.Money{Cents: 900}, Currency: "CAD", Category: core.CategoryShopping},
		{Vendor: "Uber", Date: core.NewDate(2026, 3, 1), Total: core.Money{Cents: 1500}, Currency: "CAD", Category: core.CategoryTransport},
	}
	var ids []int64
	for _, rec := range seed {
		created, err := repo.Create(ctx, rec)
		if err != nil {
			t.Fatalf("Create(%s): %v", rec.Vendor, err)
		}
		ids = append(ids, created.ID)
	}

	// Case-insensitive vendor substring.
	got, err := repo.Find(ctx, core.ReceiptFilter{Vendor: "walmart"})
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("vendor filter matched %d receipts, want 2", len(got))
	}
	if got[0].Vendor != "WALMART SUPERCENTER" || got[1].Vendor != "Walmart" {
		t.Errorf("vendor filter order: %q, %q", got[0].Vendor, got[1].Vendor)
	}

	// Month filter.
	feb := core.Month{Year: 2026, Month: time.February}
	got, err = repo.Find(ctx, core.ReceiptFilter{Month: feb})
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("month filter matched %d receipts, want 3", len(got))
	}
	// Date descending, then id descending on ties.
	if got[0].ID != ids[2] || got[1].ID != ids[1] || got[2].ID != ids[0] {
		t.Errorf("month filter order: %d, %d, %d", got[0].ID, got[1].ID, got[2].ID)
	}

	// Conjunctive filters.
	got, err = repo.Find(ctx, core.ReceiptFilter{Vendor: "walmart", Month: feb, Category: core.CategoryGrocery})
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("conjunctive filter matched %d receipts, want 2", len(got))
	}

	// No match is an empty result, not an error.
	got, err = repo.Find(ctx, core.ReceiptFilter{Vendor: "costco"})
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("no-match filter returned %d receipts", len(got))
	}
}

func TestInitIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "receipts.db")
	repo, err := NewSQLiteRepository(path)
	if err != nil {
		t.Fatalf("first open: %v", err)
	}
	repo.Close()

	repo, err = NewSQLiteRepository(path)
	if err != nil {
		t.Fatalf("second open: %v", err)
	}
	repo.Close()
}
