package query

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"receipts/internal/core"
	"receipts/internal/storage"
)

func newTestEngine(t *testing.T) (*Engine, *storage.SQLiteRepository) {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "receipts.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return NewEngine(repo), repo
}

func seed(t *testing.T, repo *storage.SQLiteRepository, receipts ...core.Receipt) {
	t.Helper()
	for _, rec := range receipts {
		if _, err := repo.Create(context.Background(), rec); err != nil {
			t.Fatalf("seed %s: %v", rec.Vendor, err)
		}
	}
}

func TestExecuteSearch(t *testing.T) {
	engine, repo := newTestEngine(t)
	seed(t, repo,
		core.Receipt{Vendor: "Walmart", Date: core.NewDate(2026, 2, 10), Total: core.Money{Cents: 1200}, Currency: "CAD", Category: core.CategoryGrocery},
		core.Receipt{Vendor: "WALMART SUPERCENTER", Date: core.NewDate(2026, 2, 27), Total: core.Money{Cents: 4550}, Currency: "CAD", Category: core.CategoryGrocery},
		core.Receipt{Vendor: "Target", Date: core.NewDate(2026, 2, 15), Total: core.Money{Cents: 900}, Currency: "CAD", Category: core.CategoryShopping},
	)

	res, err := engine.Execute(context.Background(), core.SearchIntent{Token: " walmart "})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	list, ok := res.(ReceiptList)
	if !ok {
		t.Fatalf("result type %T, want ReceiptList", res)
	}
	if len(list.Receipts) != 2 {
		t.Fatalf("matched %d receipts, want 2", len(list.Receipts))
	}
	for _, r := range list.Receipts {
		if r.Vendor == "Target" {
			t.Error("search matched Target")
		}
	}
}

func TestExecuteSearchEmptyToken(t *testing.T) {
	engine, _ := newTestEngine(t)

	var iqe *core.InvalidQueryError
	if _, err := engine.Execute(context.Background(), core.SearchIntent{Token: "   "}); !errors.As(err, &iqe) {
		t.Fatalf("Execute = %v, want InvalidQueryError", err)
	}
}

func TestExecuteList(t *testing.T) {
	engine, repo := newTestEngine(t)
	seed(t, repo,
		core.Receipt{Vendor: "Walmart", Date: core.NewDate(2026, 2, 10), Total: core.Money{Cents: 1200}, Currency: "CAD", Category: core.CategoryGrocery},
		core.Receipt{Vendor: "Uber", Date: core.NewDate(2026, 2, 11), Total: core.Money{Cents: 1500}, Currency: "CAD", Category: core.CategoryTransport},
	)

	res, err := engine.Execute(context.Background(), core.ListIntent{Category: core.CategoryTransport})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if list := res.(ReceiptList); len(list.Receipts) != 1 || list.Receipts[0].Vendor != "Uber" {
		t.Fatalf("category list = %+v", list.Receipts)
	}

	res, err = engine.Execute(context.Background(), core.ListIntent{})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if list := res.(ReceiptList); len(list.Receipts) != 2 {
		t.Fatalf("unfiltered list has %d receipts, want 2", len(list.Receipts))
	}
}

func TestExecuteSummarize(t *testing.T) {
	engine, repo := newTestEngine(t)
	seed(t, repo,
		core.Receipt{Vendor: "Green Fresh", Date: core.NewDate(2026, 2, 27), Total: core.Money{Cents: 4550}, Currency: "CAD", Category: core.CategoryGrocery},
		core.Receipt{Vendor: "Noodle House", Date: core.NewDate(2026, 2, 10), Total: core.Money{Cents: 1200}, Currency: "CAD", Category: core.CategoryDining},
		core.Receipt{Vendor: "Elsewhere", Date: core.NewDate(2026, 3, 1), Total: core.Money{Cents: 9999}, Currency: "CAD", Category: core.CategoryOther},
	)

	feb := core.Month{Year: 2026, Month: time.February}
	res, err := engine.Execute(context.Background(), core.SummarizeIntent{Month: feb})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	sum := res.(Summary).Summary
	if sum.Count != 2 {
		t.Fatalf("count = %d, want 2", sum.Count)
	}
	if len(sum.Totals) != 1 {
		t.Fatalf("currencies = %d, want 1", len(sum.Totals))
	}
	cad := sum.Totals[0]
	if cad.Currency != "CAD" || cad.Total.Cents != 5750 {
		t.Fatalf("CAD total = %+v, want 57.50", cad)
	}
	if len(cad.ByCategory) != 2 {
		t.Fatalf("breakdown size = %d, want 2", len(cad.ByCategory))
	}
	if cad.ByCategory[0].Category != core.CategoryGrocery || cad.ByCategory[0].Amount.Cents != 4550 {
		t.Errorf("top category = %+v, want grocery 45.50", cad.ByCategory[0])
	}
	if cad.ByCategory[1].Category != core.CategoryDining || cad.ByCategory[1].Amount.Cents != 1200 {
		t.Errorf("second category = %+v, want dining 12.00", cad.ByCategory[1])
	}
}

func TestExecuteSummarizeMultiCurrency(t *testing.T) {
	engine, repo := newTestEngine(t)
	seed(t, repo,
		core.Receipt{Vendor: "Local Shop", Date: core.NewDate(2026, 2, 1), Total: core.Money{Cents: 1000}, Currency: "CAD", Category: core.CategoryShopping},
		core.Receipt{Vendor: "Online Shop", Date: core.NewDate(2026, 2, 2), Total: core.Money{Cents: 2000}, Currency: "USD", Category: core.CategoryShopping},
	)

	res, err := engine.Execute(context.Background(), core.SummarizeIntent{Month: core.Month{Year: 2026, Month: time.February}})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	sum := res.(Summary).Summary
	if len(sum.Totals) != 2 {
		t.Fatalf("currencies = %d, want 2 (never co-mingled)", len(sum.Totals))
	}
	// Sorted by currency code.
	if sum.Totals[0].Currency != "CAD" || sum.Totals[1].Currency != "USD" {
		t.Errorf("currency order = %s, %s", sum.Totals[0].Currency, sum.Totals[1].Currency)
	}
}

func TestExecuteSummarizeEmptyMonth(t *testing.T) {
	engine, _ := newTestEngine(t)

	res, err := engine.Execute(context.Background(), core.SummarizeIntent{Month: core.Month{Year: 2026, Month: time.July}})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	sum := res.(Summary).Summary
	if sum.Count != 0 || len(sum.Totals) != 0 {
		t.Fatalf("empty month summary = %+v, want zero result", sum)
	}
}

func TestExecuteUnknown(t *testing.T) {
	engine, _ := newTestEngine(t)

	var uie *core.UnresolvedIntentError
	if _, err := engine.Execute(context.Background(), core.UnknownIntent{Utterance: "hello"}); !errors.As(err, &uie) {
		t.Fatalf("Execute = %v, want UnresolvedIntentError", err)
	}
}
