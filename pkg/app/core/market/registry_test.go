package market

import (
	"errors"
	"testing"
	"time"

	"github.com/uhyunpark/yesno/pkg/app/core"
)

func TestRegistryCreateAndLookup(t *testing.T) {
	r := NewRegistry()
	now := time.Unix(1700000000, 0)

	m, err := r.Create("Eth", now)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if m.Book.Symbol() != "Eth" || !m.CreatedAt.Equal(now) {
		t.Fatalf("unexpected market %+v", m)
	}

	if _, err := r.Create("Eth", now); !errors.Is(err, core.ErrSymbolExists) {
		t.Fatalf("expected ErrSymbolExists, got %v", err)
	}
	if _, err := r.Book("Btc"); !errors.Is(err, core.ErrUnknownSymbol) {
		t.Fatalf("expected ErrUnknownSymbol, got %v", err)
	}

	book, err := r.Book("Eth")
	if err != nil || book != m.Book {
		t.Fatalf("Book returned %v, %v", book, err)
	}
}

func TestRegistrySymbolsSortedAndReset(t *testing.T) {
	r := NewRegistry()
	for _, s := range []string{"Sol", "Btc", "Eth"} {
		if _, err := r.Create(s, time.Time{}); err != nil {
			t.Fatal(err)
		}
	}

	got := r.Symbols()
	if len(got) != 3 || got[0] != "Btc" || got[1] != "Eth" || got[2] != "Sol" {
		t.Fatalf("symbols = %v", got)
	}
	if r.Count() != 3 || !r.Exists("Sol") {
		t.Fatal("count/exists mismatch")
	}

	r.Reset()
	if r.Count() != 0 || r.Exists("Eth") {
		t.Fatal("registry not empty after reset")
	}
}

func TestRegistryRejectsEmptySymbol(t *testing.T) {
	r := NewRegistry()
	if _, err := r.Create("  ", time.Time{}); !errors.Is(err, core.ErrUnknownSymbol) {
		t.Fatalf("expected ErrUnknownSymbol, got %v", err)
	}
}

func TestRegistryRejectsSeparatorInSymbol(t *testing.T) {
	r := NewRegistry()
	if _, err := r.Create("Eth:X", time.Time{}); !errors.Is(err, core.ErrInvalidName) {
		t.Fatalf("expected ErrInvalidName, got %v", err)
	}
	if r.Exists("Eth:X") {
		t.Fatal("market created for rejected symbol")
	}
}
