package cache

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestSetGet(t *testing.T) {
	c := NewPriceCache()
	c.Set("okex", decimal.NewFromInt(9000))

	got, ok := c.Get("okex", time.Minute)
	if !ok {
		t.Fatal("expected cached price")
	}
	if got.String() != "9000" {
		t.Errorf("price = %s, want 9000", got)
	}

	if _, ok := c.Get("binance", time.Minute); ok {
		t.Error("expected miss for unknown venue")
	}
}

func TestStaleEntryMisses(t *testing.T) {
	c := NewPriceCache()
	c.Set("bybit", decimal.NewFromInt(100))

	if _, ok := c.Get("bybit", 0); ok {
		t.Error("expected miss with zero max age")
	}
}

func TestCleanup(t *testing.T) {
	c := NewPriceCache()
	c.Set("a", decimal.NewFromInt(1))
	c.Set("b", decimal.NewFromInt(2))

	if removed := c.Cleanup(time.Minute); removed != 0 {
		t.Errorf("removed = %d, want 0", removed)
	}
	if removed := c.Cleanup(-time.Second); removed != 2 {
		t.Errorf("removed = %d, want 2", removed)
	}
	if c.Len() != 0 {
		t.Errorf("Len = %d, want 0", c.Len())
	}
}

func TestSnapshot(t *testing.T) {
	c := NewPriceCache()
	c.Set("paper", decimal.NewFromInt(42))

	snap := c.Snapshot()
	info, ok := snap["paper"]
	if !ok {
		t.Fatal("expected paper in snapshot")
	}
	if info.Price.String() != "42" {
		t.Errorf("price = %s, want 42", info.Price)
	}
}
