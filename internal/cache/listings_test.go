package cache

import (
	"testing"
	"time"

	"rentchain.org/internal/market"
)

func TestGetMissThenHit(t *testing.T) {
	c := NewListings()
	f := market.PropertyFilter{Status: market.PropertyOpen}

	if _, ok := c.Get(f); ok {
		t.Fatal("expected miss on empty cache")
	}
	c.Put(f, []market.Property{{ID: 1, Title: "Loft"}})
	got, ok := c.Get(f)
	if !ok || len(got) != 1 || got[0].ID != 1 {
		t.Fatalf("expected cached result, got %v ok=%v", got, ok)
	}
}

func TestDistinctFiltersDoNotCollide(t *testing.T) {
	c := NewListings()
	open := market.PropertyFilter{Status: market.PropertyOpen}
	cheap := market.PropertyFilter{Status: market.PropertyOpen, MaxPrice: 1000}

	c.Put(open, []market.Property{{ID: 1}, {ID: 2}})
	c.Put(cheap, []market.Property{{ID: 2}})

	if got, _ := c.Get(open); len(got) != 2 {
		t.Fatalf("open filter: got %d entries", len(got))
	}
	if got, _ := c.Get(cheap); len(got) != 1 {
		t.Fatalf("cheap filter: got %d entries", len(got))
	}
}

func TestInvalidateDropsEverything(t *testing.T) {
	c := NewListings()
	f := market.PropertyFilter{}
	c.Put(f, []market.Property{{ID: 1}})
	c.Invalidate()
	if _, ok := c.Get(f); ok {
		t.Fatal("expected miss after invalidate")
	}
}

func TestEntriesExpire(t *testing.T) {
	c := NewListings().WithTTL(time.Millisecond)
	f := market.PropertyFilter{}
	c.Put(f, []market.Property{{ID: 1}})
	time.Sleep(5 * time.Millisecond)
	if _, ok := c.Get(f); ok {
		t.Fatal("expected expired entry to miss")
	}
}
