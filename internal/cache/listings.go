// Package cache keeps a short-lived copy of listing query results so the hot
// browse path does not hit the store on every request. Any write that touches
// a property invalidates the whole cache; listings change rarely compared to
// how often they are read.
package cache

import (
	"fmt"
	"time"

	"github.com/karlseguin/ccache/v3"

	"rentchain.org/internal/market"
)

const (
	defaultTTL     = 30 * time.Second
	defaultMaxSize = 256
)

// Listings caches ListProperties results per filter.
type Listings struct {
	inner *ccache.Cache[[]market.Property]
	ttl   time.Duration
}

func NewListings() *Listings {
	return &Listings{
		inner: ccache.New(ccache.Configure[[]market.Property]().MaxSize(defaultMaxSize)),
		ttl:   defaultTTL,
	}
}

// WithTTL overrides the entry lifetime. Used by tests.
func (l *Listings) WithTTL(ttl time.Duration) *Listings {
	l.ttl = ttl
	return l
}

// Get returns the cached result for the filter, or false on miss or expiry.
func (l *Listings) Get(f market.PropertyFilter) ([]market.Property, bool) {
	item := l.inner.Get(filterKey(f))
	if item == nil || item.Expired() {
		return nil, false
	}
	return item.Value(), true
}

// Put stores a query result under its filter key.
func (l *Listings) Put(f market.PropertyFilter, props []market.Property) {
	l.inner.Set(filterKey(f), props, l.ttl)
}

// Invalidate drops every cached result. Called after any property write.
func (l *Listings) Invalidate() {
	l.inner.Clear()
}

func filterKey(f market.PropertyFilter) string {
	return fmt.Sprintf("o=%d;s=%s;min=%d;max=%d", f.OwnerID, f.Status, f.MinPrice, f.MaxPrice)
}
