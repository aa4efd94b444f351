package cache

import (
	"context"

	gocache "github.com/patrickmn/go-cache"

	"github.com/sagoresarker/netcheck/internal/orgs"
)

// OrgCache memoizes organization lookups for the lifetime of one request.
// Entries never expire and no janitor goroutine runs; the cache is simply
// dropped with the request that created it.
type OrgCache struct {
	resolver orgs.Resolver
	items    *gocache.Cache
}

type cacheItem struct {
	org string
	err error
}

func NewOrgCache(resolver orgs.Resolver) *OrgCache {
	return &OrgCache{
		resolver: resolver,
		items:    gocache.New(gocache.NoExpiration, 0),
	}
}

// Organization resolves address once and replays the outcome, including
// failures, on later calls. Concurrent first lookups of the same address
// may both reach the resolver.
func (c *OrgCache) Organization(ctx context.Context, address string) (string, error) {
	if v, found := c.items.Get(address); found {
		item := v.(cacheItem)
		return item.org, item.err
	}

	org, err := c.resolver.Organization(ctx, address)
	if ctx.Err() == nil {
		c.items.SetDefault(address, cacheItem{org: org, err: err})
	}
	return org, err
}

// Len reports how many addresses have been looked up.
func (c *OrgCache) Len() int {
	return c.items.ItemCount()
}
