// Package oracle resolves asset/USD prices for x402 challenge construction,
// with a cache-with-TTL layer that degrades to a stale value and finally a
// static constant when the upstream source is unreachable.
package oracle

import "context"

// Quote is the price oracle's return shape: the USD price for one unit of
// asset, which source produced it, and whether it is within its fresh TTL.
type Quote struct {
	Price  float64
	Source string
	Fresh  bool
}

// Source fetches a live USD price for asset from an upstream provider.
type Source interface {
	FetchUSDPrice(ctx context.Context, asset string) (float64, error)
}
