// Package poller runs the periodic cart expiry sweep. The sweep only flips
// is_active on documents already past expires_at, so it never contends with
// live cart mutations.
package poller

import (
	"context"
	"log"
	"time"

	r "github.com/gemcart/gemcart/internal/repository"
)

type CartSweeper struct {
	repo r.CartRepository
	tick time.Duration
}

func NewCartSweeper(repo r.CartRepository, tick time.Duration) *CartSweeper {
	if tick <= 0 {
		tick = 10 * time.Minute
	}
	return &CartSweeper{repo: repo, tick: tick}
}

func (s *CartSweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.sweep(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (s *CartSweeper) sweep(ctx context.Context) {
	expired, err := s.repo.ExpireStale(ctx, time.Now())
	if err != nil {
		log.Printf("cart expiry sweep failed: %v", err)
		return
	}
	if expired > 0 {
		log.Printf("expired %d stale carts", expired)
	}
}
