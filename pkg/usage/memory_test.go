package usage_test

import (
	"testing"
	"time"

	"github.com/dmitrymomot/gengate/pkg/usage"
	"github.com/dmitrymomot/gengate/pkg/usage/usagetest"
)

func TestMemoryStore(t *testing.T) {
	t.Parallel()

	usagetest.Run(t, func(t *testing.T, clock *usagetest.Clock, ttl time.Duration) usage.Store {
		return usage.NewMemoryStore(usagetest.Catalog(t),
			usage.WithClock(clock.Now),
			usage.WithReservationTTL(ttl),
		)
	})
}
