package accounting

import (
	"context"
	"log/slog"
	"time"

	"github.com/xtxerr/keysample/internal/aggstore"
	"github.com/xtxerr/keysample/internal/backpressure"
	"github.com/xtxerr/keysample/internal/sample"
)

type request func(*shard)

// requestQueue exposes a shard's request channel as a backpressure gauge.
type requestQueue chan request

func (q requestQueue) Len() int { return len(q) }
func (q requestQueue) Cap() int { return cap(q) }

// shard owns one sampler. Only its run loop touches sampler and store.
type shard struct {
	id           int
	store        *aggstore.BTree[string]
	sampler      *sample.Transient[string]
	reqs         chan request
	pressure     *backpressure.Controller
	pollInterval time.Duration
	log          *slog.Logger
}

func (s *shard) run(ctx context.Context) error {
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.poll()
			s.pressure.Check()
		case req := <-s.reqs:
			req(s)
		}
	}
}

// poll runs the expiration sweep and logs what it reversed.
func (s *shard) poll() {
	before := s.sampler.Pending()
	s.sampler.Poll()
	if n := before - s.sampler.Pending(); n > 0 {
		s.log.Debug("expired samples", "count", n, "keys", s.sampler.Len())
	}
}

func (s *shard) onPressure(old, new backpressure.Level, usage float64) {
	if new > old {
		s.log.Warn("request queue pressure rising", "from", old, "to", new, "usage", usage)
	} else {
		s.log.Info("request queue pressure easing", "from", old, "to", new, "usage", usage)
	}
}
