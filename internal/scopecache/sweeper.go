package scopecache

import (
	"sync"
	"time"
)

// Sweeper prunes a cache on an interval and whenever the cache reports a
// collected creator.
type Sweeper struct {
	cache    *Cache
	interval time.Duration
	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

func (c *Cache) StartSweeper(interval time.Duration) *Sweeper {
	s := &Sweeper{
		cache:    c,
		interval: interval,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	go s.run()
	return s
}

func (s *Sweeper) run() {
	defer close(s.done)

	var tick <-chan time.Time
	if s.interval > 0 {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-s.stop:
			return
		case <-tick:
		case <-s.cache.Collected():
		}

		if _, err := s.cache.Prune(); err != nil {
			s.cache.logger.Warn("background prune finished with errors", "error", err)
		}
	}
}

// Stop ends the sweep loop and waits for an in-flight prune to finish.
func (s *Sweeper) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
	<-s.done
}
