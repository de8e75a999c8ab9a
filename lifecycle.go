package tether

import (
	"context"

	"github.com/danpasecinic/tether/internal/container"
	"github.com/danpasecinic/tether/internal/scopecache"
)

type Hook func(ctx context.Context) error

// Disposable is implemented by dependencies that release resources when
// their creator's scope ends. io.Closer is honored as well.
type Disposable = scopecache.Disposable

// Lifecycle groups start and stop hooks so a set of services can share them.
type Lifecycle struct {
	onStart []Hook
	onStop  []Hook
}

func (l *Lifecycle) Append(other *Lifecycle) {
	if other == nil {
		return
	}
	l.onStart = append(l.onStart, other.onStart...)
	l.onStop = append(l.onStop, other.onStop...)
}

func (l *Lifecycle) OnStart(hook Hook) {
	l.onStart = append(l.onStart, hook)
}

func (l *Lifecycle) OnStop(hook Hook) {
	l.onStop = append(l.onStop, hook)
}

// WithLifecycle attaches every hook of l to the binding.
func WithLifecycle(l *Lifecycle) ProviderOption {
	return func(cfg *providerConfig) {
		if l == nil {
			return
		}
		for _, hook := range l.onStart {
			cfg.onStart = append(cfg.onStart, container.Hook(hook))
		}
		for _, hook := range l.onStop {
			cfg.onStop = append(cfg.onStop, container.Hook(hook))
		}
	}
}
