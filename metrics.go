package tether

import (
	"github.com/danpasecinic/tether/internal/activation"
	"github.com/danpasecinic/tether/internal/container"
	"github.com/danpasecinic/tether/internal/scopecache"
)

type (
	ResolveHook = container.ResolveHook
	ProvideHook = container.ProvideHook
	StartHook   = container.StartHook
	StopHook    = container.StopHook
)

// ActivateHook receives the service key, the number of declared dependencies
// built for the new instance, the time it took and the first failure.
type ActivateHook = activation.Observer

// DisposeHook fires once per disposed scope entry.
type DisposeHook = scopecache.DisposeHook

type PruneHook = scopecache.PruneHook
