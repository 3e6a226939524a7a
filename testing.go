package memsim

import "github.com/rcolburn/memsim/testctrl"

// NewTestControllers builds n deterministic, fixed-latency fake
// controllers (testctrl.Controller) for use in tests and examples that
// need a Dispatcher without a real per-channel/per-vault collaborator.
func NewTestControllers(n int, capacity int, latency uint64) []Controller {
	ctrls := make([]Controller, n)
	for i := range ctrls {
		ctrls[i] = testctrl.New(capacity, latency)
	}
	return ctrls
}

// NewTestJEDECDispatcher builds a JEDEC Dispatcher over cfg.Channels fake
// controllers, convenient for tests that don't care about real DRAM
// timing.
func NewTestJEDECDispatcher(cfg Config, capacity int, latency uint64) (*Dispatcher, error) {
	return NewJEDECDispatcher(cfg, NewTestControllers(cfg.Channels, capacity, latency), nil, nil)
}

// NewTestHMCDispatcher builds an HMC Dispatcher over nVaults fake
// controllers.
func NewTestHMCDispatcher(cfg Config, nVaults int, capacity int, latency uint64) (*Dispatcher, error) {
	return NewHMCDispatcher(cfg, NewTestControllers(nVaults, capacity, latency), nil, nil)
}

// NewTestIdealDispatcher builds an Ideal Dispatcher (which has no
// controller collaborators at all).
func NewTestIdealDispatcher(cfg Config) (*Dispatcher, error) {
	return NewIdealDispatcher(cfg, nil, nil)
}
