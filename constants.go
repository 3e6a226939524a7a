package memsim

import (
	"github.com/rcolburn/memsim/internal/config"
	"github.com/rcolburn/memsim/internal/interfaces"
)

// Config is the simulator's configuration surface (§6 "Configuration
// options"). Aliased from internal/config so host code never needs to
// import an internal package directly.
type Config = config.Config

// DefaultConfig returns a JEDEC-shaped default configuration; override
// fields for HMC or Ideal as needed.
func DefaultConfig() Config { return config.DefaultConfig() }

// Controller is the external per-channel/per-vault collaborator every
// dispatcher variant drives (§1 "Out of scope").
type Controller = interfaces.Controller

// Logger is the optional structured logger a dispatcher variant accepts.
type Logger = interfaces.Logger

// Observer receives per-event metrics callouts from a dispatcher.
type Observer = interfaces.Observer

// CompletionKind tags what a controller's ReturnDoneTrans call reports.
type CompletionKind = interfaces.CompletionKind

const (
	CompletionRead  = interfaces.CompletionRead
	CompletionWrite = interfaces.CompletionWrite
	CompletionCiM   = interfaces.CompletionCiM
)
