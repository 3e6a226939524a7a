// Package config holds the simulator's configuration surface (§6
// "Configuration options"): address decoding, HMC crossbar sizing, CiM
// compute delays, and the stats file paths.
package config

import (
	"fmt"

	"github.com/rcolburn/memsim/internal/constants"
)

// Config collects every configuration knob named in spec.md §6. A zero
// value is not valid; use DefaultConfig and override fields as needed.
type Config struct {
	// Address decoding (C1).
	Channels  int
	ShiftBits uint
	ChPos     uint
	ChMask    uint64

	// BlockSize selects the HMC RD/WR request variant for plain ops.
	// Must be one of 0, 32, 64, 128, 256.
	BlockSize int

	// HMC crossbar sizing.
	NumLinks       int
	LinkWidth      int
	LinkSpeedMHz   int
	LogicSpeedMHz  int
	XbarQueueDepth int

	// EpochPeriod is the statistics emission interval, in cycles.
	EpochPeriod uint64

	// IdealMemoryLatency is the ideal dispatcher's fixed latency, in
	// cycles.
	IdealMemoryLatency uint64

	// CiM compute delays, in cycles.
	CiMAddDelay  uint64
	CiMXorDelay  uint64
	CiMSwapDelay uint64

	// Output file paths for persisted stats (§6 "Persisted state").
	OutputPrefix  string
	JSONStatsName string
	JSONEpochName string
}

// DefaultConfig returns a JEDEC-shaped default configuration: two
// channels, no HMC crossbar behavior implied by the address-decode
// defaults alone (the HMC-specific fields are still populated so the same
// Config can be handed to any dispatcher variant's constructor, which
// validates the subset it needs).
func DefaultConfig() Config {
	return Config{
		Channels:  constants.DefaultChannels,
		ShiftBits: constants.DefaultShiftBits,
		ChPos:     constants.DefaultChPos,
		ChMask:    constants.DefaultChMask,

		BlockSize: constants.DefaultBlockSize,

		NumLinks:       constants.DefaultNumLinks,
		LinkWidth:      constants.DefaultLinkWidth,
		LinkSpeedMHz:   constants.DefaultLinkSpeedMHz,
		LogicSpeedMHz:  constants.DefaultLogicSpeedMHz,
		XbarQueueDepth: constants.DefaultXbarQueueDepth,

		EpochPeriod: constants.DefaultEpochPeriod,

		IdealMemoryLatency: constants.DefaultIdealLatency,

		CiMAddDelay:  constants.DefaultCiMAddDelay,
		CiMXorDelay:  constants.DefaultCiMXorDelay,
		CiMSwapDelay: constants.DefaultCiMSwapDelay,

		OutputPrefix:  "memsim",
		JSONStatsName: "memsim.stats.json",
		JSONEpochName: "memsim.epoch.json",
	}
}

// ValidateJEDEC checks the fields a JEDEC dispatcher relies on. A bad
// config is a fatal, not recoverable, condition (§7.1).
func (c Config) ValidateJEDEC() error {
	if c.Channels <= 0 {
		return fmt.Errorf("config: channels must be positive, got %d", c.Channels)
	}
	return nil
}

// ValidateHMC checks the fields an HMC dispatcher relies on.
func (c Config) ValidateHMC() error {
	switch c.BlockSize {
	case 0, 32, 64, 128, 256:
	default:
		return fmt.Errorf("config: unknown block_size %d", c.BlockSize)
	}
	if c.NumLinks <= 0 {
		return fmt.Errorf("config: num_links must be positive, got %d", c.NumLinks)
	}
	if c.XbarQueueDepth <= 0 {
		return fmt.Errorf("config: xbar_queue_depth must be positive, got %d", c.XbarQueueDepth)
	}
	if c.LinkSpeedMHz <= 0 || c.LogicSpeedMHz <= 0 {
		return fmt.Errorf("config: link_speed/logic_speed must be positive")
	}
	return nil
}

// ValidateIdeal checks the fields the ideal dispatcher relies on.
func (c Config) ValidateIdeal() error {
	if c.IdealMemoryLatency == 0 {
		return fmt.Errorf("config: ideal_memory_latency must be positive")
	}
	return nil
}

// FlitSizeBits is the fixed HMC flit size (16 bytes), used only to derive
// LinkCyclesPerFlit for reporting; it plays no part in the dual-clock tick
// math below.
const FlitSizeBits = 128

// LinkCyclesPerFlit is how many link_width-wide beats one flit takes to
// cross the serial link (§8 S6: link_width=16 ⇒ link_cycles_per_flit=8).
func (c Config) LinkCyclesPerFlit() int {
	if c.LinkWidth <= 0 {
		return 1
	}
	return FlitSizeBits / c.LinkWidth
}

// PsPerLogic returns the logic-domain tick period in picoseconds, clamped
// to at most the DRAM tick period (§4.3 "This interleaves a slow DRAM
// tick... with faster logic ticks"; §8 S6: logic_speed=3750MHz ⇒
// ps_per_logic≈266, ps_per_dram=800 ⇒ 3 logic ticks per outer tick).
func (c Config) PsPerLogic() uint64 {
	if c.LogicSpeedMHz <= 0 {
		return constants.DefaultPsPerDRAM
	}
	// Ceiling division: §8 S6 requires ps_per_logic=267 (not the truncated
	// 266) for exactly 3 logic ticks to fit inside one 800ps DRAM tick.
	ps := (1_000_000 + uint64(c.LogicSpeedMHz) - 1) / uint64(c.LogicSpeedMHz)
	if ps == 0 {
		ps = 1
	}
	if ps > constants.DefaultPsPerDRAM {
		ps = constants.DefaultPsPerDRAM
	}
	return ps
}
