// Package config holds the simulator's typed configuration, its
// defaults (matched 1:1 to the Pin tool's KNOB defaults this system was
// distilled from), and TOML-file loading.
package config

import (
	"math/bits"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
)

// CacheGeometry describes one set-associative cache's static shape.
type CacheGeometry struct {
	SizeKB       uint32 `toml:"size_kb"`
	LineBytes    uint32 `toml:"line_bytes"`
	Associativity uint32 `toml:"associativity"`
}

// NumSets derives S from SizeKB/LineBytes/Associativity.
func (g CacheGeometry) NumSets() uint32 {
	total := uint64(g.SizeKB) * 1024
	return uint32(total / (uint64(g.LineBytes) * uint64(g.Associativity)))
}

// Validate checks the power-of-two and divisibility constraints from
// spec.md §3: lineSize and S are powers of two, and cacheSize is an
// exact multiple of associativity*lineSize.
func (g CacheGeometry) Validate(name string) error {
	if g.LineBytes == 0 || bits.OnesCount32(g.LineBytes) != 1 {
		return errors.Errorf("%s: line_bytes must be a power of two, got %d", name, g.LineBytes)
	}
	if g.Associativity == 0 {
		return errors.Errorf("%s: associativity must be > 0", name)
	}
	total := uint64(g.SizeKB) * 1024
	denom := uint64(g.LineBytes) * uint64(g.Associativity)
	if denom == 0 || total%denom != 0 {
		return errors.Errorf("%s: size_kb*1024 (%d) must be a multiple of associativity*line_bytes (%d)", name, total, denom)
	}
	sets := g.NumSets()
	if sets == 0 || bits.OnesCount32(sets) != 1 {
		return errors.Errorf("%s: derived set count must be a power of two, got %d", name, sets)
	}
	return nil
}

// Thresholds configures the function-use classifier (C5).
type Thresholds struct {
	DegreeHigh         float64 `toml:"degree_high"`
	DegreeMedium       float64 `toml:"degree_medium"`
	MissThreshold      uint64  `toml:"miss_threshold"`
	InvocationThreshold uint64 `toml:"invocation_threshold"`
}

// Validate checks that the two ratio thresholds are ordered sensibly.
func (t Thresholds) Validate() error {
	if t.DegreeMedium > t.DegreeHigh {
		return errors.Errorf("degree_medium (%v) must not exceed degree_high (%v)", t.DegreeMedium, t.DegreeHigh)
	}
	if t.DegreeHigh <= 0 || t.DegreeMedium <= 0 {
		return errors.New("degree thresholds must be positive")
	}
	return nil
}

// Victim configures the shared victim buffer (C4).
type Victim struct {
	Entries uint32 `toml:"entries"`
	Enabled bool   `toml:"enabled"`
}

// Tracing configures the OpenTelemetry domain-stack wiring (SPEC_FULL §4).
// It is off by default: this is a batch simulator, not a service, and
// tracing exists to make one run's lifecycle inspectable, not to carry
// request-scoped context.
type Tracing struct {
	Enabled      bool   `toml:"enabled"`
	JaegerEndpoint string `toml:"jaeger_endpoint"`
	ServiceName  string `toml:"service_name"`
}

// Config is the complete simulator configuration, matching the
// "External Interfaces" section of spec.md one field at a time.
type Config struct {
	ICache             CacheGeometry `toml:"icache"`
	ITLB               CacheGeometry `toml:"itlb"`
	InstructionThreshold uint64      `toml:"instruction_threshold"`
	ThreadID           uint32        `toml:"thread_id"`
	Thresholds         Thresholds    `toml:"thresholds"`
	Victim             Victim        `toml:"victim"`
	OutputPath         string        `toml:"output_path"`
	Tracing            Tracing       `toml:"tracing"`
}

// Default returns the configuration with every value from spec.md §6's
// defaults table.
func Default() Config {
	return Config{
		ICache: CacheGeometry{SizeKB: 32, LineBytes: 64, Associativity: 8},
		ITLB:   CacheGeometry{SizeKB: 32, LineBytes: 64, Associativity: 8},
		InstructionThreshold: 500_000_000,
		ThreadID:             15,
		Thresholds: Thresholds{
			DegreeHigh:          1.5,
			DegreeMedium:        1.0,
			MissThreshold:       50,
			InvocationThreshold: 50,
		},
		Victim: Victim{
			Entries: 32,
			Enabled: true,
		},
		OutputPath: "icachesim.out",
		Tracing: Tracing{
			Enabled:        false,
			JaegerEndpoint: "http://localhost:14268/api/traces",
			ServiceName:    "icachesim",
		},
	}
}

// Load reads a TOML file over the defaults — any field the file omits
// keeps its Default() value — and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, cfg.Validate()
	}
	if _, err := os.Stat(path); err != nil {
		return Config{}, errors.Wrapf(err, "config: stat %q", path)
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, errors.Wrapf(err, "config: decode %q", path)
	}
	return cfg, cfg.Validate()
}

// Validate applies every construction-time check spec.md §7 calls a
// "configuration error": non-power-of-two geometry, inverted thresholds,
// an empty victim buffer that's been enabled.
func (c Config) Validate() error {
	if err := c.ICache.Validate("icache"); err != nil {
		return err
	}
	if err := c.ITLB.Validate("itlb"); err != nil {
		return err
	}
	if err := c.Thresholds.Validate(); err != nil {
		return err
	}
	if c.Victim.Enabled && c.Victim.Entries == 0 {
		return errors.New("victim.entries must be > 0 when victim.enabled is true")
	}
	if c.InstructionThreshold == 0 {
		return errors.New("instruction_threshold must be > 0")
	}
	return nil
}
