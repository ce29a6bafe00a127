package latency

import (
	"encoding/json"
	"fmt"
	"os"
)

// TimingConfig holds latency values for the address-translation path.
type TimingConfig struct {
	// LookupLatency is the combinational TLB probe latency.
	// Default: 1 cycle.
	LookupLatency uint64 `json:"lookup_latency"`

	// WalkOverhead is the fixed cost of handing a miss to the page-table
	// walker. Default: 3 cycles.
	WalkOverhead uint64 `json:"walk_overhead"`

	// PTEAccessLatency is the memory latency of one page-table-entry
	// fetch; a walk pays it once per level touched. Default: 150 cycles.
	PTEAccessLatency uint64 `json:"pte_access_latency"`

	// SFenceLatency is the cost of applying one invalidation request.
	// Default: 1 cycle.
	SFenceLatency uint64 `json:"sfence_latency"`
}

// DefaultTimingConfig returns a TimingConfig with default values.
func DefaultTimingConfig() *TimingConfig {
	return &TimingConfig{
		LookupLatency:    1,
		WalkOverhead:     3,
		PTEAccessLatency: 150,
		SFenceLatency:    1,
	}
}

// LoadConfig loads a TimingConfig from a JSON file.
func LoadConfig(path string) (*TimingConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read timing config file: %w", err)
	}

	config := DefaultTimingConfig()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse timing config: %w", err)
	}

	return config, nil
}

// SaveConfig writes a TimingConfig to a JSON file.
func (c *TimingConfig) SaveConfig(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize timing config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write timing config file: %w", err)
	}

	return nil
}

// Validate checks that all latency values are valid (> 0).
func (c *TimingConfig) Validate() error {
	if c.LookupLatency == 0 {
		return fmt.Errorf("lookup_latency must be > 0")
	}
	if c.PTEAccessLatency == 0 {
		return fmt.Errorf("pte_access_latency must be > 0")
	}
	if c.SFenceLatency == 0 {
		return fmt.Errorf("sfence_latency must be > 0")
	}
	return nil
}

// Clone returns a deep copy of the TimingConfig.
func (c *TimingConfig) Clone() *TimingConfig {
	clone := *c
	return &clone
}
