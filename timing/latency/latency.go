// Package latency provides timing models for the address-translation path.
package latency

// Table provides latency lookups for translation events.
type Table struct {
	config *TimingConfig
}

// NewTable creates a latency table with default timing values.
func NewTable() *Table {
	return &Table{
		config: DefaultTimingConfig(),
	}
}

// NewTableWithConfig creates a latency table with custom timing values.
func NewTableWithConfig(config *TimingConfig) *Table {
	return &Table{
		config: config,
	}
}

// Config returns the underlying timing configuration.
func (t *Table) Config() *TimingConfig {
	return t.config
}

// Lookup returns the latency of one TLB probe.
func (t *Table) Lookup() uint64 {
	return t.config.LookupLatency
}

// Walk returns the latency of a page-table walk touching the given number
// of levels.
func (t *Table) Walk(levels int) uint64 {
	return t.config.WalkOverhead + uint64(levels)*t.config.PTEAccessLatency
}

// SFence returns the latency of one invalidation request.
func (t *Table) SFence() uint64 {
	return t.config.SFenceLatency
}
