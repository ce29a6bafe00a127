package tlb

// EntryData is the permission/attribute payload of one cached mapping.
// SR/SW/SX come from the page-table walk (software permissions); PR/PW/PX
// and the capability flags come from the platform (address map + protection
// checker). Both are consulted at fault-decision time.
type EntryData struct {
	// PPN is the physical page number fragment. For superpage entries the
	// chunks below the entry's level are substituted from the requested
	// virtual address at resolution time.
	PPN uint64

	// U marks a user-accessible page, G a global (ASID-independent) one.
	U bool
	G bool

	// AE caches a walker access error so repeated faulting accesses do
	// not walk again.
	AE bool

	// Software (page-table) permissions.
	SR bool
	SW bool
	SX bool

	// Platform permissions (address map AND protection checker).
	PR bool
	PW bool
	PX bool

	// Capability flags of the backing region.
	PPP bool // supports partial writes
	PAL bool // supports logical AMOs
	PAA bool // supports arithmetic AMOs
	Eff bool // has side effects (misalignment tolerated, never split)
	C   bool // cacheable

	// FragmentedSuperpage marks a superpage mapping cached at base-page
	// granularity; line flushes must treat it conservatively.
	FragmentedSuperpage bool
}

// Entry is one tagged slot of the entry store. Sectored entries hold
// NSectors base-page mappings sharing the tag's upper bits; superpage and
// special entries hold exactly one sector.
type Entry struct {
	tag   uint64
	level int
	valid []bool
	data  []EntryData

	// superpage entries compare tags level by level; superpageOnly
	// entries additionally never hold base-page mappings, so the deepest
	// level is ignored outright.
	superpage     bool
	superpageOnly bool
}

func newEntry(nSectors int, superpage, superpageOnly bool) Entry {
	if superpage {
		nSectors = 1
	}
	return Entry{
		valid:         make([]bool, nSectors),
		data:          make([]EntryData, nSectors),
		superpage:     superpage,
		superpageOnly: superpageOnly,
	}
}

// sectorIdx selects the sector addressed by a VPN within this entry.
func (e *Entry) sectorIdx(vpn uint64) int {
	return int(vpn) & (len(e.valid) - 1)
}

func (e *Entry) anyValid() bool {
	for _, v := range e.valid {
		if v {
			return true
		}
	}
	return false
}

// sectorTagMatch compares the tag against a VPN above the sector-index bits.
func (e *Entry) sectorTagMatch(cfg *Config, vpn uint64) bool {
	sb := cfg.sectorBits()
	return e.tag>>uint(sb) == vpn>>uint(sb)
}

// sectorHit is true iff any sector is valid and the tag matches above the
// sector-index bits.
func (e *Entry) sectorHit(cfg *Config, vpn uint64) bool {
	return e.anyValid() && e.sectorTagMatch(cfg, vpn)
}

// hit reports whether this entry translates the given VPN. Superpage-capable
// entries compare level by level, ignoring levels below the entry's own and,
// for superpage-only entries, the deepest level as well.
func (e *Entry) hit(cfg *Config, vpn uint64) bool {
	if !e.superpage {
		return e.valid[e.sectorIdx(vpn)] && e.sectorTagMatch(cfg, vpn)
	}
	if !e.valid[0] {
		return false
	}
	for j := 0; j < cfg.PgLevels; j++ {
		if e.level < j || (e.superpageOnly && j == cfg.PgLevels-1) {
			continue
		}
		base := uint((cfg.PgLevels - 1 - j) * PageLevelBits)
		if (e.tag>>base)&mask(PageLevelBits) != (vpn>>base)&mask(PageLevelBits) {
			return false
		}
	}
	return true
}

// ppn resolves the output physical page number for a hit. Superpage entries
// take stored chunks down to their level and substitute the requested VPN's
// chunks below it: within a superpage, low PPN bits equal low VPN bits.
func (e *Entry) ppn(cfg *Config, vpn uint64, d EntryData) uint64 {
	if !e.superpage {
		return d.PPN
	}
	res := d.PPN >> uint((cfg.PgLevels-1)*PageLevelBits)
	for j := 1; j < cfg.PgLevels; j++ {
		base := uint((cfg.PgLevels - 1 - j) * PageLevelBits)
		chunk := (d.PPN >> base) & mask(PageLevelBits)
		if e.level < j || (e.superpageOnly && j == cfg.PgLevels-1) {
			chunk = (vpn >> base) & mask(PageLevelBits)
		}
		res = res<<PageLevelBits | chunk
	}
	return res
}

// sectorData returns the payload of the sector addressed by vpn.
func (e *Entry) sectorData(vpn uint64) EntryData {
	return e.data[e.sectorIdx(vpn)]
}

// insert stores a mapping into the sector addressed by tag. Sibling sectors
// are left untouched.
func (e *Entry) insert(tag uint64, level int, d EntryData) {
	e.tag = tag
	e.level = level
	idx := e.sectorIdx(tag)
	e.valid[idx] = true
	e.data[idx] = d
}

// invalidate clears every sector.
func (e *Entry) invalidate() {
	for i := range e.valid {
		e.valid[i] = false
	}
}

// invalidateVPN clears whatever this entry caches for vpn. A superpage entry
// is cleared wholesale if it hits; a sectored entry loses the matching
// sector, plus any fragmented-superpage sector whose top-level tag chunk
// matches vpn's, because the true extent of a fragmented superpage is
// unknown. With nonGlobalOnly set, sectors with the G bit are spared.
func (e *Entry) invalidateVPN(cfg *Config, vpn uint64, nonGlobalOnly bool) {
	if e.superpage {
		if e.hit(cfg, vpn) && !(nonGlobalOnly && e.data[0].G) {
			e.invalidate()
		}
		return
	}
	if e.sectorTagMatch(cfg, vpn) {
		idx := e.sectorIdx(vpn)
		if !(nonGlobalOnly && e.data[idx].G) {
			e.valid[idx] = false
		}
	}
	topShift := uint((cfg.PgLevels - 1) * PageLevelBits)
	if e.tag>>topShift != vpn>>topShift {
		return
	}
	for i := range e.valid {
		if e.valid[i] && e.data[i].FragmentedSuperpage &&
			!(nonGlobalOnly && e.data[i].G) {
			e.valid[i] = false
		}
	}
}

// invalidateNonGlobal clears every sector whose G bit is false.
func (e *Entry) invalidateNonGlobal() {
	for i := range e.valid {
		if !e.data[i].G {
			e.valid[i] = false
		}
	}
}
