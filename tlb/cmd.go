package tlb

// Cmd identifies the kind of memory access being translated.
type Cmd int

const (
	// CmdLoad is an ordinary load.
	CmdLoad Cmd = iota
	// CmdStore is an ordinary full-width store.
	CmdStore
	// CmdFetch is an instruction fetch.
	CmdFetch
	// CmdStorePartial is a sub-block store (partial write).
	CmdStorePartial
	// CmdLoadReserve and CmdStoreConditional form an LR/SC pair.
	CmdLoadReserve
	CmdStoreConditional
	// Atomic memory operations.
	CmdAMOSwap
	CmdAMOAdd
	CmdAMOAnd
	CmdAMOOr
	CmdAMOXor
	CmdAMOMin
	CmdAMOMax
	CmdAMOMinU
	CmdAMOMaxU
)

// IsRead reports whether the command reads memory. LR and SC both count as
// reads: SC must observe the reservation state of the line.
func (c Cmd) IsRead() bool {
	return c == CmdLoad || c == CmdLoadReserve || c == CmdStoreConditional || c.IsAMO()
}

// IsWrite reports whether the command carries write semantics.
func (c Cmd) IsWrite() bool {
	return c == CmdStore || c == CmdStorePartial || c == CmdStoreConditional || c.IsAMO()
}

// IsFetch reports whether the command is an instruction fetch.
func (c Cmd) IsFetch() bool { return c == CmdFetch }

// IsAMOLogical reports whether the command is a swap/logical atomic.
func (c Cmd) IsAMOLogical() bool {
	return c == CmdAMOSwap || c == CmdAMOAnd || c == CmdAMOOr || c == CmdAMOXor
}

// IsAMOArithmetic reports whether the command is an arithmetic atomic.
func (c Cmd) IsAMOArithmetic() bool {
	switch c {
	case CmdAMOAdd, CmdAMOMin, CmdAMOMax, CmdAMOMinU, CmdAMOMaxU:
		return true
	}
	return false
}

// IsAMO reports whether the command is any atomic memory operation.
func (c Cmd) IsAMO() bool { return c.IsAMOLogical() || c.IsAMOArithmetic() }

// IsLRSC reports whether the command is load-reserved or store-conditional.
func (c Cmd) IsLRSC() bool { return c == CmdLoadReserve || c == CmdStoreConditional }

// IsPartialWrite reports whether the command writes less than a full block.
func (c Cmd) IsPartialWrite() bool { return c == CmdStorePartial }

func (c Cmd) String() string {
	names := [...]string{
		"load", "store", "fetch", "store-partial", "lr", "sc",
		"amoswap", "amoadd", "amoand", "amoor", "amoxor",
		"amomin", "amomax", "amominu", "amomaxu",
	}
	if int(c) < len(names) {
		return names[c]
	}
	return "unknown"
}
