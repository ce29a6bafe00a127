package tlb

import "fmt"

// Request is one translation lookup.
type Request struct {
	// VAddr is the virtual address to translate.
	VAddr uint64

	// Size is the access size in bytes; a power of two no larger than the
	// configured maximum.
	Size uint64

	// Cmd is the access kind.
	Cmd Cmd

	// Passthrough bypasses translation; the page-table walker uses it for
	// its own accesses. Passthrough accesses are checked against the
	// platform at supervisor privilege.
	Passthrough bool
}

// AccessFaults carries one fault bit per access class.
type AccessFaults struct {
	Ld   bool
	St   bool
	Inst bool
}

// Response is the result of one lookup. The three fault classes are
// orthogonal and may combine. When Miss is set the caller must resolve the
// refill through PendingWalk/WalkAccepted/CompleteWalk and retry.
type Response struct {
	Miss  bool
	PAddr uint64

	// PF are page faults, AE access errors, MA misaligned-address faults.
	PF AccessFaults
	AE AccessFaults
	MA AccessFaults

	// Cacheable marks the matched region as cacheable, Prefetchable as
	// safe to prefetch from. MustAlloc marks a write-class access that
	// needs a full line fetch to complete.
	Cacheable    bool
	MustAlloc    bool
	Prefetchable bool
}

// SFenceRequest selects an invalidation scope: neither selector set flushes
// everything, RS1 restricts to the line containing VAddr, RS2 restricts to
// non-global entries, both combine the restrictions.
type SFenceRequest struct {
	RS1   bool
	RS2   bool
	VAddr uint64
	ASID  uint64
}

type refillState int

const (
	stateReady refillState = iota
	stateRequesting
	stateWaiting
	stateWaitingInvalidate
)

// refillInfo is the data captured when a miss is detected: the faulting VPN
// and the victims chosen at that moment. It is meaningful only outside
// stateReady.
type refillInfo struct {
	tag           uint64
	set           int
	sectoredWay   int
	sectoredHit   bool
	superpageSlot int
}

// TLB is the translation cache. One Lookup call models one cycle's
// combinational evaluation over a snapshot of the entry store; installs and
// invalidations are visible from the next call on.
type TLB struct {
	cfg  Config
	amap AddressMap
	prot ProtectionChecker

	sectored  [][]Entry
	superpage []Entry
	special   *Entry

	sectoredLRU  []plru
	superpageLRU plru

	priv Priv
	vmOn bool
	sum  bool

	state  refillState
	refill refillInfo
}

// New builds a TLB against the given address map and protection checker.
func New(cfg Config, amap AddressMap, prot ProtectionChecker) (*TLB, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid TLB config: %w", err)
	}

	t := &TLB{
		cfg:          cfg,
		amap:         amap,
		prot:         prot,
		sectored:     make([][]Entry, cfg.NSets),
		superpage:    make([]Entry, cfg.NSuperpageEntries),
		sectoredLRU:  make([]plru, cfg.NSets),
		superpageLRU: newPLRU(cfg.NSuperpageEntries),
		priv:         PrivSupervisor,
		vmOn:         cfg.UsingVM,
	}
	for s := range t.sectored {
		t.sectored[s] = make([]Entry, cfg.entriesPerSet())
		for w := range t.sectored[s] {
			t.sectored[s][w] = newEntry(cfg.NSectors, false, false)
		}
		t.sectoredLRU[s] = newPLRU(cfg.entriesPerSet())
	}
	for i := range t.superpage {
		t.superpage[i] = newEntry(1, true, true)
	}
	if cfg.FineGrainedProtection {
		e := newEntry(1, true, false)
		t.special = &e
	}
	return t, nil
}

// SetMode updates the privilege context used by subsequent lookups.
func (t *TLB) SetMode(priv Priv, vmEnabled, sum bool) {
	t.priv = priv
	t.vmOn = vmEnabled
	t.sum = sum
}

// Ready reports whether a new translation request can be accepted.
func (t *TLB) Ready() bool { return t.state == stateReady }

// attrRow is the per-candidate attribute table the permission engine folds.
type attrRow struct {
	ptwAE         bool
	r, w, x       bool
	pr, pw, px    bool
	eff, c        bool
	ppp, pal, paa bool
	pref          bool
}

func (a *attrRow) or(b attrRow) {
	a.ptwAE = a.ptwAE || b.ptwAE
	a.r = a.r || b.r
	a.w = a.w || b.w
	a.x = a.x || b.x
	a.pr = a.pr || b.pr
	a.pw = a.pw || b.pw
	a.px = a.px || b.px
	a.eff = a.eff || b.eff
	a.c = a.c || b.c
	a.ppp = a.ppp || b.ppp
	a.pal = a.pal || b.pal
	a.paa = a.paa || b.paa
	a.pref = a.pref || b.pref
}

// entryRow derives a candidate's attribute row from its cached payload. In
// supervisor mode a user page is readable/writable only under the SUM
// override; execute permission is inverted: supervisor executes only
// non-user pages, user only user pages.
func (t *TLB) entryRow(d EntryData, priv Priv) attrRow {
	rwOK := d.U
	xOK := d.U
	if priv == PrivSupervisor {
		rwOK = t.sum || !d.U
		xOK = !d.U
	}
	return attrRow{
		ptwAE: d.AE,
		r:     rwOK && d.SR,
		w:     rwOK && d.SW,
		x:     xOK && d.SX,
		pr:    d.PR && !d.AE,
		pw:    d.PW && !d.AE,
		px:    d.PX && !d.AE,
		eff:   d.Eff,
		c:     d.C,
		ppp:   d.PPP,
		pal:   d.PAL,
		paa:   d.PAA,
		pref:  d.C,
	}
}

// platformRow queries the address map and protection checker live for a
// physical address. Used for the special entry and the passthrough
// candidate, whose platform attributes cannot be cached.
func (t *TLB) platformRow(paddr, size uint64, priv Priv) attrRow {
	props, legal := t.amap.Lookup(paddr)
	perms := t.prot.Permits(paddr, size, priv)
	return attrRow{
		pr:  legal && props.SupportsRead && perms.R,
		pw:  legal && props.SupportsWrite && perms.W,
		px:  legal && props.Executable && perms.X,
		eff: legal && props.HasSideEffects,
		c:   legal && props.Cacheable,
		ppp: legal && props.SupportsPartialWrite,
		pal: legal && props.SupportsLogicalAMO,
		paa: legal && props.SupportsArithmeticAMO,
	}
}

// Lookup translates one request. It is rejected (Miss=true, no side effects)
// while a refill is outstanding. A genuine miss arms the refill state
// machine; the caller drives it through PendingWalk/WalkAccepted/
// CompleteWalk, or aborts with Kill or an SFence.
func (t *TLB) Lookup(req Request) Response {
	t.checkRequest(req)
	if t.state != stateReady {
		return Response{Miss: true}
	}

	cfg := &t.cfg
	off := req.VAddr & (PageBytes - 1)
	vpn := cfg.vpn(req.VAddr)
	vmEnabled := cfg.UsingVM && t.vmOn && !req.Passthrough
	priv := t.priv
	if req.Passthrough {
		priv = PrivSupervisor
	}
	badVA := vmEnabled && !cfg.canonical(req.VAddr)
	set := int((vpn >> uint(cfg.sectorBits())) & uint64(cfg.NSets-1))

	// Probe every entry and fold the attribute rows of the ones that hit.
	var sel attrRow
	realHits := 0
	var hitPPN uint64

	consider := func(e *Entry, row attrRow) {
		if !vmEnabled || !e.hit(cfg, vpn) {
			return
		}
		realHits++
		hitPPN = e.ppn(cfg, vpn, e.sectorData(vpn))
		sel.or(row)
	}

	for w := range t.sectored[set] {
		e := &t.sectored[set][w]
		consider(e, t.entryRow(e.sectorData(vpn), priv))
	}
	for i := range t.superpage {
		e := &t.superpage[i]
		consider(e, t.entryRow(e.data[0], priv))
	}
	if t.special != nil {
		e := t.special
		d := e.data[0]
		specialPaddr := e.ppn(cfg, vpn, d)<<PgIdxBits | off
		row := t.platformRow(specialPaddr, req.Size, priv)
		// Software permissions and the cached walker fault still come
		// from the stored payload.
		sw := t.entryRow(d, priv)
		row.ptwAE = sw.ptwAE
		row.r = sw.r
		row.w = sw.w
		row.x = sw.x
		row.pr = row.pr && !d.AE
		row.pw = row.pw && !d.AE
		row.px = row.px && !d.AE
		consider(e, row)
	}

	passHit := !vmEnabled
	if passHit {
		paddr := req.VAddr & mask(cfg.PAddrBits)
		row := t.platformRow(paddr, req.Size, priv)
		row.r = true
		row.w = true
		row.x = true
		sel.or(row)
		hitPPN = paddr >> PgIdxBits
	}

	anyHit := passHit || realHits > 0
	multipleHits := realHits > 1

	// Replacement state learns from every hit, refill or not.
	if vmEnabled {
		for w := range t.sectored[set] {
			if t.sectored[set][w].sectorHit(cfg, vpn) {
				t.sectoredLRU[set].Touch(w)
			}
		}
		for i := range t.superpage {
			if t.superpage[i].hit(cfg, vpn) {
				t.superpageLRU.Touch(i)
			}
		}
	}

	resp := t.deriveFaults(req, sel, anyHit, badVA)
	if anyHit {
		resp.PAddr = hitPPN<<PgIdxBits | off
	}

	tlbMiss := vmEnabled && !badVA && realHits == 0
	resp.Miss = tlbMiss || multipleHits

	if multipleHits {
		// Two structurally distinct entries agreed to translate the
		// same address: never choose between them. Report a miss and
		// flush so the next lookup is unambiguous.
		t.flushAll()
		return resp
	}

	if tlbMiss {
		t.refill = refillInfo{
			tag:           vpn,
			set:           set,
			sectoredWay:   t.sectoredVictim(set),
			superpageSlot: t.superpageVictim(),
		}
		for w := range t.sectored[set] {
			if t.sectored[set][w].sectorHit(cfg, vpn) {
				t.refill.sectoredHit = true
				t.refill.sectoredWay = w
			}
		}
		t.state = stateRequesting
	}
	return resp
}

// deriveFaults turns the folded attribute row into the response fault bits.
func (t *TLB) deriveFaults(req Request, a attrRow, anyHit, badVA bool) Response {
	cmd := req.Cmd
	misaligned := req.VAddr&(req.Size-1) != 0

	var resp Response
	resp.PF.Ld = badVA && cmd.IsRead()
	resp.PF.St = badVA && cmd.IsWrite()
	resp.PF.Inst = badVA
	if !anyHit {
		return resp
	}

	pppIfCached := a.ppp || a.c
	palIfCached := a.pal || a.c
	paaIfCached := a.paa || a.c
	lrscAllowed := a.c || t.cfg.UncachedLRSC

	// Misaligned accesses to effectful regions are access errors, not
	// misaligned faults: such accesses are never split.
	aeBase := (misaligned && a.eff) || (cmd.IsLRSC() && !lrscAllowed)

	resp.AE.Ld = cmd.IsRead() && (aeBase || !a.pr)
	resp.AE.St = (cmd.IsWrite() && (aeBase || !a.pw)) ||
		(cmd.IsPartialWrite() && !pppIfCached) ||
		(cmd.IsAMOLogical() && !palIfCached) ||
		(cmd.IsAMOArithmetic() && !paaIfCached)
	resp.AE.Inst = !a.px

	resp.PF.Ld = resp.PF.Ld || (cmd.IsRead() && !(a.r || a.ptwAE))
	resp.PF.St = resp.PF.St || (cmd.IsWrite() && !(a.w || a.ptwAE))
	resp.PF.Inst = resp.PF.Inst || !(a.x || a.ptwAE)

	resp.MA.Ld = misaligned && cmd.IsRead() && !a.eff
	resp.MA.St = misaligned && cmd.IsWrite() && !a.eff

	resp.MustAlloc = (cmd.IsPartialWrite() && !a.ppp) ||
		(cmd.IsAMOLogical() && !a.pal) ||
		(cmd.IsAMOArithmetic() && !a.paa) ||
		cmd.IsLRSC()

	resp.Cacheable = a.c
	resp.Prefetchable = a.pref
	return resp
}

// sectoredVictim picks the refill way in a set: any invalid entry first,
// else the pseudo-LRU choice.
func (t *TLB) sectoredVictim(set int) int {
	for w := range t.sectored[set] {
		if !t.sectored[set][w].anyValid() {
			return w
		}
	}
	return t.sectoredLRU[set].Victim()
}

func (t *TLB) superpageVictim() int {
	for i := range t.superpage {
		if !t.superpage[i].anyValid() {
			return i
		}
	}
	return t.superpageLRU.Victim()
}

// PendingWalk returns the walker request for the current refill, if the
// state machine is in the requesting phase.
func (t *TLB) PendingWalk() (WalkRequest, bool) {
	if t.state != stateRequesting {
		return WalkRequest{}, false
	}
	return WalkRequest{VPN: t.refill.tag}, true
}

// Kill aborts a refill whose walker request has not been accepted yet. It
// has no effect in any other phase: a request already accepted by the walker
// cannot be aborted.
func (t *TLB) Kill() {
	if t.state == stateRequesting {
		t.state = stateReady
	}
}

// WalkAccepted moves the refill into the waiting phase once the walker has
// accepted the request.
func (t *TLB) WalkAccepted() {
	if t.state != stateRequesting {
		panic(fmt.Sprintf("tlb: WalkAccepted in state %d", t.state))
	}
	t.state = stateWaiting
}

// CompleteWalk installs the walker's response and returns the state machine
// to ready. Failed walks are installed too, caching the fault so repeated
// identical accesses do not walk again. If an invalidation arrived during
// the wait, the freshly installed entry is invalidated in the same step.
func (t *TLB) CompleteWalk(rsp WalkResponse) {
	if t.state != stateWaiting && t.state != stateWaitingInvalidate {
		panic(fmt.Sprintf("tlb: CompleteWalk in state %d", t.state))
	}
	needInvalidate := t.state == stateWaitingInvalidate
	t.state = stateReady

	cfg := &t.cfg
	vpn := t.refill.tag
	level := rsp.Level
	if level >= cfg.PgLevels {
		level = cfg.PgLevels - 1
	}

	// Resolve the full physical page for this VPN so the platform is
	// queried post-translation, then AND walker (software) permissions
	// with locally computed platform permissions.
	probe := newEntry(1, true, false)
	probe.level = level
	resolvedPPN := probe.ppn(cfg, vpn, EntryData{PPN: rsp.PTE.PPN}) & mask(cfg.ppnBits())
	paddr := resolvedPPN << PgIdxBits

	props, legal := t.amap.Lookup(paddr)
	perms := t.prot.Permits(paddr, PageBytes, PrivSupervisor)
	homogeneous := rsp.Homogeneous && t.prot.Homogeneous(paddr, PageBytes)

	d := EntryData{
		PPN: rsp.PTE.PPN,
		U:   rsp.PTE.U,
		G:   rsp.PTE.G,
		AE:  rsp.AccessError,
		SR:  rsp.PTE.Valid && rsp.PTE.R,
		SW:  rsp.PTE.Valid && rsp.PTE.W,
		SX:  rsp.PTE.Valid && rsp.PTE.X,
		PR:  legal && props.SupportsRead && perms.R,
		PW:  legal && props.SupportsWrite && perms.W,
		PX:  legal && props.Executable && perms.X,
		PPP: legal && props.SupportsPartialWrite,
		PAL: legal && props.SupportsLogicalAMO,
		PAA: legal && props.SupportsArithmeticAMO,
		Eff: legal && props.HasSideEffects,
		C:   legal && props.Cacheable && homogeneous,

		FragmentedSuperpage: rsp.FragmentedSuperpage,
	}

	install := func(e *Entry) {
		e.insert(vpn, level, d)
		if needInvalidate {
			e.invalidate()
		}
	}

	switch {
	case t.special != nil && !homogeneous:
		install(t.special)
	case level < cfg.PgLevels-1:
		install(&t.superpage[t.refill.superpageSlot])
	default:
		e := &t.sectored[t.refill.set][t.refill.sectoredWay]
		if !t.refill.sectoredHit {
			// New tag for this slot: the siblings belonged to the
			// old tag and must go.
			e.invalidate()
		}
		install(e)
	}
}

// SFence applies an invalidation request. It is legal in every refill phase:
// an unissued walker request is abandoned, an in-flight one is marked so its
// eventual installation is immediately invalidated.
func (t *TLB) SFence(req SFenceRequest) {
	cfg := &t.cfg
	vpn := cfg.vpn(req.VAddr)

	apply := func(e *Entry) {
		switch {
		case !req.RS1 && !req.RS2:
			e.invalidate()
		case req.RS1 && !req.RS2:
			e.invalidateVPN(cfg, vpn, false)
		case !req.RS1 && req.RS2:
			e.invalidateNonGlobal()
		default:
			e.invalidateVPN(cfg, vpn, true)
		}
	}
	t.forEachEntry(apply)

	switch t.state {
	case stateRequesting:
		t.state = stateReady
	case stateWaiting:
		t.state = stateWaitingInvalidate
	}
}

// Reset models a global reset: a full flush with the state machine forced
// back to ready.
func (t *TLB) Reset() {
	t.flushAll()
	t.state = stateReady
}

func (t *TLB) flushAll() {
	t.forEachEntry(func(e *Entry) { e.invalidate() })
}

func (t *TLB) forEachEntry(f func(e *Entry)) {
	for s := range t.sectored {
		for w := range t.sectored[s] {
			f(&t.sectored[s][w])
		}
	}
	for i := range t.superpage {
		f(&t.superpage[i])
	}
	if t.special != nil {
		f(t.special)
	}
}

// ValidCount returns the number of valid cached mappings across all entry
// groups. Useful for diagnostics and tests.
func (t *TLB) ValidCount() int {
	n := 0
	t.forEachEntry(func(e *Entry) {
		for _, v := range e.valid {
			if v {
				n++
			}
		}
	})
	return n
}

func (t *TLB) checkRequest(req Request) {
	if req.Size == 0 || req.Size&(req.Size-1) != 0 ||
		req.Size > uint64(t.cfg.MaxAccessBytes) {
		panic(fmt.Sprintf("tlb: bad access size %d", req.Size))
	}
}
