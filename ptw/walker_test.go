package ptw_test

import (
	"encoding/binary"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/akita/v4/mem/mem"

	"github.com/sarchlab/rvmmu/platform"
	"github.com/sarchlab/rvmmu/ptw"
	"github.com/sarchlab/rvmmu/tlb"
)

const (
	dramSize = uint64(1)<<32 - 1<<20
	mmioBase = dramSize
	mmioSize = uint64(1) << 20

	rootPPN = uint64(0x1000)
)

// Raw PTE encoding, for crafting entries the builder refuses to write.
const (
	pteV uint64 = 1 << 0
	pteR uint64 = 1 << 1
	pteW uint64 = 1 << 2
	pteX uint64 = 1 << 3
	pteA uint64 = 1 << 6
	pteD uint64 = 1 << 7
)

func writeRawPTE(storage *mem.Storage, table, idx, ppn, flags uint64) {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, ppn<<10|flags)
	err := storage.Write(table<<12+idx*8, buf)
	Expect(err).ToNot(HaveOccurred())
}

var _ = Describe("Walker", func() {
	var (
		cfg     tlb.Config
		storage *mem.Storage
		amap    *platform.AddressMap
		pmp     *platform.PMP
		builder *ptw.TableBuilder
		walker  *ptw.Walker
	)

	walk := func(vaddr uint64) tlb.WalkResponse {
		return walker.Walk(tlb.WalkRequest{VPN: vaddr >> 12})
	}

	BeforeEach(func() {
		cfg = tlb.DefaultConfig()
		storage = mem.NewStorage(uint64(1) << 32)

		var err error
		amap, err = platform.NewAddressMap(
			platform.Region{Name: "dram", Base: 0, Size: dramSize,
				Props: platform.MainMemoryProps()},
			platform.Region{Name: "mmio", Base: mmioBase, Size: mmioSize,
				Props: platform.MMIOProps()},
		)
		Expect(err).ToNot(HaveOccurred())
		pmp, err = platform.NewPMP()
		Expect(err).ToNot(HaveOccurred())

		builder = ptw.NewTableBuilder(storage, cfg, rootPPN)
		walker = ptw.NewWalker(cfg, storage, amap, pmp)
		walker.SetRoot(builder.Root())
	})

	It("should resolve a base-page mapping", func() {
		err := builder.Map(0x4000_0000, 0x2000_0000,
			ptw.PagePerms{R: true, W: true, U: true, G: true})
		Expect(err).ToNot(HaveOccurred())

		rsp := walk(0x4000_0000)
		Expect(rsp.PTE.Valid).To(BeTrue())
		Expect(rsp.PTE.PPN).To(Equal(uint64(0x2000_0000 >> 12)))
		Expect(rsp.PTE.R).To(BeTrue())
		Expect(rsp.PTE.W).To(BeTrue())
		Expect(rsp.PTE.X).To(BeFalse())
		Expect(rsp.PTE.U).To(BeTrue())
		Expect(rsp.PTE.G).To(BeTrue())
		Expect(rsp.Level).To(Equal(2))
		Expect(rsp.Homogeneous).To(BeTrue())
		Expect(rsp.AccessError).To(BeFalse())
	})

	It("should report unmapped addresses as permissionless", func() {
		rsp := walk(0x4000_0000)
		Expect(rsp.PTE.Valid).To(BeFalse())
		Expect(rsp.AccessError).To(BeFalse())
	})

	It("should resolve a superpage at its own level", func() {
		err := builder.MapSuperpage(1, 0x4000_0000, 0x2000_0000,
			ptw.PagePerms{R: true, X: true})
		Expect(err).ToNot(HaveOccurred())

		rsp := walk(0x4000_0000 + 17*tlb.PageBytes)
		Expect(rsp.PTE.Valid).To(BeTrue())
		Expect(rsp.Level).To(Equal(1))
		Expect(rsp.PTE.PPN).To(Equal(uint64(0x2000_0000 >> 12)))
		Expect(rsp.FragmentedSuperpage).To(BeFalse())
	})

	It("should reject misaligned superpage mappings in the builder", func() {
		err := builder.MapSuperpage(1, 0x4000_0000, 0x2000_1000,
			ptw.PagePerms{R: true})
		Expect(err).To(HaveOccurred())
	})

	It("should split superpages when configured to", func() {
		walker = ptw.NewWalker(cfg, storage, amap, pmp, ptw.WithSplitSuperpages())
		walker.SetRoot(builder.Root())

		err := builder.MapSuperpage(1, 0x4000_0000, 0x2000_0000,
			ptw.PagePerms{R: true, W: true})
		Expect(err).ToNot(HaveOccurred())

		rsp := walk(0x4000_0000 + 17*tlb.PageBytes)
		Expect(rsp.Level).To(Equal(cfg.PgLevels - 1))
		Expect(rsp.FragmentedSuperpage).To(BeTrue())
		Expect(rsp.PTE.PPN).To(Equal(uint64(0x2000_0000>>12 | 17)))
	})

	It("should page-fault a misaligned superpage leaf", func() {
		// Level-0 leaf whose PPN is not 1 GiB aligned.
		writeRawPTE(storage, rootPPN, 1, 0x10001, pteV|pteR|pteW|pteA|pteD)

		rsp := walk(uint64(1) << 30)
		Expect(rsp.PTE.Valid).To(BeFalse())
		Expect(rsp.AccessError).To(BeFalse())
	})

	It("should page-fault the reserved write-without-read encoding", func() {
		writeRawPTE(storage, rootPPN, 2, 0x40000, pteV|pteW|pteA|pteD)

		rsp := walk(uint64(2) << 30)
		Expect(rsp.PTE.Valid).To(BeFalse())
	})

	It("should strip permissions from unaccessed and clean pages", func() {
		// No A bit: completely permissionless.
		writeRawPTE(storage, rootPPN, 2, 0x40000, pteV|pteR|pteX)
		rsp := walk(uint64(2) << 30)
		Expect(rsp.PTE.Valid).To(BeTrue())
		Expect(rsp.PTE.R).To(BeFalse())
		Expect(rsp.PTE.X).To(BeFalse())

		// A but no D: writable page reads as read-only.
		writeRawPTE(storage, rootPPN, 3, 0x80000, pteV|pteR|pteW|pteA)
		rsp = walk(uint64(3) << 30)
		Expect(rsp.PTE.R).To(BeTrue())
		Expect(rsp.PTE.W).To(BeFalse())
	})

	It("should raise an access error when a PTE fetch is denied", func() {
		err := builder.Map(0x4000_0000, 0x2000_0000, ptw.PagePerms{R: true})
		Expect(err).ToNot(HaveOccurred())

		denyRoot, err := platform.NewPMP(platform.PMPEntry{
			Base: rootPPN << 12, Size: tlb.PageBytes})
		Expect(err).ToNot(HaveOccurred())

		walker = ptw.NewWalker(cfg, storage, amap, denyRoot)
		walker.SetRoot(builder.Root())

		rsp := walk(0x4000_0000)
		Expect(rsp.AccessError).To(BeTrue())
		Expect(rsp.Level).To(Equal(0))
	})

	It("should report non-homogeneous superpage spans", func() {
		// A 2 MiB superpage whose physical span straddles the
		// dram/mmio boundary.
		paddr := mmioBase - 1<<20
		err := builder.MapSuperpage(1, 0x4000_0000, paddr, ptw.PagePerms{R: true})
		Expect(err).ToNot(HaveOccurred())

		rsp := walk(0x4000_0000)
		Expect(rsp.PTE.Valid).To(BeTrue())
		Expect(rsp.Homogeneous).To(BeFalse())
	})

	It("should page-fault when every level is a pointer", func() {
		writeRawPTE(storage, rootPPN, 4, 0x3000, pteV)
		writeRawPTE(storage, 0x3000, 0, 0x3001, pteV)
		writeRawPTE(storage, 0x3001, 0, 0x3002, pteV)

		rsp := walk(uint64(4) << 30)
		Expect(rsp.PTE.Valid).To(BeFalse())
		Expect(rsp.Level).To(Equal(cfg.PgLevels - 1))
	})
})
