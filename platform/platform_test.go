package platform_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/rvmmu/platform"
	"github.com/sarchlab/rvmmu/tlb"
)

var _ = Describe("AddressMap", func() {
	var amap *platform.AddressMap

	BeforeEach(func() {
		var err error
		amap, err = platform.NewAddressMap(
			platform.Region{Name: "rom", Base: 0x1000, Size: 0xF000,
				Props: platform.ROMProps()},
			platform.Region{Name: "dram", Base: 0x8000_0000, Size: 1 << 30,
				Props: platform.MainMemoryProps()},
			platform.Region{Name: "uart", Base: 0x1001_0000, Size: 0x100,
				Props: platform.MMIOProps()},
		)
		Expect(err).ToNot(HaveOccurred())
	})

	It("should find the region claiming an address", func() {
		props, ok := amap.Lookup(0x8000_1234)
		Expect(ok).To(BeTrue())
		Expect(props.Cacheable).To(BeTrue())
		Expect(props.SupportsWrite).To(BeTrue())

		props, ok = amap.Lookup(0x1001_0042)
		Expect(ok).To(BeTrue())
		Expect(props.HasSideEffects).To(BeTrue())
		Expect(props.Cacheable).To(BeFalse())
	})

	It("should not claim gaps", func() {
		_, ok := amap.Lookup(0x0)
		Expect(ok).To(BeFalse())
		_, ok = amap.Lookup(0x2000_0000)
		Expect(ok).To(BeFalse())
	})

	It("should reject overlapping regions", func() {
		_, err := platform.NewAddressMap(
			platform.Region{Name: "a", Base: 0x1000, Size: 0x2000},
			platform.Region{Name: "b", Base: 0x2000, Size: 0x1000},
		)
		Expect(err).To(HaveOccurred())
	})

	It("should judge block homogeneity by region containment", func() {
		Expect(amap.Homogeneous(0x8000_1234, tlb.PageBytes)).To(BeTrue())

		// A 64KiB block rooted at zero has the rom starting inside it.
		Expect(amap.Homogeneous(0x1000, 1<<16)).To(BeFalse())

		// Unclaimed block with no region starting inside it.
		Expect(amap.Homogeneous(0x4000_0000, tlb.PageBytes)).To(BeTrue())

		// Unclaimed block with the uart starting inside it.
		Expect(amap.Homogeneous(0x1001_0000, 1<<20)).To(BeFalse())
	})
})

var _ = Describe("PMP", func() {
	It("should permit everything when empty", func() {
		pmp, err := platform.NewPMP()
		Expect(err).ToNot(HaveOccurred())
		perms := pmp.Permits(0x1234, 8, tlb.PrivUser)
		Expect(perms).To(Equal(tlb.Perms{R: true, W: true, X: true}))
		Expect(pmp.PageGranular()).To(BeTrue())
	})

	It("should let the first matching entry decide", func() {
		pmp, err := platform.NewPMP(
			platform.PMPEntry{Base: 0x1000, Size: 0x1000, R: true},
			platform.PMPEntry{Base: 0x0, Size: 0x10000, R: true, W: true, X: true},
		)
		Expect(err).ToNot(HaveOccurred())

		Expect(pmp.Permits(0x1800, 8, tlb.PrivSupervisor)).
			To(Equal(tlb.Perms{R: true}))
		Expect(pmp.Permits(0x3000, 8, tlb.PrivSupervisor)).
			To(Equal(tlb.Perms{R: true, W: true, X: true}))
	})

	It("should deny accesses straddling the deciding entry", func() {
		pmp, err := platform.NewPMP(
			platform.PMPEntry{Base: 0x1000, Size: 0x4, R: true})
		Expect(err).ToNot(HaveOccurred())

		Expect(pmp.Permits(0x1000, 8, tlb.PrivSupervisor)).To(Equal(tlb.Perms{}))
	})

	It("should reject zero-size entries", func() {
		_, err := platform.NewPMP(platform.PMPEntry{Base: 0x1000})
		Expect(err).To(HaveOccurred())
	})

	It("should detect sub-page granularity", func() {
		pagey, err := platform.NewPMP(
			platform.PMPEntry{Base: 0x1000, Size: 0x2000, R: true})
		Expect(err).ToNot(HaveOccurred())
		Expect(pagey.PageGranular()).To(BeTrue())

		finey, err := platform.NewPMP(
			platform.PMPEntry{Base: 0x1000, Size: 0x800, R: true})
		Expect(err).ToNot(HaveOccurred())
		Expect(finey.PageGranular()).To(BeFalse())
	})

	It("should judge homogeneity by entry boundaries", func() {
		pmp, err := platform.NewPMP(
			platform.PMPEntry{Base: 0x1800, Size: 0x400, R: true})
		Expect(err).ToNot(HaveOccurred())

		Expect(pmp.Homogeneous(0x1000, tlb.PageBytes)).To(BeFalse())
		Expect(pmp.Homogeneous(0x3000, tlb.PageBytes)).To(BeTrue())
	})
})
