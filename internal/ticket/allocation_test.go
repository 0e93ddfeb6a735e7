package ticket

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Allocation", func() {
	Describe("Complete", func() {
		It("should be false when empty", func() {
			Expect(Allocation(nil).Complete()).To(BeFalse())
		})

		It("should accept a sum within the tolerance of 100", func() {
			a := Allocation{
				{CategoryID: "a", Percent: 33.33},
				{CategoryID: "b", Percent: 33.33},
				{CategoryID: "c", Percent: 33.34},
			}
			Expect(a.Complete()).To(BeTrue())
		})

		It("should reject a sum outside the tolerance", func() {
			a := Allocation{{CategoryID: "a", Percent: 99.5}}
			Expect(a.Complete()).To(BeFalse())
		})
	})

	Describe("Primary", func() {
		It("should return the largest share", func() {
			a := Allocation{
				{CategoryID: "a", Percent: 30},
				{CategoryID: "b", Percent: 70},
			}
			Expect(a.Primary().CategoryID).To(Equal("b"))
		})

		It("should return a zero entry when empty", func() {
			Expect(Allocation(nil).Primary()).To(Equal(AllocationEntry{}))
		})
	})
})

var _ = Describe("normalizeAllocation", func() {
	categories := []*Category{
		{ID: "alberto"},
		{ID: "kike"},
		{ID: "comun"},
	}

	It("should drop unknown categories and non-positive shares", func() {
		out := normalizeAllocation([]AllocationEntry{
			{CategoryID: "alberto", Percent: 50},
			{CategoryID: "desconocida", Percent: 50},
			{CategoryID: "kike", Percent: 0},
			{CategoryID: "comun", Percent: -10},
		}, categories)
		Expect(out).To(Equal(Allocation{{CategoryID: "alberto", Percent: 50}}))
	})

	It("should clamp shares above 100", func() {
		out := normalizeAllocation([]AllocationEntry{
			{CategoryID: "alberto", Percent: 250},
		}, categories)
		Expect(out[0].Percent).To(Equal(100.0))
	})

	It("should sum duplicate categories", func() {
		out := normalizeAllocation([]AllocationEntry{
			{CategoryID: "kike", Percent: 30},
			{CategoryID: "kike", Percent: 20},
		}, categories)
		Expect(out).To(Equal(Allocation{{CategoryID: "kike", Percent: 50}}))
	})

	It("should order entries by category-list position", func() {
		out := normalizeAllocation([]AllocationEntry{
			{CategoryID: "comun", Percent: 40},
			{CategoryID: "alberto", Percent: 60},
		}, categories)
		Expect(out[0].CategoryID).To(Equal("alberto"))
		Expect(out[1].CategoryID).To(Equal("comun"))
	})

	It("should return nil when nothing survives", func() {
		out := normalizeAllocation([]AllocationEntry{
			{CategoryID: "desconocida", Percent: 100},
		}, categories)
		Expect(out).To(BeNil())
	})
})

var _ = Describe("rescaleAllocation", func() {
	It("should scale a partial split back to 100 proportionally", func() {
		out := rescaleAllocation(Allocation{
			{CategoryID: "a", Percent: 30},
			{CategoryID: "b", Percent: 20},
		})
		Expect(out).To(HaveLen(2))
		Expect(out[0].Percent).To(BeNumerically("~", 60, 0.001))
		Expect(out[1].Percent).To(BeNumerically("~", 40, 0.001))
	})

	It("should return nil for an empty or zero allocation", func() {
		Expect(rescaleAllocation(nil)).To(BeNil())
	})
})
