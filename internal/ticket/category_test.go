package ticket

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Slugify", func() {
	It("should lowercase, strip accents and hyphenate", func() {
		Expect(Slugify("Común")).To(Equal("comun"))
		Expect(Slugify("Cosas de Casa")).To(Equal("cosas-de-casa"))
	})

	It("should drop characters outside the slug alphabet", func() {
		Expect(Slugify("Niños & Cía.")).To(Equal("ninos--cia"))
	})

	It("should cap the length", func() {
		long := Slugify("una categoria con un nombre verdaderamente interminable")
		Expect(len(long)).To(BeNumerically("<=", 40))
	})

	It("should return empty for symbol-only names", func() {
		Expect(Slugify("!!!")).To(Equal(""))
	})
})

var _ = Describe("uniqueID", func() {
	It("should keep a free id", func() {
		Expect(uniqueID("casa", []*Category{{ID: "otro"}}, nil)).To(Equal("casa"))
	})

	It("should suffix a taken id", func() {
		cats := []*Category{{ID: "casa"}, {ID: "casa-2"}}
		Expect(uniqueID("casa", cats, nil)).To(Equal("casa-3"))
	})

	It("should ignore the category being renamed", func() {
		self := &Category{ID: "casa"}
		Expect(uniqueID("casa", []*Category{self}, self)).To(Equal("casa"))
	})
})

var _ = Describe("validateCategory", func() {
	It("should accept a name with a hex color", func() {
		Expect(validateCategory("Casa", "#aabb00")).To(Succeed())
	})

	It("should reject a blank name", func() {
		Expect(validateCategory("  ", "#aabb00")).To(HaveOccurred())
	})

	It("should reject non-hex colors", func() {
		Expect(validateCategory("Casa", "red")).To(HaveOccurred())
		Expect(validateCategory("Casa", "#abc")).To(HaveOccurred())
	})
})

var _ = Describe("DefaultCategories", func() {
	It("should seed three locked categories with one no-split bucket", func() {
		cats := DefaultCategories()
		Expect(cats).To(HaveLen(3))
		for _, c := range cats {
			Expect(c.Locked).To(BeTrue())
		}
		Expect(cats[2].NoSplit).To(BeTrue())
	})
})
