package parsing

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("FilterSection", func() {
	When("the receipt has a header and a TOTAL footer", func() {
		It("should keep only the product region", func() {
			lines := []string{
				"LIDL SUPERMERCADOS SA",
				"CALLE MAYOR 12, MADRID",
				"",
				"1 LECHE ENTERA 1,15 1,15",
				"2 AGUA 0,60 1,20",
				"TOTAL 2,35",
				"TARJETA MASTERCARD 2,35",
			}
			Expect(FilterSection(lines)).To(Equal([]string{
				"1 LECHE ENTERA 1,15 1,15",
				"2 AGUA 0,60 1,20",
			}))
		})
	})

	When("the first product is a two-line weighted item", func() {
		It("should start the section at the description row", func() {
			lines := []string{
				"AVISO LEGAL",
				"PLATANO",
				"0,850 kg x 1,99 1,69",
				"TOTAL 1,69",
			}
			section := FilterSection(lines)
			Expect(section[0]).To(Equal("PLATANO"))
			Expect(section).To(HaveLen(2))
		})
	})

	When("no row looks like a product", func() {
		It("should return everything before the TOTAL marker", func() {
			lines := []string{
				"GRACIAS POR SU VISITA",
				"HORARIO 9-21",
				"TOTAL 0,00",
			}
			Expect(FilterSection(lines)).To(Equal([]string{
				"GRACIAS POR SU VISITA",
				"HORARIO 9-21",
			}))
		})
	})

	When("there is no TOTAL marker", func() {
		It("should run to the end of the input", func() {
			lines := []string{
				"1 PAN 0,85 0,85",
				"1 HUEVOS 2,10 2,10",
			}
			Expect(FilterSection(lines)).To(HaveLen(2))
		})
	})
})

var _ = Describe("isTotalLine", func() {
	It("should match TOTAL rows", func() {
		Expect(isTotalLine("TOTAL 12,34")).To(BeTrue())
		Expect(isTotalLine("total: 12,34")).To(BeTrue())
	})

	It("should not match rows merely containing the word", func() {
		Expect(isTotalLine("SUBTOTAL 12,34")).To(BeFalse())
		Expect(isTotalLine("1 TOTAL CLEAN 3,00")).To(BeFalse())
	})
})

var _ = Describe("DetectStore", func() {
	It("should detect the store from the text", func() {
		Expect(DetectStore([]string{"LIDL SUPERMERCADOS"}, "x.pdf")).To(Equal(StoreLidl))
		Expect(DetectStore([]string{"MERCADONA S.A."}, "x.pdf")).To(Equal(StoreMercadona))
	})

	It("should detect the store from the filename", func() {
		Expect(DetectStore(nil, "lidl 12,30.pdf")).To(Equal(StoreLidl))
	})

	It("should return empty for unknown stores", func() {
		Expect(DetectStore([]string{"ALIMENTACION PACO"}, "ticket.pdf")).To(Equal(""))
	})
})

var _ = Describe("ExtractMeta", func() {
	It("should extract date and time", func() {
		meta := ExtractMeta([]string{"FECHA 02/03/2024", "HORA 18:45"}, StoreLidl)
		Expect(meta.Store).To(Equal(StoreLidl))
		Expect(meta.Date).To(Equal("02/03/2024"))
		Expect(meta.Time).To(Equal("18:45"))
	})

	It("should leave missing fields empty", func() {
		meta := ExtractMeta([]string{"SIN FECHA"}, "")
		Expect(meta.Date).To(BeEmpty())
		Expect(meta.Time).To(BeEmpty())
	})
})
