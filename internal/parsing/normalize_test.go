package parsing

import (
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("NormalizeLine", func() {
	It("should replace minus sign variants with a hyphen", func() {
		Expect(NormalizeLine("Descuento −0,35")).To(Equal("Descuento -0,35"))
		Expect(NormalizeLine("Dto –0,35")).To(Equal("Dto -0,35"))
	})

	It("should replace the multiplication sign with x", func() {
		Expect(NormalizeLine("0,850 kg × 1,99")).To(Equal("0,850 kg x 1,99"))
	})

	It("should repair a letter o between digits", func() {
		Expect(NormalizeLine("1o2 GALLETAS")).To(Equal("102 GALLETAS"))
	})

	It("should repair adjacent misread zeros in one pass", func() {
		Expect(NormalizeLine("1o2o3")).To(Equal("10203"))
		Expect(NormalizeLine(NormalizeLine("1o2o3"))).To(Equal(NormalizeLine("1o2o3")))
	})

	It("should repair decimal digits misread as S or O", func() {
		Expect(NormalizeLine("PAN 1,2s")).To(Equal("PAN 1,25"))
		Expect(NormalizeLine("AGUA 2,5o")).To(Equal("AGUA 2,50"))
	})

	It("should normalize euro sign spacing", func() {
		Expect(NormalizeLine("AGUA 1,20€")).To(Equal("AGUA 1,20 €"))
	})

	It("should collapse runs of whitespace", func() {
		Expect(NormalizeLine("  2   AGUA   1,20  ")).To(Equal("2 AGUA 1,20"))
	})

	It("should be idempotent", func() {
		once := NormalizeLine("0,850 kg × 1,99   −0,35 €")
		Expect(NormalizeLine(once)).To(Equal(once))
	})
})

var _ = Describe("ParseAmount", func() {
	It("should parse a comma-decimal value", func() {
		Expect(ParseAmount("1,15")).To(BeNumerically("~", 1.15, 0.0001))
	})

	It("should parse thousands separators", func() {
		Expect(ParseAmount("1.234,56")).To(BeNumerically("~", 1234.56, 0.0001))
	})

	It("should parse negative values", func() {
		Expect(ParseAmount("-0,35")).To(BeNumerically("~", -0.35, 0.0001))
	})

	It("should ignore a euro sign", func() {
		Expect(ParseAmount("2,50 €")).To(BeNumerically("~", 2.50, 0.0001))
	})

	It("should return NaN for non-numbers", func() {
		Expect(math.IsNaN(ParseAmount("GRACIAS"))).To(BeTrue())
		Expect(math.IsNaN(ParseAmount(""))).To(BeTrue())
	})
})

var _ = Describe("FormatAmount", func() {
	It("should render two decimals with a comma", func() {
		Expect(FormatAmount(1.5)).To(Equal("1,50"))
	})

	It("should render thousands with dots", func() {
		Expect(FormatAmount(1234.56)).To(Equal("1.234,56"))
		Expect(FormatAmount(1234567.8)).To(Equal("1.234.567,80"))
	})

	It("should render negative values", func() {
		Expect(FormatAmount(-0.35)).To(Equal("-0,35"))
	})

	It("should round-trip through ParseAmount", func() {
		for _, n := range []float64{0, 0.01, 1.15, 999.99, 1234.56, -42.5} {
			Expect(ParseAmount(FormatAmount(n))).To(BeNumerically("~", n, 0.001))
		}
	})
})

var _ = Describe("lastAmountToken", func() {
	It("should return the last amount on the line", func() {
		Expect(lastAmountToken("2 AGUA 0,60 1,20")).To(Equal("1,20"))
	})

	It("should pad a single decimal digit", func() {
		Expect(lastAmountToken("AGUA 1,2")).To(Equal("1,20"))
	})

	It("should reject a token followed by more digits", func() {
		Expect(lastAmountToken("REF 1,20 998877")).To(Equal(""))
	})

	It("should return empty for lines without amounts", func() {
		Expect(lastAmountToken("GRACIAS POR SU VISITA")).To(Equal(""))
	})
})
