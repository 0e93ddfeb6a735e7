package parsing

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Attacher", func() {
	var (
		parser *Parser
		lines  []string
		items  []*Item
	)

	BeforeEach(func() {
		parser = &Parser{Discounts: NewAttacher()}
	})

	JustBeforeEach(func() {
		items = parser.Parse(lines)
	})

	When("a discount row follows the item it reduces", func() {
		BeforeEach(func() {
			lines = []string{
				"1 CAFE MOLIDO 3,49 3,49",
				"Descuento -0,70",
			}
		})

		It("should reduce the item and record the base amount", func() {
			Expect(items).To(HaveLen(1))
			Expect(items[0].Amount).To(BeNumerically("~", 2.79, 0.001))
			Expect(items[0].BaseAmount).To(BeNumerically("~", 3.49, 0.001))
			Expect(items[0].DiscountAmount).To(BeNumerically("~", 0.70, 0.001))
			Expect(items[0].DiscountLabels).To(Equal([]string{"Descuento"}))
		})
	})

	When("the discount row carries only a percentage", func() {
		BeforeEach(func() {
			lines = []string{
				"1 GEL DE BANO 4,00 4,00",
				"Descuento 25%",
			}
		})

		It("should derive the amount from the percentage", func() {
			Expect(items).To(HaveLen(1))
			Expect(items[0].Amount).To(BeNumerically("~", 3.00, 0.001))
			Expect(items[0].DiscountAmount).To(BeNumerically("~", 1.00, 0.001))
		})
	})

	When("the discount amount is printed on the following line", func() {
		BeforeEach(func() {
			lines = []string{
				"1 ACEITE OLIVA 5,99 5,99",
				"Descuento",
				"-1,20",
			}
		})

		It("should consume the amount line", func() {
			Expect(items).To(HaveLen(1))
			Expect(items[0].Amount).To(BeNumerically("~", 4.79, 0.001))
		})
	})

	When("a promo row follows its item directly", func() {
		BeforeEach(func() {
			lines = []string{
				"1 ATUN CLARO 2,50 2,50",
				"1 PAN INTEGRAL 1,00 1,00",
				"Promo Lidl Plus -0,50",
			}
		})

		It("should attach only to the item directly above", func() {
			Expect(items).To(HaveLen(2))
			Expect(items[0].Amount).To(BeNumerically("~", 2.50, 0.001))
			Expect(items[1].Amount).To(BeNumerically("~", 0.50, 0.001))
			Expect(items[1].DiscountLabels).To(Equal([]string{"Promo Lidl Plus"}))
		})
	})

	When("a promo row cannot be applied", func() {
		BeforeEach(func() {
			lines = []string{
				"1 CHICLE MENTA 0,30 0,30",
				"Promo Lidl Plus -0,50",
			}
		})

		It("should drop the row instead of emitting a negative item", func() {
			Expect(items).To(HaveLen(1))
			Expect(items[0].Amount).To(BeNumerically("~", 0.30, 0.001))
		})
	})

	When("the discount exceeds the guard ratio but carries a percentage", func() {
		BeforeEach(func() {
			lines = []string{
				"1 QUESO CURADO 4,00 4,00",
				"Descuento 10% -40,00",
			}
		})

		It("should fall back to the percentage", func() {
			Expect(items).To(HaveLen(1))
			Expect(items[0].Amount).To(BeNumerically("~", 3.60, 0.001))
		})
	})

	When("a single row combines base price and discount", func() {
		BeforeEach(func() {
			lines = []string{"2 LOTE DESCUENTO 3,00 -1,00"}
		})

		It("should emit the item with the discount already applied", func() {
			Expect(items).To(HaveLen(1))
			Expect(items[0].Quantity).To(Equal(2.0))
			Expect(items[0].Description).To(Equal("LOTE DESCUENTO"))
			Expect(items[0].Amount).To(BeNumerically("~", 2.00, 0.001))
			Expect(items[0].BaseAmount).To(BeNumerically("~", 3.00, 0.001))
			Expect(items[0].DiscountAmount).To(BeNumerically("~", 1.00, 0.001))
		})
	})

	When("two discounts hit the same item", func() {
		BeforeEach(func() {
			lines = []string{
				"1 DETERGENTE 6,00 6,00",
				"Descuento -1,00",
				"Promo Lidl Plus -0,50",
			}
		})

		It("should accumulate while keeping the original base", func() {
			Expect(items).To(HaveLen(1))
			Expect(items[0].Amount).To(BeNumerically("~", 4.50, 0.001))
			Expect(items[0].BaseAmount).To(BeNumerically("~", 6.00, 0.001))
			Expect(items[0].DiscountAmount).To(BeNumerically("~", 1.50, 0.001))
			Expect(items[0].DiscountLabels).To(Equal([]string{"Descuento", "Promo Lidl Plus"}))
		})
	})

	When("the item is outside the lookback window", func() {
		BeforeEach(func() {
			parser.Discounts.Lookback = 1
			lines = []string{
				"1 PAN 0,85 0,85",
				"GRACIAS",
				"HORARIO",
				"Descuento -0,20",
			}
		})

		It("should not attach the discount", func() {
			Expect(items).To(HaveLen(2))
			Expect(items[0].Amount).To(BeNumerically("~", 0.85, 0.001))
		})
	})
})
