package ticket

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Reconcile", func() {
	items := func(amounts ...float64) []*Item {
		out := make([]*Item, 0, len(amounts))
		for _, a := range amounts {
			out = append(out, &Item{Quantity: 1, Description: "X", Amount: a})
		}
		return out
	}

	When("no expected total is known", func() {
		It("should leave the match undetermined", func() {
			rec := Reconcile(items(1.20, 0.80), 0, false)
			Expect(rec.Matches).To(BeNil())
			Expect(rec.HasExpected).To(BeFalse())
			Expect(rec.CalculatedTotal).To(Equal(2.00))
			Expect(rec.MissingAmount()).To(BeFalse())
			Expect(rec.ExcessAmount()).To(BeFalse())
		})
	})

	When("the totals agree within one cent", func() {
		It("should match", func() {
			rec := Reconcile(items(1.10, 2.15), 3.26, true)
			Expect(*rec.Matches).To(BeTrue())
		})
	})

	When("the ledger falls short", func() {
		It("should report the missing amount", func() {
			rec := Reconcile(items(1.00), 2.50, true)
			Expect(*rec.Matches).To(BeFalse())
			Expect(rec.Remaining).To(Equal(1.50))
			Expect(rec.MissingAmount()).To(BeTrue())
			Expect(rec.ExcessAmount()).To(BeFalse())
		})
	})

	When("the ledger overshoots", func() {
		It("should report the excess", func() {
			rec := Reconcile(items(3.00), 2.50, true)
			Expect(rec.Remaining).To(Equal(-0.50))
			Expect(rec.ExcessAmount()).To(BeTrue())
		})
	})

	When("items are hidden", func() {
		It("should subtract the hidden total from the expected one", func() {
			hidden := &Item{Quantity: 1, Description: "OCULTO", Amount: 2.00, Hidden: true}
			rec := Reconcile(append(items(3.00), hidden), 5.00, true)
			Expect(rec.HiddenTotal).To(Equal(2.00))
			Expect(rec.AdjustedExpected).To(Equal(3.00))
			Expect(rec.CalculatedTotal).To(Equal(3.00))
			Expect(*rec.Matches).To(BeTrue())
		})
	})
})
