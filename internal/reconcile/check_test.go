package reconcile

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"

	"github.com/zombor/invoice-scanner/internal/document"
)

func amount(s string) document.Amount {
	return document.ParseAmount(s)
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

var _ = Describe("CheckInvoice", func() {
	var (
		net, tax, total document.Amount
		res             Result
	)

	JustBeforeEach(func() {
		res = CheckInvoice(net, tax, total)
	})

	When("net plus tax equals the total exactly", func() {
		BeforeEach(func() {
			net, tax, total = amount("100.00"), amount("20.00"), amount("120.00")
		})

		It("is consistent", func() {
			Expect(res.IsConsistent).To(BeTrue())
		})

		It("has no deviation", func() {
			Expect(res.DeviationPercent.IsZero()).To(BeTrue())
		})

		It("reports the expected total", func() {
			Expect(res.ExpectedTotal.Equal(dec("120"))).To(BeTrue())
		})
	})

	When("the total is far off", func() {
		BeforeEach(func() {
			net, tax, total = amount("100.00"), amount("20.00"), amount("500.00")
		})

		It("is inconsistent", func() {
			Expect(res.IsConsistent).To(BeFalse())
		})

		It("reports the expected total", func() {
			Expect(res.ExpectedTotal.StringFixed(2)).To(Equal("120.00"))
		})

		It("measures the deviation against the declared total", func() {
			Expect(res.DeviationPercent.Equal(dec("76"))).To(BeTrue())
		})
	})

	When("the deviation is within two percent", func() {
		BeforeEach(func() {
			net, tax, total = amount("100.00"), amount("19.00"), amount("121.00")
		})

		It("is consistent", func() {
			Expect(res.IsConsistent).To(BeTrue())
		})
	})

	When("the deviation is ten percent", func() {
		BeforeEach(func() {
			net, tax, total = amount("90.00"), amount("20.00"), amount("100.00")
		})

		It("is inconsistent", func() {
			Expect(res.IsConsistent).To(BeFalse())
			Expect(res.DeviationPercent.Equal(dec("10"))).To(BeTrue())
		})
	})

	When("the total is zero", func() {
		BeforeEach(func() {
			net, tax, total = amount("0"), amount("0"), amount("0")
		})

		It("is inconsistent with a hundred percent deviation", func() {
			Expect(res.IsConsistent).To(BeFalse())
			Expect(res.DeviationPercent.Equal(dec("100"))).To(BeTrue())
		})
	})

	When("the total is missing", func() {
		BeforeEach(func() {
			net, tax, total = amount("100"), amount("20"), document.Amount{}
		})

		It("is inconsistent with a hundred percent deviation", func() {
			Expect(res.IsConsistent).To(BeFalse())
			Expect(res.DeviationPercent.Equal(dec("100"))).To(BeTrue())
		})
	})

	When("the tax is not a number", func() {
		BeforeEach(func() {
			net, tax, total = amount("120"), amount("n/a"), amount("120")
		})

		It("counts it as zero", func() {
			Expect(res.ExpectedTotal.Equal(dec("120"))).To(BeTrue())
			Expect(res.DeviationPercent.IsZero()).To(BeTrue())
		})

		It("still reports the result as invalid", func() {
			Expect(res.IsConsistent).To(BeFalse())
		})
	})
})

var _ = Describe("CheckBill", func() {
	var (
		tariff          Tariff
		high, low, total document.Amount
		res             Result
	)

	BeforeEach(func() {
		tariff = DefaultTariff()
	})

	JustBeforeEach(func() {
		res = CheckBill(high, low, total, tariff)
	})

	When("the total is close to the meter estimate", func() {
		BeforeEach(func() {
			high, low, total = amount("1000"), amount("500"), amount("115.00")
		})

		It("estimates from the tariff rates", func() {
			Expect(res.ExpectedTotal.Equal(dec("110"))).To(BeTrue())
		})

		It("deviates by about 4.3 percent", func() {
			Expect(res.DeviationPercent.Round(1).Equal(dec("4.3"))).To(BeTrue())
		})

		It("is consistent under the wide tolerance", func() {
			Expect(res.IsConsistent).To(BeTrue())
		})
	})

	When("the deviation is ten percent", func() {
		BeforeEach(func() {
			high, low, total = amount("1000"), amount("500"), amount("100")
		})

		It("is still consistent", func() {
			Expect(res.DeviationPercent.Equal(dec("10"))).To(BeTrue())
			Expect(res.IsConsistent).To(BeTrue())
		})
	})

	When("the deviation exceeds twenty five percent", func() {
		BeforeEach(func() {
			high, low, total = amount("1000"), amount("500"), amount("200")
		})

		It("is inconsistent", func() {
			Expect(res.IsConsistent).To(BeFalse())
		})
	})

	When("the total is zero", func() {
		BeforeEach(func() {
			high, low, total = amount("1000"), amount("500"), amount("0")
		})

		It("is inconsistent with a hundred percent deviation", func() {
			Expect(res.IsConsistent).To(BeFalse())
			Expect(res.DeviationPercent.Equal(dec("100"))).To(BeTrue())
		})
	})
})

var _ = Describe("Check", func() {
	It("uses a wider tolerance for bills than for invoices", func() {
		Expect(BillTolerance.GreaterThan(InvoiceTolerance)).To(BeTrue())
	})

	It("dispatches on the record variant", func() {
		bill := &document.UtilityBill{
			MeterReadings: document.MeterReadings{
				HighTariff: amount("1000"),
				LowTariff:  amount("500"),
			},
			TotalAmount: amount("115"),
		}
		res := Check(bill, DefaultTariff())
		Expect(res.TolerancePercent.Equal(BillTolerance)).To(BeTrue())
		Expect(res.IsConsistent).To(BeTrue())

		inv := &document.Invoice{NetAmount: amount("100"), TaxAmount: amount("20"), TotalAmount: amount("120")}
		res = Check(inv, DefaultTariff())
		Expect(res.TolerancePercent.Equal(InvoiceTolerance)).To(BeTrue())
		Expect(res.IsConsistent).To(BeTrue())
	})
})
