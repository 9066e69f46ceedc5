package scanning

import (
	"github.com/google/generative-ai-go/genai"

	"github.com/zombor/invoice-scanner/internal/document"
)

const invoiceInstruction = `You are an expert Accounts Payable assistant.
Your goal is to extract structured data from invoices for accounting and payment purposes.
- Identify the Vendor Name accurately.
- Extract the Invoice Number (often labeled Inv No, Invoice #, Fatura, etc.).
- Extract dates: Invoice Date and Due Date in YYYY-MM-DD format. If the Due Date is not explicit, use null.
- Extract financial amounts: Total Amount (payable), Tax Amount (VAT/GST) and Net Amount (Subtotal).
- Extract payment information: look for an IBAN or bank account number.
- Determine the currency as an ISO code (EUR, USD, GBP, etc.).
- Do not make up data. If a field is missing, use null.`

const invoiceFormat = `Return ONLY valid JSON in this exact format:
{
  "vendor_name": "Supplier name",
  "invoice_number": "INV-001",
  "invoice_date": "YYYY-MM-DD",
  "due_date": "YYYY-MM-DD or null",
  "currency": "EUR",
  "net_amount": 0.00,
  "tax_amount": 0.00,
  "total_amount": 0.00,
  "iban": "IBAN or null"
}
Amounts must be numbers, not strings. Do not include any text before or after the JSON.`

const billInstruction = `You are an expert at reading electricity utility bills.
Extract the data needed to check the bill against the meter readings.
- Identify the Customer ID (account or contract number) and the Customer Name.
- Extract the billing month in MM-YYYY format and the invoice date in YYYY-MM-DD format.
- Extract the consumption readings: A1 is the high tariff reading and A2 is the low tariff reading, both in kWh.
- Extract the total amount to pay.
- Do not make up data. If a field is missing, use null.`

const billFormat = `Return ONLY valid JSON in this exact format:
{
  "customer_id": "Customer ID",
  "customer_name": "Customer name",
  "billing_month": "MM-YYYY",
  "invoice_date": "YYYY-MM-DD",
  "meter_readings": {"high_tariff": 0, "low_tariff": 0},
  "total_amount": 0.00
}
Readings and amounts must be numbers, not strings. Do not include any text before or after the JSON.`

// prompt holds the fixed task text for one variant
type prompt struct {
	instruction string
	request     string
	format      string
}

func promptFor(v document.Variant) prompt {
	if v == document.VariantUtilityBill {
		return prompt{
			instruction: billInstruction,
			request:     "Extract data from this utility bill for verification.",
			format:      billFormat,
		}
	}
	return prompt{
		instruction: invoiceInstruction,
		request:     "Extract data from this invoice for accounting.",
		format:      invoiceFormat,
	}
}

func stringField(desc string) *genai.Schema {
	return &genai.Schema{Type: genai.TypeString, Description: desc}
}

func numberField(desc string) *genai.Schema {
	return &genai.Schema{Type: genai.TypeNumber, Description: desc}
}

// responseSchema describes the JSON object the model must answer with
func responseSchema(v document.Variant) *genai.Schema {
	if v == document.VariantUtilityBill {
		return &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"customer_id":   stringField("Customer account or contract number"),
				"customer_name": stringField("Name of the customer"),
				"billing_month": stringField("MM-YYYY format"),
				"invoice_date":  stringField("YYYY-MM-DD format"),
				"meter_readings": {
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"high_tariff": numberField("A1 high tariff consumption in kWh"),
						"low_tariff":  numberField("A2 low tariff consumption in kWh"),
					},
					Required: []string{"high_tariff", "low_tariff"},
				},
				"total_amount": numberField("Total amount to pay"),
			},
			Required: []string{"customer_id", "billing_month", "invoice_date", "meter_readings", "total_amount"},
		}
	}

	dueDate := stringField("YYYY-MM-DD format")
	dueDate.Nullable = true
	iban := stringField("International Bank Account Number for payment")
	iban.Nullable = true

	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"vendor_name":    stringField("Name of the supplier or service provider"),
			"invoice_number": stringField("Unique identifier for the invoice"),
			"invoice_date":   stringField("YYYY-MM-DD format"),
			"due_date":       dueDate,
			"currency":       stringField("ISO currency code e.g. EUR, USD"),
			"total_amount":   numberField("Final payable amount including tax"),
			"tax_amount":     numberField("Total tax/VAT amount"),
			"net_amount":     numberField("Total amount before tax (subtotal)"),
			"iban":           iban,
		},
		Required: []string{"vendor_name", "invoice_number", "invoice_date", "total_amount", "currency"},
	}
}
