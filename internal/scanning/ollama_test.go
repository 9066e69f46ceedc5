package scanning

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"

	"github.com/zombor/invoice-scanner/internal/document"
)

var _ = Describe("Ollama", func() {
	var (
		server    *ghttp.Server
		extractor *Ollama
		variant   document.Variant
		rec       document.Record
		err       error
	)

	BeforeEach(func() {
		server = ghttp.NewServer()
		variant = document.VariantInvoice
	})

	AfterEach(func() {
		server.Close()
	})

	JustBeforeEach(func() {
		var cerr error
		extractor, cerr = NewOllama(server.URL()+"/", "llava", variant)
		Expect(cerr).NotTo(HaveOccurred())
		rec, err = extractor.Extract(context.Background(), encodePNG(32, 32), "image/png")
	})

	When("the model answers with an invoice", func() {
		var captured ollamaChatRequest

		BeforeEach(func() {
			server.AppendHandlers(ghttp.CombineHandlers(
				ghttp.VerifyRequest(http.MethodPost, "/api/chat"),
				ghttp.VerifyContentType("application/json"),
				func(w http.ResponseWriter, r *http.Request) {
					body, rerr := io.ReadAll(r.Body)
					Expect(rerr).NotTo(HaveOccurred())
					Expect(json.Unmarshal(body, &captured)).To(Succeed())
				},
				ghttp.RespondWithJSONEncoded(http.StatusOK, ollamaChatResponse{
					Message: ollamaMessage{Role: "assistant", Content: `{"vendor_name": "Tech Corp", "total_amount": 120}`},
					Done:    true,
				}),
			))
		})

		It("should not return an error", func() {
			Expect(err).NotTo(HaveOccurred())
		})

		It("returns the parsed draft", func() {
			Expect(rec.(*document.Invoice).VendorName).To(Equal("Tech Corp"))
		})

		It("asks for JSON with the image on the user message", func() {
			Expect(captured.Model).To(Equal("llava"))
			Expect(captured.Format).To(Equal("json"))
			Expect(captured.Stream).To(BeFalse())
			Expect(captured.Messages).To(HaveLen(2))
			Expect(captured.Messages[0].Role).To(Equal("system"))
			Expect(captured.Messages[1].Images).To(HaveLen(1))
			Expect(captured.Messages[1].Content).To(ContainSubstring("invoice_number"))
		})
	})

	When("extracting utility bills", func() {
		var captured ollamaChatRequest

		BeforeEach(func() {
			variant = document.VariantUtilityBill
			server.AppendHandlers(ghttp.CombineHandlers(
				func(w http.ResponseWriter, r *http.Request) {
					Expect(json.NewDecoder(r.Body).Decode(&captured)).To(Succeed())
				},
				ghttp.RespondWithJSONEncoded(http.StatusOK, ollamaChatResponse{
					Message: ollamaMessage{Content: `{"customer_id": "C-1", "meter_readings": {"high_tariff": 10, "low_tariff": 5}}`},
				}),
			))
		})

		It("uses the bill prompt", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(captured.Messages[1].Content).To(ContainSubstring("meter_readings"))
			Expect(rec.(*document.UtilityBill).CustomerID).To(Equal("C-1"))
		})
	})

	When("the server returns an error status", func() {
		BeforeEach(func() {
			server.AppendHandlers(ghttp.RespondWith(http.StatusInternalServerError, "model not loaded"))
		})

		It("returns the status and body", func() {
			Expect(err).To(MatchError(ContainSubstring("status 500")))
			Expect(err).To(MatchError(ContainSubstring("model not loaded")))
		})
	})

	When("the model answers with nothing", func() {
		BeforeEach(func() {
			server.AppendHandlers(ghttp.RespondWithJSONEncoded(http.StatusOK, ollamaChatResponse{Done: true}))
		})

		It("returns ErrNoData", func() {
			Expect(err).To(MatchError(ErrNoData))
		})
	})

	When("the model answers with prose", func() {
		BeforeEach(func() {
			server.AppendHandlers(ghttp.RespondWithJSONEncoded(http.StatusOK, ollamaChatResponse{
				Message: ollamaMessage{Content: "I cannot read this image."},
			}))
		})

		It("returns a parse error", func() {
			Expect(err).To(MatchError(ContainSubstring("no JSON object")))
		})
	})
})
