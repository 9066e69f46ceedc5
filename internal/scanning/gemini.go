package scanning

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/zombor/invoice-scanner/internal/document"
)

// DefaultGeminiModel is used when no model name is configured
const DefaultGeminiModel = "gemini-2.5-flash"

// Gemini implements the Extractor interface using Google Gemini
type Gemini struct {
	client  *genai.Client
	model   *genai.GenerativeModel
	variant document.Variant
	prompt  prompt
}

// NewGemini creates a new Gemini Extractor for one variant. The model is
// asked for JSON matching the variant's schema at a low temperature.
func NewGemini(ctx context.Context, apiKey, modelName string, variant document.Variant) (*Gemini, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	if modelName == "" {
		modelName = DefaultGeminiModel
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}

	p := promptFor(variant)
	model := client.GenerativeModel(modelName)
	model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(p.instruction)}}
	model.ResponseMIMEType = "application/json"
	model.ResponseSchema = responseSchema(variant)
	model.SetTemperature(0.1)

	return &Gemini{
		client:  client,
		model:   model,
		variant: variant,
		prompt:  p,
	}, nil
}

// Extract analyzes a document image and returns a draft record
func (g *Gemini) Extract(ctx context.Context, imageData []byte, contentType string) (document.Record, error) {
	finalImageData, err := prepareImageData(imageData, contentType)
	if err != nil {
		return nil, err
	}

	// genai.ImageData expects the format suffix, not the full MIME type
	resp, err := g.model.GenerateContent(ctx,
		genai.ImageData("png", finalImageData),
		genai.Text(g.prompt.request),
	)
	if err != nil {
		return nil, fmt.Errorf("generating content: %w", err)
	}

	text, err := responseText(resp)
	if err != nil {
		return nil, err
	}

	rec, err := parseRecord(g.variant, text)
	if err != nil {
		return nil, fmt.Errorf("parsing %s data: %w", g.variant, err)
	}
	return rec, nil
}

// responseText joins the text parts of the first candidate
func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil ||
		len(resp.Candidates[0].Content.Parts) == 0 {
		return "", ErrNoData
	}

	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			b.WriteString(string(text))
		}
	}

	text := strings.TrimSpace(b.String())
	if text == "" {
		return "", ErrNoData
	}
	return text, nil
}

// Close closes the Gemini client
func (g *Gemini) Close() error {
	return g.client.Close()
}
