package inference

import (
	"fmt"
	"strings"
)

// --- Extract stage prompt ---

const ExtractInstruction = "Extract all text and data from this document and format it as JSON key-value pairs. Include all visible text, numbers, dates, and structured information."

// ExtractMaxTokens leaves room for dense documents; extraction is the largest
// response of the three stages.
const ExtractMaxTokens = 4000

// --- Classify stage prompt ---

// Categories is the closed category list the classifier chooses from. "Other"
// is last and doubles as the parser's fallback.
var Categories = []string{
	"Dietary Supplement",
	"Stationery",
	"Kitchen Supplies",
	"Medicine",
	"Driver License",
	"Invoice",
	"W2",
	"Other",
}

const ClassifyMaxTokens = 100

// ClassifyPrompt builds the classification instruction for the extracted
// text. The model is told to answer in the exact shape the parser expects;
// deviations degrade to defaults rather than failing the stage.
func ClassifyPrompt(extractedData string) string {
	var b strings.Builder
	b.WriteString("Based on the following extracted text from a document, classify it into one of these categories:\n")
	for _, c := range Categories {
		fmt.Fprintf(&b, "- %s\n", c)
	}
	fmt.Fprintf(&b, "\nDocument text: %s\n\n", extractedData)
	b.WriteString(`Respond with only the category name and a confidence score (0-100). Format: "Category: [category], Confidence: [score]"`)
	return b.String()
}

// --- Summarize stage prompt ---

const SummarizeMaxTokens = 500

// SummarizePrompt builds the summary instruction, conditioned on the
// classified document type.
func SummarizePrompt(classification, extractedData string) string {
	return fmt.Sprintf(`Create a concise summary of this %s document based on the extracted text. Focus on key information, important details, and main points. Keep the summary between 200-300 words.

Document text: %s

Summary:`, classification, extractedData)
}
