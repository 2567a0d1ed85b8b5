package llm

import (
	_ "embed"
	"strings"
)

var (
	//go:embed prompts/extraction.txt
	extractionPrompt string
	//go:embed prompts/html.txt
	htmlPrompt string
)

// BuildExtractionPrompt returns the structured-data extraction prompt for the
// given CV text. The output is deterministic: same text in, same prompt out.
func BuildExtractionPrompt(cvText string) string {
	return strings.ReplaceAll(extractionPrompt, "{{CV_TEXT}}", cvText)
}

// BuildHTMLPrompt returns the HTML generation prompt for the given structured
// CV JSON and page template.
func BuildHTMLPrompt(structuredJSON string, templateHTML string) string {
	out := strings.ReplaceAll(htmlPrompt, "{{CV_DATA}}", structuredJSON)
	return strings.ReplaceAll(out, "{{TEMPLATE_HTML}}", templateHTML)
}
