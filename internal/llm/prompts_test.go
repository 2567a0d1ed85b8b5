package llm

import (
	"strings"
	"testing"
)

func TestBuildExtractionPrompt_Deterministic(t *testing.T) {
	a := BuildExtractionPrompt("John Doe\nSoftware Engineer")
	b := BuildExtractionPrompt("John Doe\nSoftware Engineer")
	if a != b {
		t.Fatal("same input must produce the same prompt")
	}
}

func TestBuildExtractionPrompt_EmbedsTextAndSchema(t *testing.T) {
	cvText := "Jane Doe, Backend Developer, Copenhagen"
	prompt := BuildExtractionPrompt(cvText)

	if !strings.Contains(prompt, cvText) {
		t.Fatal("prompt must embed the CV text")
	}
	for _, want := range []string{
		`"personalInfo"`,
		`"profile"`,
		`"metrics"`,
		`"experience"`,
		`"skills"`,
		`"education"`,
		`"languages"`,
		"KEEP ALL TEXT IN THE ORIGINAL LANGUAGE",
		"ALWAYS GENERATE 4 key metrics",
		"ALWAYS use proper nesting of the personalInfo section",
		"Return ONLY a valid JSON object",
	} {
		if !strings.Contains(prompt, want) {
			t.Fatalf("prompt missing %q", want)
		}
	}
	if strings.Contains(prompt, "{{CV_TEXT}}") {
		t.Fatal("placeholder left unreplaced")
	}
}

func TestBuildHTMLPrompt(t *testing.T) {
	prompt := BuildHTMLPrompt(`{"language":"english"}`, "<html>[NAME]</html>")

	if !strings.Contains(prompt, `{"language":"english"}`) {
		t.Fatal("prompt must embed the structured data")
	}
	if !strings.Contains(prompt, "<html>[NAME]</html>") {
		t.Fatal("prompt must embed the template")
	}
	if strings.Contains(prompt, "{{CV_DATA}}") || strings.Contains(prompt, "{{TEMPLATE_HTML}}") {
		t.Fatal("placeholders left unreplaced")
	}
}
