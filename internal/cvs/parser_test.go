package cvs

import (
	"strings"
	"testing"
)

func TestUnwrapResponse(t *testing.T) {
	inner := `{"language":"english"}`

	if got := UnwrapResponse("```json\n" + inner + "\n```"); got != inner {
		t.Fatalf("json fence: got %q", got)
	}
	if got := UnwrapResponse("```\n" + inner + "\n```"); got != inner {
		t.Fatalf("plain fence: got %q", got)
	}
	if got := UnwrapResponse("  " + inner + "  "); got != inner {
		t.Fatalf("no fence: got %q", got)
	}
}

func TestParseStructured_Direct(t *testing.T) {
	raw := `{"language":"danish","personalInfo":{"name":"Jane Doe","title":"Udvikler"},"profile":"Erfaren udvikler"}`

	cv, degraded := ParseStructured(raw)
	if degraded {
		t.Fatal("valid JSON must not degrade")
	}
	if cv.PersonalInfo.Name != "Jane Doe" || cv.Language != "danish" {
		t.Fatalf("unexpected parse: %+v", cv)
	}
	if cv.Metrics == nil || cv.Experience == nil {
		t.Fatal("arrays must be normalized to empty, not nil")
	}
}

func TestParseStructured_Fenced(t *testing.T) {
	raw := "```json\n{\"language\":\"english\",\"personalInfo\":{\"name\":\"Jane\"}}\n```"

	cv, degraded := ParseStructured(raw)
	if degraded {
		t.Fatal("fenced JSON must not degrade")
	}
	if cv.PersonalInfo.Name != "Jane" {
		t.Fatalf("unexpected parse: %+v", cv)
	}
}

func TestParseStructured_SurroundingProse(t *testing.T) {
	raw := `Here is the extracted data you asked for: {"language":"english","personalInfo":{"name":"Jane"}} Let me know if you need anything else.`

	cv, degraded := ParseStructured(raw)
	if degraded {
		t.Fatal("JSON embedded in prose must not degrade")
	}
	if cv.PersonalInfo.Name != "Jane" {
		t.Fatalf("unexpected parse: %+v", cv)
	}
}

func TestParseStructured_Fallback(t *testing.T) {
	cv, degraded := ParseStructured("I could not process this document, sorry.")
	if !degraded {
		t.Fatal("unparseable input must degrade")
	}
	if cv.PersonalInfo.Name != "Parsing Error" || cv.PersonalInfo.Title != "Please try again" {
		t.Fatalf("unexpected fallback: %+v", cv.PersonalInfo)
	}
	if !strings.Contains(cv.Profile, "error parsing the CV data") {
		t.Fatalf("unexpected fallback profile: %q", cv.Profile)
	}
	if len(cv.Metrics) != 0 || len(cv.Experience) != 0 || len(cv.Skills) != 0 || len(cv.Education) != 0 || len(cv.Languages) != 0 {
		t.Fatal("fallback arrays must be empty")
	}
	if cv.Language != "english" {
		t.Fatalf("fallback language: %q", cv.Language)
	}
}

func TestParseStructured_EmptyObject(t *testing.T) {
	cv, degraded := ParseStructured("{}")
	if degraded {
		t.Fatal("empty object must parse")
	}
	if cv.Language != "english" {
		t.Fatalf("language default: %q", cv.Language)
	}
}

func TestParseStructured_UnescapedQuoteInValue(t *testing.T) {
	raw := `{"language":"english","personalInfo":{"name":"John "Smith","title":"Engineer"}}`

	cv, degraded := ParseStructured(raw)
	if degraded {
		t.Fatal("one stray quote inside a value must be repairable")
	}
	if cv.PersonalInfo.Name != `John "Smith` {
		t.Fatalf("name: %q", cv.PersonalInfo.Name)
	}
	if cv.Language != "english" || cv.PersonalInfo.Title != "Engineer" {
		t.Fatalf("fields around the repair must survive: %+v", cv)
	}
}

func TestParseStructured_FencedWithBadQuote(t *testing.T) {
	inner := `{"language":"english","personalInfo":{"name":"John Smith","title":"Software "Engineer","email":"john@x.com","phone":"","linkedin":"","location":""},"profile":"","metrics":[],"experience":[],"skills":[],"education":[],"languages":[]}`
	raw := "```json\n" + inner + "\n```"

	cv, degraded := ParseStructured(raw)
	if degraded {
		t.Fatal("fenced reply with one bad quote must not degrade")
	}
	if cv.PersonalInfo.Name != "John Smith" {
		t.Fatalf("name: %q", cv.PersonalInfo.Name)
	}
	if cv.PersonalInfo.Title != `Software "Engineer` {
		t.Fatalf("title: %q", cv.PersonalInfo.Title)
	}
	if cv.Metrics == nil || cv.Experience == nil || cv.Skills == nil || cv.Education == nil || cv.Languages == nil {
		t.Fatal("all arrays must be present after normalization")
	}
}

func TestParseStructured_WrongTypedFields(t *testing.T) {
	raw := `{"language":"english","personalInfo":{"name":"Jane Doe"},"skills":"none","experience":[{"title":"Dev","achievements":"oops"}]}`

	cv, degraded := ParseStructured(raw)
	if degraded {
		t.Fatal("valid JSON with wrong-typed fields must not degrade")
	}
	if cv.PersonalInfo.Name != "Jane Doe" {
		t.Fatalf("well-formed fields must survive: %+v", cv.PersonalInfo)
	}
	if len(cv.Skills) != 0 {
		t.Fatalf("string skills must default to empty: %+v", cv.Skills)
	}
	if len(cv.Experience) != 1 || cv.Experience[0].Title != "Dev" {
		t.Fatalf("experience: %+v", cv.Experience)
	}
	if cv.Experience[0].Achievements == nil || len(cv.Experience[0].Achievements) != 0 {
		t.Fatalf("wrong-typed achievements must default to empty: %+v", cv.Experience[0].Achievements)
	}
}

func TestParseStructured_PersonalInfoNotAnObject(t *testing.T) {
	cv, degraded := ParseStructured(`{"language":"english","personalInfo":"Jane Doe"}`)
	if degraded {
		t.Fatal("must not degrade")
	}
	if cv.PersonalInfo.Name != "" {
		t.Fatalf("flattened personalInfo must reset to empty block: %+v", cv.PersonalInfo)
	}
}

func TestRepairQuoting_BareKeys(t *testing.T) {
	got := repairQuoting(`{language: null, views: 3}`)
	if !strings.Contains(got, `"language"`) || !strings.Contains(got, `"views"`) {
		t.Fatalf("bare keys not quoted: %q", got)
	}
}

func TestRepairQuoting_LeavesWellFormedTextAlone(t *testing.T) {
	in := `{"language":"english","personalInfo":{"name":"Jane","title":"Dev"},"metrics":[{"value":"10"}]}`
	if got := repairQuoting(in); got != in {
		t.Fatalf("well-formed text must pass through unchanged:\n in: %s\nout: %s", in, got)
	}
}

func TestRepairStrategies_Order(t *testing.T) {
	want := []string{"direct", "repair-quoting", "extract-object"}
	if len(repairStrategies) != len(want) {
		t.Fatalf("strategy count: %d", len(repairStrategies))
	}
	for i, s := range repairStrategies {
		if s.name != want[i] {
			t.Fatalf("strategy %d: got %q, want %q", i, s.name, want[i])
		}
	}
}
