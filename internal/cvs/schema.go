package cvs

import (
	"encoding/json"
	"strings"
)

const defaultLanguage = "english"

// StructuredCV is the canonical extraction result stored for every CV.
type StructuredCV struct {
	Language     string          `json:"language"`
	PersonalInfo PersonalInfo    `json:"personalInfo"`
	Profile      string          `json:"profile"`
	Metrics      []Metric        `json:"metrics"`
	Experience   []Experience    `json:"experience"`
	Skills       []SkillCategory `json:"skills"`
	Education    []Education     `json:"education"`
	Languages    []LanguageSkill `json:"languages"`
}

// PersonalInfo holds the contact block of a CV.
type PersonalInfo struct {
	Name     string `json:"name"`
	Title    string `json:"title"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	LinkedIn string `json:"linkedin"`
	Location string `json:"location"`
}

// Metric is a headline statistic shown on the CV page.
type Metric struct {
	Icon   string `json:"icon"`
	Value  string `json:"value"`
	Suffix string `json:"suffix"`
	Label  string `json:"label"`
}

// Experience is one job entry. Collapsible is an editor display setting
// carried through edits untouched.
type Experience struct {
	Title        string        `json:"title"`
	Company      string        `json:"company"`
	StartDate    string        `json:"startDate"`
	EndDate      string        `json:"endDate"`
	Collapsible  bool          `json:"collapsible"`
	Achievements []Achievement `json:"achievements"`
}

// Achievement is a single accomplishment under a job entry.
type Achievement struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// SkillCategory groups related skills. ProficiencyLevel is 0-100 and
// display-only; no arithmetic is done on it.
type SkillCategory struct {
	Name             string  `json:"name"`
	Icon             string  `json:"icon"`
	ProficiencyLevel int     `json:"proficiencyLevel"`
	Collapsible      bool    `json:"collapsible"`
	Skills           []Skill `json:"skills"`
}

// Skill is a named skill with a level in the CV's language and a 0-100
// percentage driving the skill bar width.
type Skill struct {
	Name         string `json:"name"`
	Level        string `json:"level"`
	PercentValue int    `json:"percentValue"`
}

// Education is one education entry.
type Education struct {
	Degree      string `json:"degree"`
	Institution string `json:"institution"`
	StartYear   string `json:"startYear"`
	EndYear     string `json:"endYear"`
}

// LanguageSkill is a spoken language with proficiency.
type LanguageSkill struct {
	Name        string `json:"name"`
	Proficiency string `json:"proficiency"`
}

// Normalize fills structural gaps left by model output: nil arrays become
// empty, nested arrays too, and a missing language defaults to english.
// Applying it twice gives the same result as applying it once.
func Normalize(cv StructuredCV) StructuredCV {
	if strings.TrimSpace(cv.Language) == "" {
		cv.Language = defaultLanguage
	}
	if cv.Metrics == nil {
		cv.Metrics = []Metric{}
	}
	if cv.Experience == nil {
		cv.Experience = []Experience{}
	}
	for i := range cv.Experience {
		if cv.Experience[i].Achievements == nil {
			cv.Experience[i].Achievements = []Achievement{}
		}
	}
	if cv.Skills == nil {
		cv.Skills = []SkillCategory{}
	}
	for i := range cv.Skills {
		if cv.Skills[i].Skills == nil {
			cv.Skills[i].Skills = []Skill{}
		}
	}
	if cv.Education == nil {
		cv.Education = []Education{}
	}
	if cv.Languages == nil {
		cv.Languages = []LanguageSkill{}
	}
	return cv
}

// NormalizeRaw builds a StructuredCV from loosely typed JSON. Every
// wrong-typed field falls back to its default instead of rejecting the
// document: a string where an array belongs becomes an empty array, a
// flattened or missing personalInfo becomes an empty block, and well-formed
// fields come through untouched.
func NormalizeRaw(raw map[string]any) StructuredCV {
	cv := StructuredCV{
		Language:   stringValue(raw["language"]),
		Profile:    stringValue(raw["profile"]),
		Metrics:    decodeList[Metric](raw["metrics"]),
		Experience: decodeList[Experience](raw["experience"]),
		Skills:     decodeList[SkillCategory](raw["skills"]),
		Education:  decodeList[Education](raw["education"]),
		Languages:  decodeList[LanguageSkill](raw["languages"]),
	}
	if pi, ok := raw["personalInfo"].(map[string]any); ok {
		cv.PersonalInfo = PersonalInfo{
			Name:     stringValue(pi["name"]),
			Title:    stringValue(pi["title"]),
			Email:    stringValue(pi["email"]),
			Phone:    stringValue(pi["phone"]),
			LinkedIn: stringValue(pi["linkedin"]),
			Location: stringValue(pi["location"]),
		}
	}
	return Normalize(cv)
}

func stringValue(v any) string {
	s, _ := v.(string)
	return s
}

// decodeList decodes a loosely typed JSON array into typed entries. Non-array
// input yields an empty list and non-object entries are skipped; a type
// mismatch inside an entry leaves just that field at its zero value.
func decodeList[T any](v any) []T {
	items, ok := v.([]any)
	if !ok {
		return []T{}
	}
	out := make([]T, 0, len(items))
	for _, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		data, err := json.Marshal(obj)
		if err != nil {
			continue
		}
		var entry T
		_ = json.Unmarshal(data, &entry)
		out = append(out, entry)
	}
	return out
}

// FallbackCV is the record stored when no parse strategy produced usable
// JSON, so the rest of the pipeline still has a well-formed document.
func FallbackCV() StructuredCV {
	return Normalize(StructuredCV{
		PersonalInfo: PersonalInfo{
			Name:  "Parsing Error",
			Title: "Please try again",
		},
		Profile: "There was an error parsing the CV data. Please try uploading again.",
	})
}
