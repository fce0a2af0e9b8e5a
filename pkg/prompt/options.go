package prompt

import (
	"strings"
)

// Language is the output language of the final report.
type Language string

const (
	English  Language = "English"
	Spanish  Language = "Spanish"
	French   Language = "French"
	German   Language = "German"
	Hindi    Language = "Hindi"
	Chinese  Language = "Chinese"
	Japanese Language = "Japanese"
)

// Languages lists the supported output languages in display order.
var Languages = []Language{English, Spanish, French, German, Hindi, Chinese, Japanese}

var languageCodes = map[Language]string{
	English:  "en-US",
	Spanish:  "es-ES",
	French:   "fr-FR",
	German:   "de-DE",
	Hindi:    "hi-IN",
	Chinese:  "cmn-CN",
	Japanese: "ja-JP",
}

// Code returns the BCP-47 tag used for speech synthesis.
func (l Language) Code() string {
	if code, ok := languageCodes[l]; ok {
		return code
	}
	return languageCodes[English]
}

// ParseLanguage matches s case-insensitively. Unknown or empty input is English.
func ParseLanguage(s string) Language {
	for _, l := range Languages {
		if strings.EqualFold(string(l), strings.TrimSpace(s)) {
			return l
		}
	}
	return English
}

// Persona is the writing style the agent adopts.
type Persona string

const (
	PersonaNone       Persona = ""
	PersonaProfessor  Persona = "The Professor (Academic)"
	PersonaJournalist Persona = "The Journalist (Engaging)"
	PersonaSkeptic    Persona = "The Skeptic (Critical)"
	PersonaELI5       Persona = "ELI5 (Simple)"
)

// Personas lists the selectable personas in display order.
var Personas = []Persona{PersonaProfessor, PersonaJournalist, PersonaSkeptic, PersonaELI5}

// ParsePersona accepts either the full label or a keyword such as "skeptic".
func ParsePersona(s string) Persona {
	lower := strings.ToLower(strings.TrimSpace(s))
	switch {
	case lower == "":
		return PersonaNone
	case strings.Contains(lower, "professor"):
		return PersonaProfessor
	case strings.Contains(lower, "journalist"):
		return PersonaJournalist
	case strings.Contains(lower, "skeptic"):
		return PersonaSkeptic
	case strings.Contains(lower, "eli5"):
		return PersonaELI5
	}
	return PersonaNone
}

// ModelChoice selects between the reasoning and the fast model.
type ModelChoice string

const (
	ModelPro  ModelChoice = "pro"
	ModelFast ModelChoice = "fast"
)

func ParseModelChoice(s string) ModelChoice {
	lower := strings.ToLower(s)
	if strings.Contains(lower, "fast") || strings.Contains(lower, "flash") {
		return ModelFast
	}
	return ModelPro
}

// Depth controls how many papers each search returns.
type Depth string

const (
	DepthOverview Depth = "overview"
	DepthStandard Depth = "standard"
	DepthDeep     Depth = "deep"
)

func ParseDepth(s string) Depth {
	lower := strings.ToLower(s)
	switch {
	case strings.Contains(lower, "overview"):
		return DepthOverview
	case strings.Contains(lower, "deep"):
		return DepthDeep
	}
	return DepthStandard
}

// MaxResults is the arXiv result count used for this depth.
func (d Depth) MaxResults() int {
	switch d {
	case DepthOverview:
		return 3
	case DepthDeep:
		return 10
	}
	return 5
}

// Options are the per-turn settings. They are read-only during a turn and
// are not stored with the session.
type Options struct {
	Model        ModelChoice `json:"model"`
	Depth        Depth       `json:"depth"`
	Language     Language    `json:"language"`
	Persona      Persona     `json:"persona"`
	CriticalMode bool        `json:"critical_mode"`
}

// DefaultOptions mirrors the initial selection of the settings panel.
func DefaultOptions() Options {
	return Options{
		Model:    ModelPro,
		Depth:    DepthStandard,
		Language: English,
		Persona:  PersonaProfessor,
	}
}

// Normalize maps free-form values onto the supported enums.
func (o Options) Normalize() Options {
	o.Model = ParseModelChoice(string(o.Model))
	o.Depth = ParseDepth(string(o.Depth))
	o.Language = ParseLanguage(string(o.Language))
	o.Persona = ParsePersona(string(o.Persona))
	return o
}
