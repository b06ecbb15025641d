package generator

import "time"

// DefaultPersona is used when the request names none.
const DefaultPersona = "neutral"

// Input is the material a manuscript is generated from.
type Input struct {
	Text       string
	Persona    string
	References []string
}

// Stage names one provider call of the pipeline.
type Stage string

const (
	StageInit     Stage = "init"
	StageAnalysis Stage = "analysis"
	StageDraft    Stage = "draft"
	StageEdit     Stage = "edit"
)

// Stages lists the pipeline stages in execution order.
var Stages = []Stage{StageAnalysis, StageDraft, StageEdit}

// Models selects the model used for each stage.
type Models struct {
	Analysis string
	Draft    string
	Edit     string
}

// SelectModels maps the requested model names onto stages. Gemini runs analysis and
// draft on content and edit on edit (content when empty); OpenAI uses chat for all.
func SelectModels(kind ProviderKind, content, edit, chat string) Models {
	if kind == ProviderGemini {
		if edit == "" {
			edit = content
		}
		return Models{Analysis: content, Draft: content, Edit: edit}
	}
	return Models{Analysis: chat, Draft: chat, Edit: chat}
}

func (m Models) For(stage Stage) string {
	switch stage {
	case StageAnalysis:
		return m.Analysis
	case StageDraft:
		return m.Draft
	case StageEdit:
		return m.Edit
	}
	return ""
}

// StageReport records one stage of a finished run.
type StageReport struct {
	Stage    Stage         `json:"stage"`
	Provider ProviderKind  `json:"provider"`
	Model    string        `json:"model,omitempty"`
	Skipped  bool          `json:"skipped,omitempty"`
	Chars    int           `json:"chars"`
	Duration time.Duration `json:"duration"`
}

// Manuscript is the edited ebook in Markdown.
type Manuscript struct {
	Title    string
	Digest   string
	Markdown string
}

// Result is the outcome of a successful pipeline run.
type Result struct {
	Analysis   string
	Draft      string
	Manuscript Manuscript
	Stages     []StageReport
}
