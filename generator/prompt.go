package generator

import (
	"strings"
	"text/template"
)

// PageBreakTag is the literal tag the renderer turns into a new page.
const PageBreakTag = `<div class="page-break"></div>`

// noReferences stands in for an empty reference list.
const noReferences = "None"

// Prompt is one request to the model. System carries the full instructions,
// User the short turn that follows them in chat-style providers. Temperature is
// sent to OpenAI only; zero leaves the provider default.
type Prompt struct {
	Stage       Stage
	System      string
	User        string
	Temperature float64
}

const analysisTemplate = `You are an editorial analyst specialised in ebooks. The author's persona is "{{.Persona}}".
Read the material below and produce a structured summary containing:
- The main themes, characters, data or essential arguments.
- Important cross-references coming from the attachments (when there are any).
- A suggested structure for the ebook (introduction, chapters and conclusion).
- Key vocabulary, the desired tone and warnings about what must **not** be changed.

Answer in at most 250 words, using Markdown with clear sections.

**Main content:**
{{.Text}}

**Additional references:**
{{.References}}`

const draftTemplate = `You are a professional ebook writer and a master of Markdown, with the personality and skills defined by the user: "{{.Persona}}".
Your task is to write a complete, highly professional manuscript using **only** the main content and the references provided.

**Summary prepared by the analyst (use it as a structural guide):**
{{.Summary}}

**Mandatory instructions:**
1.  **Structure:** Build a cohesive narrative with an Introduction, well-structured chapters, subheadings and a strong conclusion.
2.  **Content:** Use only the material provided. Do **not** introduce external information, opinions or stories that are not in the material.
3.  **Format:** The result must be **Markdown optimised for conversion into an ebook PDF**, without comments, explanations or additional text.
4.  **Page breaks:** To force a new page in the PDF (ideal before chapters or major sections), place the HTML tag ` + "`" + PageBreakTag + "`" + ` immediately before the heading of the new chapter.
5.  **Table of contents:** Include a concise, engaging table of contents at the beginning listing the chapter titles. Do **not** include page numbers in it; they are generated in the PDF.
6.  **Tone:** Adopt a refined, convincing tone that matches the persona.

**Exclusion rules (never include in the text):**
*   Any notice that the text was generated by an agent or tool.
*   Comments about the main content.
*   Opening remarks before the content starts.
*   Credits, author, acknowledgement sections or any message about automatic generation.
*   Lines dedicated to page numbers or internal notes.

**Material:**
Main content:
{{.Text}}

Additional references:
{{.References}}`

const editTemplate = `You are a senior editor of professional publications with the personality and skills defined by the user: "{{.Persona}}".
Your task is to revise the draft below to guarantee the highest quality and fidelity to the original material.

**Draft received:**
{{.Draft}}

**EDITING GUIDELINES:**
1.  **Clarity and coherence:** Improve clarity, flow and coherence while preserving the original meaning.
2.  **Correctness:** Fix grammar, spelling, punctuation and style errors.
3.  **Format:** Adjust the Markdown to keep headings consistent, paragraphs balanced and lists clear. Keep the ` + "`" + PageBreakTag + "`" + ` tags where they are.
4.  **Cleanup:** Remove any reference to authors, sources, tools or generation processes.
5.  **Final result:** Return only the final Markdown text, optimised and ready to be converted into a beautiful, professional ebook PDF.`

var (
	analysisTmpl = template.Must(template.New("analysis").Parse(analysisTemplate))
	draftTmpl    = template.Must(template.New("draft").Parse(draftTemplate))
	editTmpl     = template.Must(template.New("edit").Parse(editTemplate))
)

type promptData struct {
	Persona    string
	Text       string
	References string
	Summary    string
	Draft      string
}

func newPromptData(in Input) promptData {
	persona := strings.TrimSpace(in.Persona)
	if persona == "" {
		persona = DefaultPersona
	}
	return promptData{
		Persona:    persona,
		Text:       in.Text,
		References: ReferenceText(in.References),
	}
}

// ReferenceText joins the extracted fragments, or returns "None" when there are none.
func ReferenceText(fragments []string) string {
	joined := strings.TrimSpace(strings.Join(fragments, "\n"))
	if joined == "" {
		return noReferences
	}
	return joined
}

// BuildAnalysisPrompt asks for the bounded structural summary.
func BuildAnalysisPrompt(in Input) Prompt {
	return Prompt{
		Stage:  StageAnalysis,
		System: execute(analysisTmpl, newPromptData(in)),
		User:   "Summarize the material following the instructions above.",
	}
}

// BuildDraftPrompt asks for the full manuscript guided by summary.
func BuildDraftPrompt(in Input, summary string) Prompt {
	data := newPromptData(in)
	data.Summary = summary
	return Prompt{
		Stage:       StageDraft,
		System:      execute(draftTmpl, data),
		User:        "Produce the complete ebook following the instructions above faithfully.",
		Temperature: 0.7,
	}
}

// BuildEditPrompt asks for the revision pass over draft.
func BuildEditPrompt(in Input, draft string) Prompt {
	data := newPromptData(in)
	data.Draft = draft
	return Prompt{
		Stage:       StageEdit,
		System:      execute(editTmpl, data),
		User:        "Please revise the draft according to the guidelines.",
		Temperature: 0.1,
	}
}

func execute(t *template.Template, data promptData) string {
	var sb strings.Builder
	// the templates are fixed and only reference promptData fields
	if err := t.Execute(&sb, data); err != nil {
		panic(err)
	}
	return sb.String()
}
