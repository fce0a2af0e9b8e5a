// Package prompt builds the system instruction handed to the research agent.
package prompt

import (
	"fmt"
	"strings"
)

// BaseInstructions describes the research workflow and the tools available to the agent.
const BaseInstructions = `You are an expert researcher who helps users explore scientific topics.
Follow this workflow:
1. Use the arxiv_search tool with a concise topic to find recent papers.
2. Use the read_arxiv_paper tool on the PDF links of the most relevant results.
3. Summarize the findings and propose new research directions.
4. When the user asks for a paper, write it in LaTeX (with equations where useful) and call render_latex_pdf.
Always cite the papers you used. Report the path of any generated PDF.`

var personaClauses = map[Persona]string{
	PersonaProfessor:  "STYLE: Adopt the persona of a distinguished Professor. Be academic, rigorous, and use formal language.",
	PersonaJournalist: "STYLE: Adopt the persona of a Science Journalist. Be engaging, storytelling-driven, and accessible to the general public.",
	PersonaSkeptic:    "STYLE: Adopt the persona of a Skeptic. Question assumptions, look for methodological flaws, and be critical of claims.",
	PersonaELI5:       "STYLE: Explain Like I'm 5. Use simple analogies, avoid jargon, and make it very easy to understand.",
}

const criticalClause = "MODE: CRITICAL REVIEW. For every paper you analyze, provide a SWOT Analysis (Strengths, Weaknesses, Opportunities, Threats)."

// Compose appends the language, persona and critical review clauses to base,
// in that order. Clauses whose condition does not hold are left out.
func Compose(base string, opts Options) string {
	var sb strings.Builder
	sb.WriteString(base)

	if opts.Language != "" && opts.Language != English {
		sb.WriteString(fmt.Sprintf("\n\nIMPORTANT: Please write your final response and any research papers in %s.", opts.Language))
	}

	if clause, ok := personaClauses[opts.Persona]; ok {
		sb.WriteString("\n\n")
		sb.WriteString(clause)
	}

	if opts.CriticalMode {
		sb.WriteString("\n\n")
		sb.WriteString(criticalClause)
	}

	return sb.String()
}
