package openai

import "strings"

const systemPrompt = `You are an assistant for supply-chain greenhouse gas emission factors published per NAICS industry code.

Answer the question using only the emission records given in the context. Each record lists the NAICS code,
industry title, greenhouse gas, unit, the emission factor without margins, the margin, and the factor with margins.

Rules:
- Quote factor values and units exactly as they appear in the context.
- When several records match, name each NAICS code you rely on.
- Prefer the factor with margins when asked for "the" emission factor, and say so.
- If the context does not contain the answer, say that the records provided do not cover it. Do not guess.
- Keep the answer short: two to five sentences.`

// buildUserPrompt lays out the retrieved context followed by the question.
func buildUserPrompt(question, context string) string {
	var b strings.Builder
	b.WriteString("Context:\n")
	if strings.TrimSpace(context) == "" {
		b.WriteString("(no matching records)\n")
	} else {
		b.WriteString(context)
		if !strings.HasSuffix(context, "\n") {
			b.WriteByte('\n')
		}
	}
	b.WriteString("\nQuestion: ")
	b.WriteString(question)
	b.WriteString("\nAnswer:")
	return b.String()
}
