// Package prompt builds the text sent to the completion model.
package prompt

import "strings"

const (
	contextHeader  = "Previous relevant conversations:"
	questionPrefix = "Current question: "
)

// Assemble combines the question with previously seen messages. Without any
// similar messages the question is returned verbatim.
func Assemble(question string, similar []string) string {
	if len(similar) == 0 {
		return question
	}
	var b strings.Builder
	b.WriteString(contextHeader)
	for _, s := range similar {
		b.WriteString("\n- ")
		b.WriteString(s)
	}
	b.WriteString("\n\n")
	b.WriteString(questionPrefix)
	b.WriteString(question)
	return b.String()
}
