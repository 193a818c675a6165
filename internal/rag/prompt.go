package rag

import (
	"fmt"
	"strings"

	"pdf-rag/internal/models"
)

// BuildPrompt joins the chunks in the given order and fills the question
// template. The result always ends with models.AnswerCue.
func BuildPrompt(query string, chunks []string) string {
	return fmt.Sprintf(models.PromptTemplate, strings.Join(chunks, models.ContextSeparator), query)
}
