package models

const (
	// ContextSeparator joins retrieved chunks inside the prompt context block.
	ContextSeparator = "\n\n---\n\n"
	AnswerCue        = "Answer:"

	DefaultChunkSize = 300 // words
	DefaultTopK      = 3
)

var (
	PromptTemplate = `Use the context below to answer the question.

Context:
%s

Question: %s
` + AnswerCue
)
