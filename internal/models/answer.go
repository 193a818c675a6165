package models

// Answer is the text produced by the generator for one prompt.
// Empty is set when the remote API answered successfully but returned no
// candidates; it is not an error.
type Answer struct {
	Content      string
	Model        string
	FinishReason string
	Empty        bool
}

type PromptResponse struct {
	Query   string
	Sources []string
	Content string
	Empty   bool
}
