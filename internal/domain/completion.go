package domain

// CompletionParams are the inference settings for one generative-text call.
type CompletionParams struct {
	MaxTokens     int
	Temperature   float32
	TopP          float32
	StopSequences []string
}
