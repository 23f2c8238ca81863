package retry

// TruncationMarker is appended to inputs cut down to the character budget.
const TruncationMarker = "\n...[text truncated due to length limit]"

// DefaultInputBudget is the character budget for generative-text inputs.
const DefaultInputBudget = 8000

// Truncate cuts text to at most budget characters and appends TruncationMarker.
// The second return value reports whether anything was cut.
func Truncate(text string, budget int) (string, bool) {
	if budget <= 0 {
		budget = DefaultInputBudget
	}

	runes := []rune(text)
	if len(runes) <= budget {
		return text, false
	}
	return string(runes[:budget]) + TruncationMarker, true
}
