package summarize

import "speaker-transcriber/internal/domain"

// Kind selects a summary prompt.
type Kind string

const (
	KindSummary     Kind = "summary"
	KindAnalysis    Kind = "analysis"
	KindActionItems Kind = "action_items"
	KindMinutes     Kind = "minutes"
	KindSentiment   Kind = "sentiment"
)

var stopSequences = []string{"User:"}

// profile pairs an instruction with its inference settings.
type profile struct {
	kind        Kind
	instruction string
	params      domain.CompletionParams
}

var profiles = []profile{
	{
		kind: KindSummary,
		instruction: "Write a detailed summary of the conversation below.\n\n" +
			"1. Briefly describe each speaker (for example SPEAKER_00: role, speaking style, topics).\n" +
			"2. Summarize the main topics, key decisions and agreements, important information, " +
			"action items or next steps, and the overall tone.\n\n" +
			"Use paragraphs of three to four sentences in a clear, professional style.",
		params: domain.CompletionParams{MaxTokens: 2048, Temperature: 0.7, TopP: 0.9, StopSequences: stopSequences},
	},
	{
		kind: KindAnalysis,
		instruction: "Extract structured information from the conversation below using these sections:\n\n" +
			"CONVERSATION DETAILS: date or time if mentioned, estimated duration, type, language.\n" +
			"PARTICIPANTS: each speaker with a name if mentioned, otherwise a description.\n" +
			"MAIN TOPICS: primary topic, secondary topics, keywords.\n" +
			"KEY INFORMATION: decisions, action items, dates, contact details, references.\n" +
			"CONVERSATION TONE: mood, relationship between speakers, purpose.",
		params: domain.CompletionParams{MaxTokens: 2048, Temperature: 0.5, TopP: 0.8, StopSequences: stopSequences},
	},
	{
		kind: KindActionItems,
		instruction: "List every action item, task, and follow-up in the conversation below.\n\n" +
			"ACTION ITEMS: task - assigned to - deadline.\n" +
			"FOLLOW-UP MEETINGS: description - date - participants.\n" +
			"DEADLINES AND IMPORTANT DATES: date - what is due.\n" +
			"CONTACTS TO FOLLOW UP: name - contact details - reason.\n\n" +
			"Write 'None identified' for any empty section.",
		params: domain.CompletionParams{MaxTokens: 1024, Temperature: 0.3, TopP: 0.7, StopSequences: stopSequences},
	},
	{
		kind: KindMinutes,
		instruction: "Write professional meeting minutes for the conversation below with these sections:\n\n" +
			"MEETING MINUTES: date, participants, estimated duration.\n" +
			"AGENDA ITEMS DISCUSSED: per topic the discussion points, decisions, and action items.\n" +
			"DECISIONS MADE.\n" +
			"ACTION ITEMS: item - responsible person - due date.\n" +
			"NEXT STEPS.",
		params: domain.CompletionParams{MaxTokens: 2048, Temperature: 0.4, TopP: 0.8, StopSequences: stopSequences},
	},
	{
		kind: KindSentiment,
		instruction: "Analyze the emotional tone of the conversation below.\n\n" +
			"MOOD ANALYSIS: overall tone (positive, neutral, negative), formality, emotional intensity.\n" +
			"EACH SPEAKER'S MOOD: one line per speaker label.\n" +
			"KEY MOMENTS: notable shifts in mood and what caused them.",
		params: domain.CompletionParams{MaxTokens: 2048, Temperature: 0.6, TopP: 0.8, StopSequences: stopSequences},
	},
}
