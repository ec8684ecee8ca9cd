package evaluation

// Case is one scripted scenario an evaluation run executes against a
// model. Input carries the template variables; ExpectedOutput, when
// set, is scored against the completion.
type Case struct {
	ID             string            `json:"id"`
	Input          map[string]string `json:"input_data"`
	ExpectedOutput string            `json:"expected_output,omitempty"`
	ExpectedTokens int               `json:"expected_tokens,omitempty"`
	MaxLatencyMs   float64           `json:"max_latency_ms,omitempty"`
	Category       string            `json:"category,omitempty"`
	Difficulty     string            `json:"difficulty,omitempty"`
}

// defaultCases are the scenarios every evaluator starts with, one per
// supported prompt category plus a hard open-ended one.
func defaultCases() []*Case {
	return []*Case{
		{
			ID: "chat_001",
			Input: map[string]string{
				"context":  "Hello, how are you?",
				"question": "Can you help me with a question?",
			},
			ExpectedOutput: "friendly and helpful",
			Category:       "chat",
			Difficulty:     "easy",
		},
		{
			ID: "summarization_001",
			Input: map[string]string{
				"text": "A long text about artificial intelligence and machine learning. The technology is evolving quickly and is used in many areas.",
			},
			ExpectedTokens: 50,
			Category:       "summarization",
			Difficulty:     "medium",
		},
		{
			ID: "translation_001",
			Input: map[string]string{
				"source_language": "German",
				"target_language": "English",
				"text":            "Guten Tag, wie geht es Ihnen?",
			},
			ExpectedOutput: "Good day, how are you?",
			Category:       "translation",
			Difficulty:     "easy",
		},
		{
			ID: "complex_001",
			Input: map[string]string{
				"context":  "A complex technical problem",
				"question": "Explain the differences between machine learning algorithms",
			},
			MaxLatencyMs: 5000,
			Category:     "complex_qa",
			Difficulty:   "hard",
		},
	}
}

// Canned completions stand in for real model calls so evaluation runs
// stay deterministic and free.
var simulatedCompletions = map[string]string{
	"chat":          "Hello! Happy to help with your question. What would you like to know?",
	"summarization": "A text about AI and machine learning that evolves quickly and sees broad use.",
	"translation":   "Good day, how are you?",
}

const defaultCompletion = "This is a simulated response for the test case."

func simulatedCompletion(category string) string {
	if out, ok := simulatedCompletions[category]; ok {
		return out
	}
	return defaultCompletion
}
