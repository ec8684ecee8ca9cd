package prompts

// builtinTemplates back Render when no stored version exists for a
// name. Seed tooling registers proper versions of these on first run.
var builtinTemplates = map[string]string{
	"chatbot":       "You are a helpful assistant. Context: {context}\n\nQuestion: {question}\n\nAnswer:",
	"summarization": "Summarize the following text:\n\n{text}\n\nSummary:",
	"translation":   "Translate the following text from {source_language} to {target_language}:\n\n{text}\n\nTranslation:",
}

// BuiltinNames lists the template names with a builtin fallback.
func BuiltinNames() []string {
	names := make([]string, 0, len(builtinTemplates))
	for name := range builtinTemplates {
		names = append(names, name)
	}
	return names
}

// BuiltinTemplate returns the fallback text for a name, if any.
func BuiltinTemplate(name string) (string, bool) {
	text, ok := builtinTemplates[name]
	return text, ok
}
