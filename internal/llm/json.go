package llm

import "strings"

// ExtractJSON trims an LLM reply down to the outermost JSON object it
// carries, dropping markdown fences and surrounding prose. Text without an
// object comes back trimmed so the caller's decoder reports the failure.
func ExtractJSON(text string) string {
	text = strings.TrimSpace(text)
	open := strings.IndexByte(text, '{')
	closing := strings.LastIndexByte(text, '}')
	if open < 0 || closing < open {
		return text
	}
	return text[open : closing+1]
}
