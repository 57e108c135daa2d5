package task

import "strings"

// RenderPrompt expands the {name} and {description} placeholders of an
// image prompt template with the dish's fields. A dish without a
// description leaves a clean sentence rather than a dangling period.
func RenderPrompt(template, name, description string) string {
	prompt := strings.ReplaceAll(template, "{name}", strings.TrimSpace(name))
	prompt = strings.ReplaceAll(prompt, "{description}", strings.TrimSpace(description))

	// Collapse the artifacts an empty description leaves behind.
	prompt = strings.ReplaceAll(prompt, ". .", ".")
	prompt = strings.Join(strings.Fields(prompt), " ")

	return prompt
}
