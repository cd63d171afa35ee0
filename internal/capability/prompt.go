package capability

import (
	"fmt"
	"strings"
)

// #region format

// FormatPrompt renders retrieved passages ahead of the prompt for providers
// that accept a single string. Empty context returns the prompt unchanged.
func FormatPrompt(prompt string, context []string) string {
	var passages []string
	for _, c := range context {
		if s := strings.TrimSpace(c); s != "" {
			passages = append(passages, s)
		}
	}
	if len(passages) == 0 {
		return prompt
	}

	var b strings.Builder
	b.WriteString("[Relevant Knowledge]\n")
	for i, p := range passages {
		fmt.Fprintf(&b, "%d. %s\n", i+1, p)
	}
	b.WriteString("\n")
	b.WriteString(prompt)
	return b.String()
}

// #endregion format
