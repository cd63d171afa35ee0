package reasoning

import "fmt"

// #region prompts
func analysisPrompt(query string) string {
	return fmt.Sprintf(`Analyze this therapeutic situation step by step:

User's message: %s

Consider:
1. What emotions might the person be experiencing?
2. What are the underlying concerns or needs?
3. Are there any crisis indicators?
4. What would be most helpful right now?

Provide a brief analysis:`, query)
}

func responsePrompt(query, needs string) string {
	return fmt.Sprintf(`User's message: %s

Therapeutic needs identified: %s

Provide a compassionate, empathetic response that addresses these needs.`, query, needs)
}

func critiquePrompt(response, needs string) string {
	return fmt.Sprintf(`Evaluate this therapeutic response:

Response: %s

Needs to address: %s

Critique checklist:
- Is it empathetic and validating?
- Does it address the identified needs?
- Is it safe and appropriate?
- Is it actionable if needed?
- Does it maintain boundaries?

Provide brief critique:`, response, needs)
}

func refinementPrompt(initial, critique, needs string) string {
	return fmt.Sprintf(`Original response: %s

Critique: %s

Needs: %s

Provide an improved response that addresses the critique:`, initial, critique, needs)
}

// #endregion prompts
