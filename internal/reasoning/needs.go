package reasoning

import "strings"

// #region needs
var (
	distressWords  = []string{"sad", "angry", "anxious", "worried", "scared", "frustrated", "hopeless"}
	questionWords  = []string{"how", "what", "why", "when", "where"}
	copingWords    = []string{"help", "cope", "manage", "deal with"}
	crisisWords    = []string{"suicide", "kill", "harm", "hurt myself", "end it"}
	feelingWords   = []string{"feel", "feeling", "felt"}
	reflectEmpathy = []string{"understand", "hear", "feel", "valid", "makes sense"}
	reflectActions = []string{"try", "consider", "might", "could", "suggest"}
	refineTriggers = []string{"needs improvement", "consider"}
)

// AssessNeeds classifies a message by keyword presence. Feeling words add
// empathy_and_support alongside any other need; a message that fires no
// rule gets general_support.
func AssessNeeds(query string) []Need {
	lower := strings.ToLower(query)
	var needs []Need
	if containsAny(lower, distressWords) {
		needs = append(needs, NeedEmotionalValidation)
	}
	if strings.Contains(query, "?") || containsAny(lower, questionWords) {
		needs = append(needs, NeedInformation)
	}
	if containsAny(lower, copingWords) {
		needs = append(needs, NeedCopingStrategies)
	}
	if containsAny(lower, crisisWords) {
		needs = append(needs, NeedCrisisSupport)
	}
	if containsAny(lower, feelingWords) {
		needs = append(needs, NeedEmpathyAndSupport)
	}
	if len(needs) == 0 {
		needs = append(needs, NeedGeneralSupport)
	}
	return needs
}

func joinNeeds(needs []Need) string {
	parts := make([]string, len(needs))
	for i, n := range needs {
		parts[i] = string(n)
	}
	return strings.Join(parts, ", ")
}

// #endregion needs

// #region reflect
// Reflect annotates a final response without changing it.
func Reflect(response string) string {
	lower := strings.ToLower(response)
	var notes []string
	if containsAny(lower, reflectEmpathy) {
		notes = append(notes, "Response shows empathy")
	}
	if containsAny(lower, reflectActions) {
		notes = append(notes, "Provides actionable suggestions")
	}
	switch words := len(strings.Fields(response)); {
	case words < 50:
		notes = append(notes, "May be too brief")
	case words <= 200:
		notes = append(notes, "Appropriate length")
	default:
		notes = append(notes, "May be too lengthy")
	}
	return strings.Join(notes, "; ")
}

// needsRefinement reports whether a critique asks for another pass.
func needsRefinement(critique string) bool {
	return containsAny(strings.ToLower(critique), refineTriggers)
}

// #endregion reflect

func containsAny(text string, terms []string) bool {
	for _, t := range terms {
		if strings.Contains(text, t) {
			return true
		}
	}
	return false
}
