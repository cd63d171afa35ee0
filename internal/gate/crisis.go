package gate

import (
	"regexp"
	"strings"
)

// DefaultEmergencyResponse is returned in place of a reply when crisis
// language is detected.
const DefaultEmergencyResponse = "I'm really concerned about what you've shared, and I want you to know you don't have to face this alone. " +
	"Please reach out for immediate support: call or text 988 (Suicide & Crisis Lifeline) or text HOME to 741741 (Crisis Text Line). " +
	"If you are in immediate danger, call 911 or your local emergency number."

// #region patterns
var suicidePatterns = compileAll(
	`\b(kill|end|take)\s+(my|own)\s+life\b`,
	`\bkill\s+myself\b`,
	`\b(commit|committing)\s+suicide\b`,
	`\bsuicid(e|al)\b`,
	`\bwant\s+to\s+die\b`,
	`\bdon'?t\s+want\s+to\s+live\b`,
)

var selfHarmPatterns = compileAll(
	`\b(cut|cutting|hurt|harm)\s+(myself|my)\b`,
	`\bself[\s-]harm\b`,
	`\b(cutting|burning|hitting)\s+myself\b`,
)

func compileAll(exprs ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(exprs))
	for i, e := range exprs {
		out[i] = regexp.MustCompile(e)
	}
	return out
}

// #endregion patterns

// #region detector
// crisisDetector checks pattern families in order: suicide, self-harm,
// configured keywords. First match wins.
type crisisDetector struct {
	keywords []string
}

func newCrisisDetector(keywords []string) *crisisDetector {
	lowered := make([]string, 0, len(keywords))
	for _, k := range keywords {
		if k = strings.ToLower(strings.TrimSpace(k)); k != "" {
			lowered = append(lowered, k)
		}
	}
	return &crisisDetector{keywords: lowered}
}

func (d *crisisDetector) detect(text string) CrisisType {
	lower := strings.ToLower(text)
	for _, p := range suicidePatterns {
		if p.MatchString(lower) {
			return CrisisSuicide
		}
	}
	for _, p := range selfHarmPatterns {
		if p.MatchString(lower) {
			return CrisisSelfHarm
		}
	}
	for _, k := range d.keywords {
		if strings.Contains(lower, k) {
			return CrisisKeywordMatch
		}
	}
	return CrisisNone
}

// #endregion detector

// #region resources
// EmergencyResources returns the crisis hotline directory.
func EmergencyResources() string {
	return strings.Join([]string{
		"EMERGENCY RESOURCES:",
		"",
		"If you're in immediate danger:",
		"- Call 911 (US) or your local emergency number",
		"",
		"Crisis Support:",
		"- National Suicide Prevention Lifeline: 988 or 1-800-273-8255",
		"- Crisis Text Line: Text HOME to 741741",
		"- International Association for Suicide Prevention: https://www.iasp.info/resources/Crisis_Centres/",
		"",
		"Remember: You don't have to face this alone. Professional help is available 24/7.",
	}, "\n")
}

// #endregion resources
