package ktrust

import (
	"strings"

	"github.com/kaiza-dev/kaiza/pkg/kerr"
)

// manipulationPatterns are urgency/manipulation markers that, if found in
// approval-adjacent free text, must refuse the action rather than strip
// and continue.
// Lower-case; matching is case-insensitive.
var manipulationPatterns = []string{
	"urgent", "immediately", "right now", "asap", "act now",
	"do not tell", "don't tell", "don't verify", "do not verify",
	"trust me", "no time to", "before it's too late", "last chance",
	"everyone else already approved", "you'll be blamed", "your fault",
	"must approve now", "skip the review", "bypass the check",
}

// SanitizeApprovalText scans free text accompanying an approval action
// for urgency/manipulation language. It never silently strips — a match
// always refuses the action with LANGUAGE_MANIPULATION_DETECTED; the
// boundary refuses, never launders, manipulative input.
func SanitizeApprovalText(text string) error {
	lower := strings.ToLower(text)
	for _, pattern := range manipulationPatterns {
		if strings.Contains(lower, pattern) {
			return kerr.New(kerr.CodeLanguageManipulationDetected, "approval text contains a manipulation/urgency pattern: "+pattern)
		}
	}
	return nil
}
