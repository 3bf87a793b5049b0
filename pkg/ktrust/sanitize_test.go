package ktrust_test

import (
	"testing"

	"github.com/kaiza-dev/kaiza/pkg/ktrust"
	"github.com/stretchr/testify/assert"
)

func TestSanitizeApprovalText_AllowsCleanText(t *testing.T) {
	err := ktrust.SanitizeApprovalText("Reviewed the diff and the intent artifact; approving phase 2.")
	assert.NoError(t, err)
}

func TestSanitizeApprovalText_RefusesUrgencyLanguage(t *testing.T) {
	err := ktrust.SanitizeApprovalText("Please approve this immediately, there is no time to review.")
	assert.Error(t, err)
}

func TestSanitizeApprovalText_RefusesPressureLanguage(t *testing.T) {
	err := ktrust.SanitizeApprovalText("Everyone else already approved this, just sign off.")
	assert.Error(t, err)
}
