package kpolicy

import (
	"testing"

	"github.com/kaiza-dev/kaiza/pkg/kerr"
	"github.com/kaiza-dev/kaiza/pkg/kpath"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine(t *testing.T) (*Engine, string) {
	t.Helper()
	dir := t.TempDir()
	r := kpath.New()
	root, err := r.Lock(dir)
	require.NoError(t, err)
	return NewEngine(r), root
}

func baseRequest(root string) Request {
	return Request{
		WorkspaceRoot: root,
		Role:          "EXECUTION",
		SessionID:     "s1",
		ToolName:      "write_file",
		PlanHash:      "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcd",
		PhaseID:       "PHASE_1",
		Operation:     OpCreate,
		Path:          "docs/reports/x.md",
		ContentBytes:  "hello\n",
		ContentHash:   "deadbeef",
		ContentLength: 6,
	}
}

func TestCheckPassesCleanReportWrite(t *testing.T) {
	e, root := newTestEngine(t)
	req := baseRequest(root)
	report, err := e.Check(req)
	require.NoError(t, err)
	assert.Equal(t, VerdictPass, report.Verdict)
}

func TestCheckRefusesMissingField(t *testing.T) {
	e, root := newTestEngine(t)
	req := baseRequest(root)
	req.PlanHash = ""
	_, err := e.Check(req)
	require.Error(t, err)
	var env *kerr.Envelope
	require.ErrorAs(t, err, &env)
	assert.Equal(t, kerr.CodeMissingRequiredField, env.ErrorCode)
}

func TestCheckRefusesPathEscape(t *testing.T) {
	e, root := newTestEngine(t)
	req := baseRequest(root)
	req.Path = "../outside.md"
	_, err := e.Check(req)
	require.Error(t, err)
	var env *kerr.Envelope
	require.ErrorAs(t, err, &env)
	assert.Equal(t, kerr.CodePathTraversalBlocked, env.ErrorCode)
}

func TestCheckRefusesUniversalDenylistHit(t *testing.T) {
	e, root := newTestEngine(t)
	req := baseRequest(root)
	req.ContentBytes = "// TODO: fix this\n"
	req.ContentLength = len(req.ContentBytes)
	_, err := e.Check(req)
	require.Error(t, err)
	var env *kerr.Envelope
	require.ErrorAs(t, err, &env)
	assert.Equal(t, kerr.CodePolicyViolation, env.ErrorCode)
}

func TestCheckRefusesRustProfileHit(t *testing.T) {
	e, root := newTestEngine(t)
	req := baseRequest(root)
	req.Path = "docs/reports/a.rs"
	req.ContentBytes = "fn main() { x.unwrap(); }\n"
	req.ContentLength = len(req.ContentBytes)
	_, err := e.Check(req)
	require.Error(t, err)
	var env *kerr.Envelope
	require.ErrorAs(t, err, &env)
	assert.Equal(t, kerr.CodeRustPolicyViolation, env.ErrorCode)
	assert.Equal(t, string(InvariantRustRealityLock), env.InvariantID)
}

func TestCheckRequiresIntentArtifactForNonExemptPath(t *testing.T) {
	e, root := newTestEngine(t)
	req := baseRequest(root)
	req.Path = "src/a.txt"
	_, err := e.Check(req)
	require.Error(t, err)
	var env *kerr.Envelope
	require.ErrorAs(t, err, &env)
	assert.Equal(t, kerr.CodeIntentArtifactMissing, env.ErrorCode)
}

func TestDetectLanguageByExtensionAndContent(t *testing.T) {
	assert.Equal(t, LangRust, DetectLanguage("a.rs", ""))
	assert.Equal(t, LangTypeScript, DetectLanguage("a.ts", ""))
	assert.Equal(t, LangUnknown, DetectLanguage("a.xyz", "plain text"))
	assert.Equal(t, LangRust, DetectLanguage("a.xyz", "fn main() {}"))
	assert.Equal(t, LangPython, DetectLanguage("a.xyz", "def f():\n    pass\n"))
}
