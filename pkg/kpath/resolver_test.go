package kpath

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/kaiza-dev/kaiza/pkg/kerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLockRejectsRelativePath(t *testing.T) {
	r := New()
	_, err := r.Lock("relative/path")
	require.Error(t, err)
	var env *kerr.Envelope
	require.ErrorAs(t, err, &env)
	assert.Equal(t, kerr.CodeInvalidPath, env.ErrorCode)
}

func TestLockTwiceFails(t *testing.T) {
	dir := t.TempDir()
	r := New()
	_, err := r.Lock(dir)
	require.NoError(t, err)

	_, err = r.Lock(dir)
	require.Error(t, err)
	var env *kerr.Envelope
	require.ErrorAs(t, err, &env)
	assert.Equal(t, kerr.CodeSessionAlreadyInitialized, env.ErrorCode)
}

func TestResolveWriteTargetRejectsEscape(t *testing.T) {
	dir := t.TempDir()
	r := New()
	_, err := r.Lock(dir)
	require.NoError(t, err)

	_, err = r.ResolveWriteTarget("../outside.txt")
	require.Error(t, err)
	var env *kerr.Envelope
	require.ErrorAs(t, err, &env)
	assert.Equal(t, kerr.CodePathTraversalBlocked, env.ErrorCode)
}

func TestResolveWriteTargetAcceptsNested(t *testing.T) {
	dir := t.TempDir()
	r := New()
	root, err := r.Lock(dir)
	require.NoError(t, err)

	resolved, err := r.ResolveWriteTarget("src/a.txt")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "src", "a.txt"), resolved)
}

func TestResolveWriteTargetBeforeLockFails(t *testing.T) {
	r := New()
	_, err := r.ResolveWriteTarget("a.txt")
	require.Error(t, err)
	var env *kerr.Envelope
	require.ErrorAs(t, err, &env)
	assert.Equal(t, kerr.CodeSessionNotInitialized, env.ErrorCode)
}

func TestResolvePlanPathRejectsBadHash(t *testing.T) {
	dir := t.TempDir()
	r := New()
	_, err := r.Lock(dir)
	require.NoError(t, err)

	_, err = r.ResolvePlanPath("not-a-hash")
	require.Error(t, err)
}

func TestResolvePlanPathAccepts64Hex(t *testing.T) {
	dir := t.TempDir()
	r := New()
	_, err := r.Lock(dir)
	require.NoError(t, err)

	hash := "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"
	p, err := r.ResolvePlanPath(hash)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "docs", "plans", hash+".md"), p)
}

func TestLockResolvesSymlinks(t *testing.T) {
	base := t.TempDir()
	real := filepath.Join(base, "real")
	require.NoError(t, os.Mkdir(real, 0o755))
	link := filepath.Join(base, "link")
	require.NoError(t, os.Symlink(real, link))

	r := New()
	root, err := r.Lock(link)
	require.NoError(t, err)
	assert.Equal(t, real, root)
}
