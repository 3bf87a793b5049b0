// Package kpolicy implements the write-time policy engine: language
// detection, a universal denylist, per-language profile rules, and the
// intent co-requirement call into pkg/kintent. All patterns compile
// once at package init and are evaluated per write.
package kpolicy

import (
	"path/filepath"
	"strings"
)

// Language is the detected source language of a write target.
type Language string

const (
	LangRust       Language = "rust"
	LangTypeScript Language = "typescript"
	LangJavaScript Language = "javascript"
	LangPython     Language = "python"
	LangMarkdown   Language = "markdown"
	LangUnknown    Language = "unknown"
)

var extensionLanguage = map[string]Language{
	".rs":       LangRust,
	".ts":       LangTypeScript,
	".tsx":      LangTypeScript,
	".js":       LangJavaScript,
	".mjs":      LangJavaScript,
	".cjs":      LangJavaScript,
	".jsx":      LangJavaScript,
	".py":       LangPython,
	".pyi":      LangPython,
	".md":       LangMarkdown,
	".markdown": LangMarkdown,
}

// DetectLanguage classifies path by extension first, falling back to
// content heuristics when the extension is unrecognized.
func DetectLanguage(path, content string) Language {
	ext := strings.ToLower(filepath.Ext(path))
	if lang, ok := extensionLanguage[ext]; ok {
		return lang
	}
	return detectByContent(content)
}

func detectByContent(content string) Language {
	switch {
	case strings.Contains(content, "fn ") || strings.Contains(content, "impl "):
		return LangRust
	case strings.Contains(content, "def ") || strings.Contains(content, "import "):
		return LangPython
	default:
		return LangUnknown
	}
}
