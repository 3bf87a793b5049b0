package kpolicy

import "regexp"

// Category groups a rule for reporting.
type Category string

const (
	CategoryPlaceholder   Category = "Placeholder"
	CategorySilentFailure Category = "Silent failure"
	CategoryDebugBypass   Category = "Debug bypass"
	CategoryLanguage      Category = "Language profile"
)

// InvariantID is the stable invariant tag attached to a violation.
type InvariantID string

const (
	InvariantNoPlaceholders  InvariantID = "NO_PLACEHOLDERS_NO_FALLBACKS"
	InvariantRustRealityLock InvariantID = "RUST_REALITY_LOCK"
	InvariantDeterminism     InvariantID = "DETERMINISM_REQUIRED"
	InvariantMandatoryIntent InvariantID = "MANDATORY_INTENT"
)

// Rule is one compiled pattern the write-time engine checks content
// against.
type Rule struct {
	Pattern   *regexp.Regexp
	Category  Category
	Invariant InvariantID
	Label     string
}

// universalDenylist applies to every language.
var universalDenylist = []Rule{
	{regexp.MustCompile(`\bTODO\b`), CategoryPlaceholder, InvariantNoPlaceholders, "TODO"},
	{regexp.MustCompile(`\bFIXME\b`), CategoryPlaceholder, InvariantNoPlaceholders, "FIXME"},
	{regexp.MustCompile(`\bXXX\b`), CategoryPlaceholder, InvariantNoPlaceholders, "XXX"},
	{regexp.MustCompile(`(?m)^\s*pass\s*$`), CategoryPlaceholder, InvariantNoPlaceholders, "bare pass"},
	{regexp.MustCompile(`catch\s*\(\s*\w*\s*\)\s*\{\s*\}`), CategorySilentFailure, InvariantNoPlaceholders, "empty catch"},
	{regexp.MustCompile(`\.catch\(\s*\(\s*\)\s*=>\s*\{\s*\}\s*\)`), CategorySilentFailure, InvariantNoPlaceholders, ".catch(() => {})"},
	{regexp.MustCompile(`unwrap_or\(`), CategorySilentFailure, InvariantNoPlaceholders, "unwrap_or("},
	{regexp.MustCompile(`unwrap_or_default`), CategorySilentFailure, InvariantNoPlaceholders, "unwrap_or_default"},
	{regexp.MustCompile(`\borElse\b`), CategorySilentFailure, InvariantNoPlaceholders, "orElse"},
	{regexp.MustCompile(`\bgetOrElse\b`), CategorySilentFailure, InvariantNoPlaceholders, "getOrElse"},
	{regexp.MustCompile(`console\.log\(`), CategoryDebugBypass, InvariantDeterminism, "console.log("},
	{regexp.MustCompile(`assert\(false\)`), CategoryDebugBypass, InvariantDeterminism, "assert(false)"},
}

// languageProfiles applies on top of the universal denylist for
// recognized languages only.
var languageProfiles = map[Language][]Rule{
	LangRust: {
		{regexp.MustCompile(`\.unwrap\(\)`), CategoryLanguage, InvariantRustRealityLock, "unwrap()"},
		{regexp.MustCompile(`\.expect\(`), CategoryLanguage, InvariantRustRealityLock, "expect("},
		{regexp.MustCompile(`panic!`), CategoryLanguage, InvariantRustRealityLock, "panic!"},
		{regexp.MustCompile(`todo!`), CategoryLanguage, InvariantRustRealityLock, "todo!"},
		{regexp.MustCompile(`unimplemented!`), CategoryLanguage, InvariantRustRealityLock, "unimplemented!"},
		{regexp.MustCompile(`unsafe\s*\{`), CategoryLanguage, InvariantRustRealityLock, "unsafe {"},
		{regexp.MustCompile(`static mut`), CategoryLanguage, InvariantRustRealityLock, "static mut"},
		{regexp.MustCompile(`Box::leak\(`), CategoryLanguage, InvariantRustRealityLock, "Box::leak("},
		{regexp.MustCompile(`#\[allow\(`), CategoryLanguage, InvariantRustRealityLock, "#[allow(...)]"},
	},
	LangTypeScript: {
		{regexp.MustCompile(`:\s*any\b`), CategoryLanguage, InvariantDeterminism, ": any"},
		{regexp.MustCompile(`@ts-ignore`), CategoryLanguage, InvariantDeterminism, "@ts-ignore"},
		{regexp.MustCompile(`Math\.random\(\)`), CategoryLanguage, InvariantDeterminism, "Math.random()"},
		{regexp.MustCompile(`Date\.now\(\)`), CategoryLanguage, InvariantDeterminism, "Date.now()"},
	},
	LangPython: {
		{regexp.MustCompile(`import random`), CategoryLanguage, InvariantDeterminism, "import random"},
		{regexp.MustCompile(`from random import`), CategoryLanguage, InvariantDeterminism, "from random import"},
		{regexp.MustCompile(`import time`), CategoryLanguage, InvariantDeterminism, "import time"},
		{regexp.MustCompile(`time\.time\(\)`), CategoryLanguage, InvariantDeterminism, "time.time()"},
		{regexp.MustCompile(`(?m)^\s*except\s*:\s*$`), CategoryLanguage, InvariantDeterminism, "bare except:"},
	},
}

// JavaScript shares the TypeScript profile.
func init() {
	languageProfiles[LangJavaScript] = languageProfiles[LangTypeScript]
}
