package domain

import (
	"path"
	"regexp"
	"strings"
)

// Extractor turns free-form round output into candidate file paths. The
// default implementation is regex-based and heuristic; stricter or
// format-specific extractors can be substituted without touching the
// orchestrator.
type Extractor interface {
	Extract(text string) []string
}

// RegexExtractor scans text for the common ways agents mention files:
// path:line references, fenced code block info strings, import/require
// statements, and explicit "file:"/"path:" mentions.
type RegexExtractor struct{}

var (
	// The leading boundary class stops matches from starting mid-URL or
	// mid-identifier (RE2 has no lookbehind).
	pathLinePattern   = regexp.MustCompile(`(?:^|[\s("'` + "`" + `])([A-Za-z0-9_][A-Za-z0-9_./-]*\.[A-Za-z0-9]{1,8}):\d+`)
	fencedPattern     = regexp.MustCompile("(?m)^```[a-z]*[ \\t]+([A-Za-z0-9_][A-Za-z0-9_./-]*\\.[A-Za-z0-9]{1,8})[ \\t]*$")
	importPattern     = regexp.MustCompile(`(?m)(?:import|require|from|include)\s*\(?\s*['"]([^'"\s]+)['"]`)
	mentionPattern    = regexp.MustCompile(`(?i)(?:file|path):\s*` + "`?" + `([A-Za-z0-9_][A-Za-z0-9_./-]*\.[A-Za-z0-9]{1,8})`)
	lockfileSuffixes  = []string{"package-lock.json", "yarn.lock", "pnpm-lock.yaml", "go.sum", "cargo.lock", "gemfile.lock", "poetry.lock", "composer.lock"}
	candidateMinChars = 4
	candidateMaxChars = 200
)

// Extract returns deduplicated candidate paths in first-mention order.
func (RegexExtractor) Extract(text string) []string {
	seen := map[string]struct{}{}
	var out []string
	add := func(candidate string) {
		candidate = strings.TrimSpace(candidate)
		if !plausiblePath(candidate) {
			return
		}
		if _, dup := seen[candidate]; dup {
			return
		}
		seen[candidate] = struct{}{}
		out = append(out, candidate)
	}

	for _, pattern := range []*regexp.Regexp{pathLinePattern, fencedPattern, importPattern, mentionPattern} {
		for _, match := range pattern.FindAllStringSubmatch(text, -1) {
			add(match[len(match)-1])
		}
	}
	return out
}

// plausiblePath filters the obvious false positives: URLs, lockfiles,
// anything under .git, too-short or too-long strings, and extensionless
// candidates.
func plausiblePath(candidate string) bool {
	if len(candidate) < candidateMinChars || len(candidate) > candidateMaxChars {
		return false
	}
	if strings.Contains(candidate, "://") {
		return false
	}
	if strings.HasPrefix(candidate, ".git/") || strings.Contains(candidate, "/.git/") {
		return false
	}
	lower := strings.ToLower(candidate)
	for _, suffix := range lockfileSuffixes {
		if strings.HasSuffix(lower, suffix) {
			return false
		}
	}
	ext := path.Ext(candidate)
	if ext == "" || ext == "." {
		return false
	}
	return true
}

// referencePattern matches declared dependencies inside file content:
// import/require/from/include statements across the common languages the
// review targets.
var referencePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?m)^\s*import\s+.*?from\s+['"]([^'"\s]+)['"]`),
	regexp.MustCompile(`(?m)^\s*import\s+['"]([^'"\s]+)['"]`),
	regexp.MustCompile(`(?m)require\s*\(\s*['"]([^'"\s]+)['"]\s*\)`),
	regexp.MustCompile(`(?m)^\s*from\s+([A-Za-z0-9_.]+)\s+import\b`),
	regexp.MustCompile(`(?m)^\s*#include\s+["<]([^">\s]+)[">]`),
}

// ExtractReferences pulls declared outgoing dependency references from a
// file's content. References are returned in first-mention order without
// duplicates; they may be relative paths or opaque package names.
func ExtractReferences(content string) []string {
	seen := map[string]struct{}{}
	var out []string
	for _, pattern := range referencePatterns {
		for _, match := range pattern.FindAllStringSubmatch(content, -1) {
			ref := strings.TrimSpace(match[1])
			if ref == "" {
				continue
			}
			if _, dup := seen[ref]; dup {
				continue
			}
			seen[ref] = struct{}{}
			out = append(out, ref)
		}
	}
	return out
}
