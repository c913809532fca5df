package app

import (
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/louisbranch/crosscheck/internal/services/review/domain"
)

const (
	// collectorMaxFiles bounds the base context collected at session start.
	collectorMaxFiles = 30
	// collectorMaxFileBytes bounds how much of any single file is kept.
	collectorMaxFileBytes = 128 * 1024
	// collectorMaxDiscoveredPerRound bounds how many referenced files a
	// single round may pull into context.
	collectorMaxDiscoveredPerRound = 10
)

// skipDirs are directory names never descended into during collection.
var skipDirs = map[string]struct{}{
	".git":         {},
	"node_modules": {},
	"vendor":       {},
	"dist":         {},
	"build":        {},
	"target":       {},
	"__pycache__":  {},
	".venv":        {},
}

// sourceExtensions are the file extensions eligible for base collection.
var sourceExtensions = map[string]struct{}{
	".go": {}, ".ts": {}, ".tsx": {}, ".js": {}, ".jsx": {},
	".py": {}, ".rs": {}, ".rb": {}, ".java": {}, ".c": {}, ".h": {},
	".cpp": {}, ".cs": {}, ".php": {}, ".sql": {}, ".sh": {},
	".md": {}, ".json": {}, ".yaml": {}, ".yml": {}, ".toml": {},
}

// collectBaseContext walks the working directory and loads eligible source
// files into the session context as the base layer. Collection is bounded
// and skip-on-failure: unreadable paths are recorded and skipped, never
// fatal. A missing or empty working directory yields an empty context, which
// is a valid requirement-only review.
func (s *Service) collectBaseContext(session *domain.Session) (skipped []string) {
	root := session.WorkingDir
	if root == "" {
		return nil
	}

	walkErr := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			skipped = append(skipped, p)
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if _, skip := skipDirs[d.Name()]; skip && p != root {
				return fs.SkipDir
			}
			if strings.HasPrefix(d.Name(), ".") && p != root {
				return fs.SkipDir
			}
			return nil
		}
		if session.Context.Len() >= collectorMaxFiles {
			return fs.SkipAll
		}
		if _, ok := sourceExtensions[strings.ToLower(filepath.Ext(p))]; !ok {
			return nil
		}

		content, readErr := s.readFile(p)
		if readErr != nil {
			skipped = append(skipped, p)
			return nil
		}
		session.Context.Add(&domain.FileContext{
			Path:       relativePath(root, p),
			Content:    truncateContent(content),
			References: domain.ExtractReferences(string(content)),
			Layer:      domain.LayerBase,
		})
		return nil
	})
	if walkErr != nil {
		skipped = append(skipped, root)
	}
	return skipped
}

// addDiscoveredFiles pulls round-referenced files into context as the
// discovered layer, capped per round. Paths already in context and unreadable
// paths are skipped; it returns the paths actually added.
func (s *Service) addDiscoveredFiles(session *domain.Session, candidates []string, round int) []string {
	var added []string
	for _, candidate := range candidates {
		if len(added) >= collectorMaxDiscoveredPerRound {
			break
		}
		if session.Context.Get(candidate) != nil {
			continue
		}

		content, err := s.readFile(resolveCandidate(session.WorkingDir, candidate))
		if err != nil {
			continue
		}
		if session.Context.Add(&domain.FileContext{
			Path:            candidate,
			Content:         truncateContent(content),
			References:      domain.ExtractReferences(string(content)),
			Layer:           domain.LayerDiscovered,
			DiscoveredRound: round,
		}) {
			added = append(added, candidate)
		}
	}
	return added
}

func resolveCandidate(workingDir, candidate string) string {
	if filepath.IsAbs(candidate) || workingDir == "" {
		return candidate
	}
	return filepath.Join(workingDir, candidate)
}

func relativePath(root, p string) string {
	rel, err := filepath.Rel(root, p)
	if err != nil {
		return filepath.ToSlash(p)
	}
	return filepath.ToSlash(rel)
}

func truncateContent(content []byte) string {
	if len(content) > collectorMaxFileBytes {
		content = content[:collectorMaxFileBytes]
	}
	return string(content)
}
