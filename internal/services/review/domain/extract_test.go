package domain

import (
	"reflect"
	"testing"
)

func TestExtractPathLineReferences(t *testing.T) {
	text := "The bug is in src/auth/login.go:42 and surfaces via internal/session/store.go:108."
	got := RegexExtractor{}.Extract(text)
	want := []string{"src/auth/login.go", "internal/session/store.go"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Extract() = %v, want %v", got, want)
	}
}

func TestExtractFencedBlockFilename(t *testing.T) {
	text := "```go src/auth/token.go\nfunc Verify() {}\n```\n"
	got := RegexExtractor{}.Extract(text)
	want := []string{"src/auth/token.go"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Extract() = %v, want %v", got, want)
	}
}

func TestExtractImportAndMention(t *testing.T) {
	text := "It does `require('./lib/crypto.js')`; see also file: src/auth/mfa.go for the second factor."
	got := RegexExtractor{}.Extract(text)
	want := []string{"./lib/crypto.js", "src/auth/mfa.go"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Extract() = %v, want %v", got, want)
	}
}

func TestExtractFiltersFalsePositives(t *testing.T) {
	text := "See https://example.com/docs/page.html:1 and package-lock.json:9 " +
		"plus .git/config:1 and a.b:2"
	got := RegexExtractor{}.Extract(text)
	if len(got) != 0 {
		t.Fatalf("Extract() = %v, want nothing (all false positives)", got)
	}
}

func TestExtractDeduplicates(t *testing.T) {
	text := "src/a.go:1 then src/a.go:99 then file: src/a.go"
	got := RegexExtractor{}.Extract(text)
	if len(got) != 1 {
		t.Fatalf("Extract() = %v, want single mention", got)
	}
}

func TestExtractReferencesFromSource(t *testing.T) {
	content := `import { token } from "./token"
import "fmt"
const db = require('../db/conn')
#include "util.h"
`
	got := ExtractReferences(content)
	want := []string{"./token", "fmt", "../db/conn", "util.h"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("ExtractReferences() = %v, want %v", got, want)
	}
}

func TestExtractReferencesPythonFrom(t *testing.T) {
	content := "from app.models import User\n"
	got := ExtractReferences(content)
	if len(got) != 1 || got[0] != "app.models" {
		t.Fatalf("ExtractReferences() = %v, want [app.models]", got)
	}
}
