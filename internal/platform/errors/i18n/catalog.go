// Package i18n renders localized user-facing messages for error codes.
package i18n

import (
	"bytes"
	"strings"
	"sync"
	"text/template"

	"golang.org/x/text/language"
)

// BaseLocale is the canonical source locale for catalogs.
const BaseLocale = "en-US"

// Code is a machine-readable error code (duplicated from the errors package
// to avoid an import cycle).
type Code = string

// Catalog maps error codes to message templates for a specific locale.
type Catalog struct {
	locale   string
	messages map[Code]string
}

var (
	catalogsMu sync.RWMutex
	catalogs   = map[string]*Catalog{}

	matcherOnce sync.Once
	matcher     language.Matcher
	matcherTags []string
)

// GetCatalog returns the catalog best matching the given locale.
// Falls back to en-US if the locale is unknown or unparseable.
func GetCatalog(locale string) *Catalog {
	requested := strings.TrimSpace(locale)
	if requested == "" {
		requested = BaseLocale
	}

	if c, ok := lookupCatalog(requested); ok {
		return c
	}

	resolved := matchLocale(requested)
	if c, ok := lookupCatalog(resolved); ok {
		return c
	}

	// Matching always resolves to a registered locale; this path only
	// triggers when the base catalog itself was never registered.
	return NewCatalog(requested, nil)
}

// Locale returns the locale of this catalog.
func (c *Catalog) Locale() string {
	return c.locale
}

// Format renders the message template with the given metadata.
// Falls back to the error code itself if no template is found.
// Templates are always executed even with nil/empty metadata so variables
// without metadata render as empty rather than leaking template syntax.
func (c *Catalog) Format(code Code, metadata map[string]string) string {
	tmpl, ok := c.messages[code]
	if !ok {
		return code
	}

	if metadata == nil {
		metadata = map[string]string{}
	}

	t, err := template.New("msg").Parse(tmpl)
	if err != nil {
		return tmpl
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, metadata); err != nil {
		return tmpl
	}
	return buf.String()
}

// RegisterCatalog registers a catalog for the given locale. Registration
// normally happens in package init; later registrations replace earlier ones.
func RegisterCatalog(locale string, cat *Catalog) {
	catalogsMu.Lock()
	defer catalogsMu.Unlock()
	catalogs[locale] = cat
}

// NewCatalog creates a new catalog with the given locale and messages.
func NewCatalog(locale string, messages map[Code]string) *Catalog {
	cloned := make(map[Code]string, len(messages))
	for key, value := range messages {
		cloned[key] = value
	}
	return &Catalog{
		locale:   locale,
		messages: cloned,
	}
}

func lookupCatalog(locale string) (*Catalog, bool) {
	catalogsMu.RLock()
	defer catalogsMu.RUnlock()
	cat, ok := catalogs[locale]
	return cat, ok
}

// matchLocale resolves a requested locale against registered catalogs using
// language matching, so "en-GB" finds "en-US" and unknown tags fall back to
// the base locale.
func matchLocale(requested string) string {
	matcherOnce.Do(func() {
		catalogsMu.RLock()
		defer catalogsMu.RUnlock()

		tags := []language.Tag{language.MustParse(BaseLocale)}
		names := []string{BaseLocale}
		for locale := range catalogs {
			if locale == BaseLocale {
				continue
			}
			tag, err := language.Parse(locale)
			if err != nil {
				continue
			}
			tags = append(tags, tag)
			names = append(names, locale)
		}
		matcher = language.NewMatcher(tags)
		matcherTags = names
	})

	tag, err := language.Parse(requested)
	if err != nil {
		return BaseLocale
	}
	_, index, _ := matcher.Match(tag)
	if index < 0 || index >= len(matcherTags) {
		return BaseLocale
	}
	return matcherTags[index]
}
