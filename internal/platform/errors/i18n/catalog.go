// Package i18n formats error codes into caller-facing messages.
package i18n

import (
	"strings"
	"sync"
	"text/template"

	i18ncatalog "github.com/louisbranch/divination/internal/platform/i18n/catalog"
)

// errorsNamespace is the catalog namespace holding error templates.
const errorsNamespace = "errors"

// Code is a machine-readable error code (duplicated from errors package to avoid cycle).
type Code = string

// Catalog holds one locale's compiled error message templates.
type Catalog struct {
	locale string
	// raw keeps the source text; a nil entry in compiled means it did not parse.
	raw      map[Code]string
	compiled map[Code]*template.Template
}

var (
	catalogsMu sync.RWMutex
	// catalogs caches catalogs under both requested and resolved locales.
	catalogs = map[string]*Catalog{}
)

// GetCatalog returns the catalog for locale, falling back through the
// shared locale matcher to en-US.
func GetCatalog(locale string) *Catalog {
	requested := strings.TrimSpace(locale)
	if requested == "" {
		requested = i18ncatalog.BaseLocale
	}
	if c, ok := lookupCatalog(requested); ok {
		return c
	}

	resolved, messages := i18ncatalog.Default().NamespaceMessagesWithFallback(requested, errorsNamespace)
	c, ok := lookupCatalog(resolved)
	if !ok {
		c = storeCatalogIfAbsent(resolved, NewCatalog(resolved, messages))
	}
	if requested != resolved {
		c = storeCatalogIfAbsent(requested, c)
	}
	return c
}

// Locale returns the locale of this catalog.
func (c *Catalog) Locale() string {
	return c.locale
}

// Has reports whether the catalog carries a template for code.
func (c *Catalog) Has(code Code) bool {
	_, ok := c.raw[code]
	return ok
}

// Format renders code's template with metadata. Unknown codes render as the
// code itself; templates that fail to parse or execute render as raw text.
func (c *Catalog) Format(code Code, metadata map[string]string) string {
	raw, ok := c.raw[code]
	if !ok {
		return code
	}
	tmpl := c.compiled[code]
	if tmpl == nil {
		return raw
	}
	if metadata == nil {
		metadata = map[string]string{}
	}
	var b strings.Builder
	if err := tmpl.Execute(&b, metadata); err != nil {
		return raw
	}
	return b.String()
}

// RegisterCatalog registers a catalog for the given locale, replacing any
// cached one. Intended for init and single-threaded test setup.
func RegisterCatalog(locale string, cat *Catalog) {
	catalogsMu.Lock()
	defer catalogsMu.Unlock()
	catalogs[locale] = cat
}

// NewCatalog compiles messages for locale.
func NewCatalog(locale string, messages map[Code]string) *Catalog {
	c := &Catalog{
		locale:   locale,
		raw:      make(map[Code]string, len(messages)),
		compiled: make(map[Code]*template.Template, len(messages)),
	}
	for code, text := range messages {
		c.raw[code] = text
		tmpl, err := template.New(code).Parse(text)
		if err != nil {
			c.compiled[code] = nil
			continue
		}
		c.compiled[code] = tmpl
	}
	return c
}

func lookupCatalog(locale string) (*Catalog, bool) {
	catalogsMu.RLock()
	defer catalogsMu.RUnlock()
	cat, ok := catalogs[locale]
	return cat, ok
}

func storeCatalogIfAbsent(locale string, candidate *Catalog) *Catalog {
	catalogsMu.Lock()
	defer catalogsMu.Unlock()
	if existing, ok := catalogs[locale]; ok {
		return existing
	}
	catalogs[locale] = candidate
	return candidate
}
