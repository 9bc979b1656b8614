// Package catalog loads the embedded locale message bundle and registers it
// with golang.org/x/text/message so printers can resolve keys.
//
// Files live at locales/<locale>/<namespace>.yaml. Keys are unique across a
// locale, "core." keys belong to the core namespace, and every key of a
// translated locale must also exist in the base locale.
package catalog

import (
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"gopkg.in/yaml.v3"
)

// BaseLocale is the canonical source locale for catalogs.
const BaseLocale = "en-US"

type catalogFile struct {
	Locale    string            `yaml:"locale"`
	Namespace string            `yaml:"namespace"`
	Messages  map[string]string `yaml:"messages"`
}

// localeCatalog stores one locale's messages, grouped by namespace.
type localeCatalog struct {
	namespaces map[string]map[string]string
	keys       map[string]string
}

// Bundle contains all locale catalogs and a matcher over their tags.
type Bundle struct {
	locales map[string]*localeCatalog
	// supported lists BaseLocale first so an unmatched request resolves to it.
	supported []language.Tag
	names     []string
	matcher   language.Matcher
}

//go:embed locales/*/*.yaml
var embeddedCatalogFS embed.FS

var defaultBundle = mustLoadAndRegisterEmbedded()

// Default returns the process-wide embedded catalog bundle.
func Default() *Bundle {
	return defaultBundle
}

// LoadEmbedded loads catalog files embedded in this package.
func LoadEmbedded() (*Bundle, error) {
	return LoadFromFS(embeddedCatalogFS)
}

// LoadFromFS loads and checks catalog files from catalogFS.
func LoadFromFS(catalogFS fs.FS) (*Bundle, error) {
	paths, err := fs.Glob(catalogFS, "locales/*/*.yaml")
	if err != nil {
		return nil, fmt.Errorf("glob locale catalogs: %w", err)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no catalog files found")
	}
	sort.Strings(paths)

	bundle := &Bundle{locales: map[string]*localeCatalog{}}
	for _, p := range paths {
		data, err := fs.ReadFile(catalogFS, p)
		if err != nil {
			return nil, fmt.Errorf("read catalog %s: %w", p, err)
		}
		var file catalogFile
		if err := yaml.Unmarshal(data, &file); err != nil {
			return nil, fmt.Errorf("parse catalog %s: %w", p, err)
		}
		if err := bundle.addFile(p, file); err != nil {
			return nil, err
		}
	}
	if err := bundle.index(); err != nil {
		return nil, err
	}
	return bundle, nil
}

func (b *Bundle) addFile(p string, file catalogFile) error {
	localeFromPath := path.Base(path.Dir(p))
	namespaceFromPath := strings.TrimSuffix(path.Base(p), path.Ext(p))

	locale := strings.TrimSpace(file.Locale)
	namespace := strings.TrimSpace(file.Namespace)
	switch {
	case locale != localeFromPath:
		return fmt.Errorf("catalog %s: locale %q must match path locale %q", p, locale, localeFromPath)
	case namespace != namespaceFromPath:
		return fmt.Errorf("catalog %s: namespace %q must match filename namespace %q", p, namespace, namespaceFromPath)
	case len(file.Messages) == 0:
		return fmt.Errorf("catalog %s: messages map is required", p)
	}

	catalog, ok := b.locales[locale]
	if !ok {
		catalog = &localeCatalog{namespaces: map[string]map[string]string{}, keys: map[string]string{}}
		b.locales[locale] = catalog
	}
	if _, exists := catalog.namespaces[namespace]; exists {
		return fmt.Errorf("catalog %s: namespace %q already defined for locale %q", p, namespace, locale)
	}

	messages := make(map[string]string, len(file.Messages))
	for key, value := range file.Messages {
		key = strings.TrimSpace(key)
		if key == "" {
			return fmt.Errorf("catalog %s: message key cannot be blank", p)
		}
		if strings.HasPrefix(key, "core.") && namespace != "core" {
			return fmt.Errorf("catalog %s: key %q must be defined in core namespace", p, key)
		}
		if _, exists := catalog.keys[key]; exists {
			return fmt.Errorf("catalog %s: duplicate key %q in locale %q", p, key, locale)
		}
		catalog.keys[key] = value
		messages[key] = value
	}
	catalog.namespaces[namespace] = messages
	return nil
}

// index checks translations against the base locale and builds the matcher.
func (b *Bundle) index() error {
	base, ok := b.locales[BaseLocale]
	if !ok {
		return fmt.Errorf("base locale %s is not defined in catalogs", BaseLocale)
	}

	b.supported = []language.Tag{language.MustParse(BaseLocale)}
	b.names = []string{BaseLocale}
	for _, locale := range b.Locales() {
		if locale == BaseLocale {
			continue
		}
		for key := range b.locales[locale].keys {
			if _, ok := base.keys[key]; !ok {
				return fmt.Errorf("locale %s: key %q is missing from %s", locale, key, BaseLocale)
			}
		}
		tag, err := language.Parse(locale)
		if err != nil {
			return fmt.Errorf("parse locale tag %q: %w", locale, err)
		}
		b.supported = append(b.supported, tag)
		b.names = append(b.names, locale)
	}
	b.matcher = language.NewMatcher(b.supported)
	return nil
}

// Register registers all catalog messages with x/text/message, under each
// locale's tag and its bare language.
func (b *Bundle) Register() error {
	if b == nil {
		return nil
	}
	for i, locale := range b.names {
		tag := b.supported[i]
		tags := []language.Tag{tag}
		if lang, conf := tag.Base(); conf != language.No {
			if bare, err := language.Parse(lang.String()); err == nil && bare.String() != tag.String() {
				tags = append(tags, bare)
			}
		}
		for key, value := range b.locales[locale].keys {
			for _, registerTag := range tags {
				if err := message.SetString(registerTag, key, value); err != nil {
					return fmt.Errorf("register %s %q: %w", locale, key, err)
				}
			}
		}
	}
	return nil
}

// Resolve matches a locale or Accept-Language value against the bundle and
// returns the best supported locale, BaseLocale when nothing matches.
func (b *Bundle) Resolve(locale string) string {
	return b.names[b.resolveIndex(locale)]
}

func (b *Bundle) resolveIndex(locale string) int {
	requested, _, err := language.ParseAcceptLanguage(strings.TrimSpace(locale))
	if err != nil || len(requested) == 0 {
		return 0
	}
	_, index, confidence := b.matcher.Match(requested...)
	if confidence == language.No {
		return 0
	}
	return index
}

// HasLocale reports whether the locale exists in this bundle.
func (b *Bundle) HasLocale(locale string) bool {
	if b == nil {
		return false
	}
	_, ok := b.locales[strings.TrimSpace(locale)]
	return ok
}

// Locales returns all available locale identifiers.
func (b *Bundle) Locales() []string {
	if b == nil {
		return nil
	}
	out := make([]string, 0, len(b.locales))
	for locale := range b.locales {
		out = append(out, locale)
	}
	sort.Strings(out)
	return out
}

// LocaleMessages returns a copy of every message of an exact locale.
func (b *Bundle) LocaleMessages(locale string) map[string]string {
	if b == nil {
		return map[string]string{}
	}
	catalog, ok := b.locales[strings.TrimSpace(locale)]
	if !ok {
		return map[string]string{}
	}
	return copyMap(catalog.keys)
}

// NamespaceMessages returns a copy of one namespace of an exact locale.
func (b *Bundle) NamespaceMessages(locale string, namespace string) map[string]string {
	if b == nil {
		return map[string]string{}
	}
	catalog, ok := b.locales[strings.TrimSpace(locale)]
	if !ok {
		return map[string]string{}
	}
	return copyMap(catalog.namespaces[strings.TrimSpace(namespace)])
}

// NamespaceMessagesWithFallback resolves locale through the matcher and
// returns the namespace messages with the locale that supplied them.
// Translated locales missing the namespace fall back to BaseLocale.
func (b *Bundle) NamespaceMessagesWithFallback(locale string, namespace string) (string, map[string]string) {
	resolved := b.Resolve(locale)
	if messages := b.NamespaceMessages(resolved, namespace); len(messages) > 0 {
		return resolved, messages
	}
	return BaseLocale, b.NamespaceMessages(BaseLocale, namespace)
}

// Printer returns an x/text printer for the best match of locale.
func (b *Bundle) Printer(locale string) *message.Printer {
	return message.NewPrinter(b.supported[b.resolveIndex(locale)])
}

func copyMap(source map[string]string) map[string]string {
	out := make(map[string]string, len(source))
	for key, value := range source {
		out[key] = value
	}
	return out
}

func mustLoadAndRegisterEmbedded() *Bundle {
	bundle, err := LoadEmbedded()
	if err != nil {
		panic(err)
	}
	if err := bundle.Register(); err != nil {
		panic(err)
	}
	return bundle
}
