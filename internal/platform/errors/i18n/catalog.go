// Package i18n renders localized user messages for error codes.
package i18n

import (
	"maps"
	"strings"
	"sync"
	"text/template"

	"golang.org/x/text/language"
)

// Code mirrors errors.Code without importing it.
type Code = string

// BaseLocale is the locale every lookup falls back to.
const BaseLocale = "en-US"

// Catalog holds the message templates of one locale. Templates are parsed
// on first use.
type Catalog struct {
	locale   string
	messages map[Code]string

	mu       sync.Mutex
	compiled map[Code]*template.Template
}

// NewCatalog copies messages into a catalog for locale.
func NewCatalog(locale string, messages map[Code]string) *Catalog {
	return &Catalog{
		locale:   locale,
		messages: maps.Clone(messages),
		compiled: make(map[Code]*template.Template, len(messages)),
	}
}

// Locale returns the catalog's locale tag.
func (c *Catalog) Locale() string {
	return c.locale
}

// Format renders the template for code with metadata. Unknown codes render
// as the code. Templates that fail to parse or execute render verbatim.
func (c *Catalog) Format(code Code, metadata map[string]string) string {
	raw, ok := c.messages[code]
	if !ok {
		return code
	}
	tmpl, err := c.template(code, raw)
	if err != nil {
		return raw
	}
	if metadata == nil {
		metadata = map[string]string{}
	}
	var out strings.Builder
	if err := tmpl.Execute(&out, metadata); err != nil {
		return raw
	}
	return out.String()
}

func (c *Catalog) template(code Code, raw string) (*template.Template, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if tmpl, ok := c.compiled[code]; ok {
		return tmpl, nil
	}
	tmpl, err := template.New(code).Option("missingkey=zero").Parse(raw)
	if err != nil {
		return nil, err
	}
	c.compiled[code] = tmpl
	return tmpl, nil
}

type registry struct {
	mu       sync.RWMutex
	catalogs map[string]*Catalog
	// matcher is rebuilt lazily after a registration.
	matcher   language.Matcher
	supported []language.Tag
}

var locales = &registry{catalogs: map[string]*Catalog{
	"en-US": NewCatalog("en-US", enUS),
	"pt-BR": NewCatalog("pt-BR", ptBR),
}}

// GetCatalog returns the catalog best matching a locale tag or an
// Accept-Language value, falling back to en-US.
func GetCatalog(locale string) *Catalog {
	requested := strings.TrimSpace(locale)
	if requested == "" {
		requested = BaseLocale
	}
	return locales.resolve(requested)
}

// RegisterCatalog installs cat for locale, replacing any previous catalog.
func RegisterCatalog(locale string, cat *Catalog) {
	locales.mu.Lock()
	defer locales.mu.Unlock()
	locales.catalogs[locale] = cat
	locales.matcher = nil
}

func (r *registry) resolve(requested string) *Catalog {
	r.mu.RLock()
	if cat, ok := r.catalogs[requested]; ok {
		r.mu.RUnlock()
		return cat
	}
	r.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()
	if cat, ok := r.catalogs[r.match(requested)]; ok {
		return cat
	}
	return r.catalogs[BaseLocale]
}

// match requires r.mu held for writing.
func (r *registry) match(requested string) string {
	desired, _, err := language.ParseAcceptLanguage(requested)
	if err != nil || len(desired) == 0 {
		return BaseLocale
	}
	if r.matcher == nil {
		r.supported = []language.Tag{language.MustParse(BaseLocale)}
		for locale := range r.catalogs {
			if locale == BaseLocale {
				continue
			}
			if tag, err := language.Parse(locale); err == nil {
				r.supported = append(r.supported, tag)
			}
		}
		r.matcher = language.NewMatcher(r.supported)
	}
	_, index, confidence := r.matcher.Match(desired...)
	if confidence == language.No {
		return BaseLocale
	}
	return r.supported[index].String()
}
