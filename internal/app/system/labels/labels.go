// Package labels supplies display strings for chart option labels and source
// attribution. Keys are stable identifiers; a key with no translation is
// returned unchanged.
package labels

import (
	"fmt"
	"slices"

	"github.com/dalemusser/stratachart/internal/app/resources"
	"github.com/dalemusser/stratachart/internal/app/system/htmlsanitize"
	"go.uber.org/zap"
	"golang.org/x/text/language"
)

// Provider resolves locales and serves their dictionaries. It is immutable
// after New.
type Provider struct {
	locales []string
	matcher language.Matcher
	dicts   map[string]map[string]string
	logger  *zap.Logger
}

// New loads the embedded dictionaries. defaultLocale is used when a request
// matches nothing and must be one of them.
func New(defaultLocale string, logger *zap.Logger) (*Provider, error) {
	raw, err := resources.Locales()
	if err != nil {
		return nil, err
	}
	return FromDictionaries(defaultLocale, raw, logger)
}

// FromDictionaries builds a provider from in-memory dictionaries. Values are
// stripped of markup once here.
func FromDictionaries(defaultLocale string, raw map[string]map[string]string, logger *zap.Logger) (*Provider, error) {
	if _, ok := raw[defaultLocale]; !ok {
		return nil, fmt.Errorf("labels: no dictionary for default locale %q", defaultLocale)
	}

	// The matcher falls back to its first tag, so the default goes first.
	locales := []string{defaultLocale}
	for loc := range raw {
		if loc != defaultLocale {
			locales = append(locales, loc)
		}
	}
	slices.Sort(locales[1:])

	tags := make([]language.Tag, len(locales))
	for i, loc := range locales {
		tag, err := language.Parse(loc)
		if err != nil {
			return nil, fmt.Errorf("labels: locale %q: %w", loc, err)
		}
		tags[i] = tag
	}

	dicts := make(map[string]map[string]string, len(raw))
	for loc, d := range raw {
		clean := make(map[string]string, len(d))
		for k, v := range d {
			clean[k] = htmlsanitize.PlainText(v)
		}
		dicts[loc] = clean
	}

	return &Provider{
		locales: locales,
		matcher: language.NewMatcher(tags),
		dicts:   dicts,
		logger:  logger,
	}, nil
}

// Locales returns the supported locales, default first.
func (p *Provider) Locales() []string {
	return slices.Clone(p.locales)
}

// Default returns the default locale.
func (p *Provider) Default() string {
	return p.locales[0]
}

// Match picks the supported locale for an explicit choice (such as a ?lang=
// parameter) and then an Accept-Language header. Either may be empty.
func (p *Provider) Match(explicit, acceptLanguage string) string {
	var tags []language.Tag
	if explicit != "" {
		if t, err := language.Parse(explicit); err == nil {
			tags = append(tags, t)
		}
	}
	if acceptLanguage != "" {
		accepted, _, err := language.ParseAcceptLanguage(acceptLanguage)
		if err != nil {
			p.logger.Debug("ignoring malformed Accept-Language", zap.String("header", acceptLanguage), zap.Error(err))
		}
		tags = append(tags, accepted...)
	}
	if len(tags) == 0 {
		return p.Default()
	}
	_, idx, conf := p.matcher.Match(tags...)
	if conf == language.No {
		return p.Default()
	}
	return p.locales[idx]
}

// For returns the translate function for locale. Unknown locales use the
// default dictionary; unknown keys are returned as-is.
func (p *Provider) For(locale string) func(key string) string {
	dict, ok := p.dicts[locale]
	if !ok {
		dict = p.dicts[p.Default()]
	}
	fallback := p.dicts[p.Default()]
	return func(key string) string {
		if v, ok := dict[key]; ok {
			return v
		}
		if v, ok := fallback[key]; ok {
			return v
		}
		return key
	}
}
