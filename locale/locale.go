// Package locale parses POSIX locale names, as found in LANG, and resolves
// the preferred locale against the set an application supports.
package locale

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/language"
)

// ErrNoLocale is returned by Parse for names that do not identify a
// language, including the empty name and the C and POSIX locales.
var ErrNoLocale = errors.New("locale: no language")

// Locale is a locale in the engine's representation. Empty fields are
// unset.
type Locale struct {
	Language string
	Country  string
	Script   string
	Variant  string
}

// modifiers naming a script rather than a variant, see locale(5)
var scriptModifiers = map[string]string{
	"latin":      "Latn",
	"cyrillic":   "Cyrl",
	"devanagari": "Deva",
	"arabic":     "Arab",
	"hebrew":     "Hebr",
}

// Parse parses a name in the setlocale(3) format
// language[_territory][.codeset][@modifier], e.g. "szl_PL.utf8@euro". The
// codeset is dropped. A modifier naming a script (e.g. "sr_RS@latin") sets
// Script, any other sets Variant.
func Parse(name string) (Locale, error) {
	var l Locale

	rest := name
	if i := strings.IndexByte(rest, '@'); i >= 0 {
		modifier := rest[i+1:]
		rest = rest[:i]
		if script, ok := scriptModifiers[strings.ToLower(modifier)]; ok {
			l.Script = script
		} else {
			l.Variant = modifier
		}
	}
	if i := strings.IndexByte(rest, '.'); i >= 0 {
		rest = rest[:i]
	}
	if i := strings.IndexByte(rest, '_'); i >= 0 {
		l.Country = rest[i+1:]
		rest = rest[:i]
	}
	l.Language = rest

	switch l.Language {
	case "", "C", "POSIX":
		return Locale{}, fmt.Errorf("%w: %q", ErrNoLocale, name)
	}
	if _, err := language.ParseBase(l.Language); err != nil {
		return Locale{}, fmt.Errorf("locale: invalid language in %q: %w", name, err)
	}
	if l.Country != "" {
		if _, err := language.ParseRegion(l.Country); err != nil {
			return Locale{}, fmt.Errorf("locale: invalid territory in %q: %w", name, err)
		}
	}
	return l, nil
}

// String formats l as Parse accepts it, without a codeset.
func (l Locale) String() string {
	var b strings.Builder
	b.WriteString(l.Language)
	if l.Country != "" {
		b.WriteByte('_')
		b.WriteString(l.Country)
	}
	switch {
	case l.Variant != "":
		b.WriteByte('@')
		b.WriteString(l.Variant)
	case l.Script != "":
		for modifier, script := range scriptModifiers {
			if script == l.Script {
				b.WriteByte('@')
				b.WriteString(modifier)
				break
			}
		}
	}
	return b.String()
}

// Tag converts l to a BCP 47 tag. The variant is not carried over, as POSIX
// modifiers such as "euro" are not BCP 47 variants.
func (l Locale) Tag() (language.Tag, error) {
	base, err := language.ParseBase(l.Language)
	if err != nil {
		return language.Und, err
	}
	parts := []any{base}
	if l.Script != "" {
		script, err := language.ParseScript(l.Script)
		if err != nil {
			return language.Und, err
		}
		parts = append(parts, script)
	}
	if l.Country != "" {
		region, err := language.ParseRegion(l.Country)
		if err != nil {
			return language.Und, err
		}
		parts = append(parts, region)
	}
	return language.Compose(parts...)
}
