package locale

import (
	"golang.org/x/text/language"
)

// Resolver picks, from the locales an application supports, the one best
// matching the user's preferences.
type Resolver struct {
	preferred []language.Tag
}

// NewResolver returns a Resolver preferring the given locales, in order.
// Locales that cannot be expressed as a language tag are ignored.
func NewResolver(preferred ...Locale) *Resolver {
	r := &Resolver{}
	for _, l := range preferred {
		if tag, err := l.Tag(); err == nil {
			r.preferred = append(r.preferred, tag)
		}
	}
	return r
}

// Resolve returns the supported locale best matching the preferences, the
// first supported locale if nothing matches, or false if supported is
// empty.
func (r *Resolver) Resolve(supported []Locale) (Locale, bool) {
	if len(supported) == 0 {
		return Locale{}, false
	}
	if r == nil || len(r.preferred) == 0 {
		return supported[0], true
	}

	tags := make([]language.Tag, 0, len(supported))
	index := make([]int, 0, len(supported))
	for i, l := range supported {
		tag, err := l.Tag()
		if err != nil {
			continue
		}
		tags = append(tags, tag)
		index = append(index, i)
	}
	if len(tags) == 0 {
		return supported[0], true
	}

	_, i, confidence := language.NewMatcher(tags).Match(r.preferred...)
	if confidence == language.No {
		return supported[0], true
	}
	return supported[index[i]], true
}
