package router

import (
	"encoding/json"
	"net/url"
	"strings"
)

// SkipIntroCookie is the cookie recording that a visitor skipped the intro.
const SkipIntroCookie = "skipIntro"

// IntroState is the visitor's intro state, derived from SkipIntroCookie.
type IntroState int

const (
	NeedsIntro IntroState = iota
	SkippedIntro
)

// String returns the state name.
func (s IntroState) String() string {
	switch s {
	case SkippedIntro:
		return "skipped-intro"
	default:
		return "needs-intro"
	}
}

// ViewVariant is the view shown on the landing path.
type ViewVariant int

const (
	VariantSignUp ViewVariant = iota
	VariantSearch
)

// String returns the variant name.
func (v ViewVariant) String() string {
	switch v {
	case VariantSearch:
		return "search"
	default:
		return "signup"
	}
}

// IntroStateFromCookie interprets the raw cookie value the way
// universal-cookie reads it in the browser: surrounding double quotes are
// dropped, the value is URL-decoded, and only values starting with '{', '['
// or '"' (after an optional "j:" prefix) are parsed as JSON. The intro
// counts as skipped when the result is truthy, so bare "false", "0" or
// "null" skip it while an empty value or the JSON string "" does not.
func IntroStateFromCookie(value string, present bool) IntroState {
	if !present {
		return NeedsIntro
	}
	value = strings.TrimSpace(value)
	if strings.HasPrefix(value, `"`) {
		value = strings.TrimSuffix(value[1:], `"`)
	}
	if decoded, err := url.PathUnescape(value); err == nil {
		value = decoded
	}
	if truthy(readCookie(value)) {
		return SkippedIntro
	}
	return NeedsIntro
}

// readCookie parses JSON-looking values and returns the rest unchanged.
func readCookie(value string) any {
	clean := strings.TrimPrefix(value, "j:")
	if clean == "" || !strings.ContainsRune("{[\"", rune(clean[0])) {
		return value
	}
	var parsed any
	if err := json.Unmarshal([]byte(clean), &parsed); err != nil {
		return value
	}
	return parsed
}

// truthy reports JavaScript truthiness of a decoded JSON value.
func truthy(v any) bool {
	switch v := v.(type) {
	case nil:
		return false
	case bool:
		return v
	case float64:
		return v != 0
	case string:
		return v != ""
	default:
		return true
	}
}

// SelectLandingView picks the landing view for an intro state.
func SelectLandingView(s IntroState) ViewVariant {
	if s == SkippedIntro {
		return VariantSearch
	}
	return VariantSignUp
}
