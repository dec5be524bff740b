package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/ffyyc/web/internal/errors"
)

// Services is the third-party service configuration embedded into the
// bundle at build time. Its JSON shape is
// {"parse": {"app_id", "js_key", "url"}, "google": {"map", "zoom", "ga"}}.
type Services struct {
	Parse  ParseConfig  `json:"parse"`
	Google GoogleConfig `json:"google"`
}

// ParseConfig holds the backend platform settings. A nil field was not
// configured.
type ParseConfig struct {
	AppID *string `json:"app_id" env:"PARSE_APP_ID"`
	JSKey *string `json:"js_key" env:"PARSE_JS_KEY"`
	URL   *string `json:"url" env:"PARSE_URL"`
}

// GoogleConfig holds the maps and analytics settings.
type GoogleConfig struct {
	Map  *string `json:"map" env:"GOOGLE_MAP"`
	Zoom Literal `json:"zoom" env:"GOOGLE_ZOOM"`
	GA   *string `json:"ga" env:"GOOGLE_GA"`
}

// String returns a pointer to s.
func String(s string) *string {
	return &s
}

// Literal is a JSON value kept as written, so "12" stays a string and 12 a
// number when it is injected. Set from the environment it must be a JSON
// number.
type Literal []byte

// UnmarshalJSON keeps data verbatim.
func (l *Literal) UnmarshalJSON(data []byte) error {
	*l = append((*l)[:0], data...)
	return nil
}

// UnmarshalText accepts a JSON number.
func (l *Literal) UnmarshalText(text []byte) error {
	text = bytes.TrimSpace(text)
	var v any
	if err := json.Unmarshal(text, &v); err != nil {
		return fmt.Errorf("%q is not a JSON number", text)
	}
	if _, ok := v.(float64); !ok {
		return fmt.Errorf("%q is not a JSON number", text)
	}
	*l = append((*l)[:0], text...)
	return nil
}

func (l Literal) String() string {
	return string(l)
}

// LoadServices reads the service configuration at path and applies
// environment overrides. A .env file next to path is loaded first; variables
// already set in the process environment win over it.
func LoadServices(path string) (*Services, error) {
	dotenv := filepath.Join(filepath.Dir(path), ".env")
	if err := godotenv.Load(dotenv); err != nil && !os.IsNotExist(err) {
		return nil, errors.New("E121").
			WithDetail("Failed to load " + dotenv).
			Wrap(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New("E121").
				WithDetail("No service configuration at " + path).
				WithSuggestion(`Create it with {"parse": {...}, "google": {...}} or point paths.services elsewhere`)
		}
		return nil, errors.New("E121").Wrap(err)
	}

	return ParseServices(data)
}

// ParseServices decodes service configuration JSON and applies environment
// overrides.
func ParseServices(data []byte) (*Services, error) {
	var s Services
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, errors.New("E121").
			WithDetail("Failed to parse service configuration: " + err.Error()).
			WithSuggestion("Check that the file is valid JSON")
	}
	if err := env.Parse(&s); err != nil {
		return nil, errors.New("E121").
			WithDetail("Invalid service override in the environment").
			Wrap(err)
	}
	return &s, nil
}

// Redacted returns the configuration with keys masked, for logging.
func (s *Services) Redacted() map[string]any {
	return map[string]any{
		"parse.app_id": deref(s.Parse.AppID),
		"parse.js_key": redact(deref(s.Parse.JSKey)),
		"parse.url":    deref(s.Parse.URL),
		"google.map":   redact(deref(s.Google.Map)),
		"google.zoom":  s.Google.Zoom.String(),
		"google.ga":    deref(s.Google.GA),
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func redact(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return "***"
	}
	return s[:4] + "***" + s[len(s)-4:]
}
