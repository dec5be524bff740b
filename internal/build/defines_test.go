package build

import (
	"testing"

	"github.com/ffyyc/web/internal/config"
)

func testServices() *config.Services {
	return &config.Services{
		Parse: config.ParseConfig{
			AppID: config.String("X"),
			JSKey: config.String("key"),
			URL:   config.String("https://api.example.com/parse"),
		},
		Google: config.GoogleConfig{
			Map:  config.String("maps-key"),
			Zoom: config.Literal("12"),
			GA:   config.String("UA-1"),
		},
	}
}

func envWith(vars map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := vars[k]
		return v, ok
	}
}

func TestDefinesValues(t *testing.T) {
	ds := Defines(envWith(map[string]string{"NODE_ENV": "production"}), testServices())

	want := map[string]string{
		"ENV.NODE_ENV": `"production"`,
		"PARSE.APP_ID": `"X"`,
		"PARSE.JS_KEY": `"key"`,
		"PARSE.URL":    `"https://api.example.com/parse"`,
		"GOOGLE.MAP":   `"maps-key"`,
		"GOOGLE.ZOOM":  `12`,
		"GOOGLE.GA":    `"UA-1"`,
	}
	for key, v := range want {
		got, ok := ds.Lookup(key)
		if !ok || got != v {
			t.Errorf("%s = %s, want %s", key, got, v)
		}
	}
	if len(ds.All()) != len(want) {
		t.Errorf("got %d defines, want %d", len(ds.All()), len(want))
	}
}

func TestDefinesUnsetValues(t *testing.T) {
	ds := Defines(envWith(nil), &config.Services{})
	if v, _ := ds.Lookup("ENV.NODE_ENV"); v != "undefined" {
		t.Errorf("unset NODE_ENV = %s, want undefined", v)
	}
	if v, _ := ds.Lookup("GOOGLE.ZOOM"); v != "undefined" {
		t.Errorf("unset zoom = %s, want undefined", v)
	}
	for _, key := range []string{"PARSE.APP_ID", "PARSE.JS_KEY", "PARSE.URL", "GOOGLE.MAP", "GOOGLE.GA"} {
		if v, _ := ds.Lookup(key); v != "undefined" {
			t.Errorf("unset %s = %s, want undefined", key, v)
		}
	}

	set := Defines(envWith(nil), &config.Services{Parse: config.ParseConfig{AppID: config.String("")}})
	if v, _ := set.Lookup("PARSE.APP_ID"); v != `""` {
		t.Errorf("empty app id = %s, want \"\"", v)
	}

	empty := Defines(envWith(map[string]string{"NODE_ENV": ""}), nil)
	if v, _ := empty.Lookup("ENV.NODE_ENV"); v != `""` {
		t.Errorf("empty NODE_ENV = %s, want \"\"", v)
	}
}

func TestDefinesApply(t *testing.T) {
	ds := Defines(envWith(map[string]string{"NODE_ENV": "development"}), testServices())

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"member", `init(PARSE.APP_ID);`, `init("X");`},
		{"number", `map.setZoom(GOOGLE.ZOOM)`, `map.setZoom(12)`},
		{"env", `if (ENV.NODE_ENV !== "production") {}`, `if ("development" !== "production") {}`},
		{"longer chain", `PARSE.URL.length`, `"https://api.example.com/parse".length`},
		{"group", `var p = PARSE;`, `var p = ({"APP_ID":"X","JS_KEY":"key","URL":"https://api.example.com/parse"});`},
		{"unknown member", `PARSE.OTHER`, `PARSE.OTHER`},
		{"property access", `config.PARSE.URL`, `config.PARSE.URL`},
		{"spaced property access", "config\n  .PARSE.URL", "config\n  .PARSE.URL"},
		{"spread", `f(...PARSE)`, `f(...({"APP_ID":"X","JS_KEY":"key","URL":"https://api.example.com/parse"}))`},
		{"identifier suffix", `MYPARSE.URL`, `MYPARSE.URL`},
		{"double string", `"PARSE.URL"`, `"PARSE.URL"`},
		{"single string", `'GOOGLE.MAP'`, `'GOOGLE.MAP'`},
		{"escaped quote", `"a\" PARSE.URL"`, `"a\" PARSE.URL"`},
		{"template substitution", "`${PARSE.URL}/classes`", "`${\"https://api.example.com/parse\"}/classes`"},
		{"template text", "`PARSE.URL ${GOOGLE.GA}`", "`PARSE.URL ${\"UA-1\"}`"},
		{"nested template braces", "`${ {a: PARSE.APP_ID}.a }` + GOOGLE.GA", "`${ {a: \"X\"}.a }` + \"UA-1\""},
		{"nested template literal", "`a${`b${GOOGLE.GA}`}`", "`a${`b${\"UA-1\"}`}`"},
		{"regex with quote", "var re = /'/, id = PARSE.APP_ID;", "var re = /'/, id = \"X\";"},
		{"regex class", "/[/']/.test(s) && GOOGLE.GA", "/[/']/.test(s) && \"UA-1\""},
		{"regex after return", "return /\"/.test(s) ? PARSE.APP_ID : 0", "return /\"/.test(s) ? \"X\" : 0"},
		{"regex text", "/PARSE.URL/.test(s)", "/PARSE.URL/.test(s)"},
		{"division", "var half = total / 2, id = PARSE.APP_ID / 1", "var half = total / 2, id = \"X\" / 1"},
		{"template then regex", "var endpoint = `${PARSE.URL}/classes`;\nvar re = /'/, id = PARSE.APP_ID;", "var endpoint = `${\"https://api.example.com/parse\"}/classes`;\nvar re = /'/, id = \"X\";"},
		{"line comment", "// PARSE.URL\nPARSE.URL", "// PARSE.URL\n\"https://api.example.com/parse\""},
		{"block comment", "/* GOOGLE.GA */ GOOGLE.GA", `/* GOOGLE.GA */ "UA-1"`},
		{"unterminated comment", "/* GOOGLE.GA", "/* GOOGLE.GA"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := string(ds.Apply([]byte(tt.in))); got != tt.want {
				t.Errorf("Apply(%q) =\n%s\nwant\n%s", tt.in, got, tt.want)
			}
		})
	}
}

func TestDefinesHTMLCharactersNotEscaped(t *testing.T) {
	ds := Defines(envWith(nil), &config.Services{Parse: config.ParseConfig{URL: config.String("https://x/?a=1&b=<2>")}})
	if v, _ := ds.Lookup("PARSE.URL"); v != `"https://x/?a=1&b=<2>"` {
		t.Errorf("got %s", v)
	}
}

func TestDefinesZoomLiteral(t *testing.T) {
	tests := []struct {
		config string
		want   string
	}{
		{`{"google": {"zoom": 12}}`, `12`},
		{`{"google": {"zoom": "12"}}`, `"12"`},
		{`{"google": {}}`, `undefined`},
	}
	for _, tt := range tests {
		services, err := config.ParseServices([]byte(tt.config))
		if err != nil {
			t.Fatalf("ParseServices(%s): %v", tt.config, err)
		}
		if v, _ := Defines(envWith(nil), services).Lookup("GOOGLE.ZOOM"); v != tt.want {
			t.Errorf("%s: GOOGLE.ZOOM = %s, want %s", tt.config, v, tt.want)
		}
	}
}
