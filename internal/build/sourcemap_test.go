package build

import (
	"encoding/base64"
	"encoding/json"
	"testing"
)

func TestAppendVLQ(t *testing.T) {
	tests := []struct {
		in   int
		want string
	}{
		{0, "A"},
		{1, "C"},
		{-1, "D"},
		{15, "e"},
		{16, "gB"},
		{-16, "hB"},
		{1000, "w+B"},
	}
	for _, tt := range tests {
		if got := string(appendVLQ(nil, tt.in)); got != tt.want {
			t.Errorf("appendVLQ(%d) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestEncodeMappings(t *testing.T) {
	tests := []struct {
		name    string
		origins []lineOrigin
		want    string
	}{
		{"identity", []lineOrigin{{0, 0}, {0, 1}, {0, 2}}, "AAAA;AACA;AACA"},
		{"unmapped line", []lineOrigin{{0, 0}, {-1, 0}, {1, 4}}, "AAAA;;ACIA"},
		{"back to first source", []lineOrigin{{1, 3}, {0, 0}}, "ACGA;ADHA"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := encodeMappings(tt.origins); got != tt.want {
				t.Errorf("encodeMappings = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestIdentityMap(t *testing.T) {
	var m sourceMap
	if err := json.Unmarshal(identityMap("js/a.js", []byte("a\nb\n")), &m); err != nil {
		t.Fatal(err)
	}
	if m.Version != 3 || len(m.Sources) != 1 || m.Sources[0] != "js/a.js" {
		t.Errorf("map = %+v", m)
	}
	if m.Mappings != "AAAA;AACA;AACA" {
		t.Errorf("mappings = %s", m.Mappings)
	}
	if len(m.SourcesContent) != 1 || m.SourcesContent[0] != "a\nb\n" {
		t.Errorf("sourcesContent = %q", m.SourcesContent)
	}
}

func TestExtractInlineMap(t *testing.T) {
	payload := `{"version":3}`
	tests := []struct {
		name    string
		src     string
		wantSrc string
		wantMap string
	}{
		{
			"script base64",
			"var a = 1;\n//# sourceMappingURL=data:application/json;base64," + base64.StdEncoding.EncodeToString([]byte(payload)) + "\n",
			"var a = 1;\n",
			payload,
		},
		{
			"stylesheet base64 with charset",
			"p{}\n\n/*# sourceMappingURL=data:application/json;charset=utf-8;base64," + base64.StdEncoding.EncodeToString([]byte(payload)) + " */\n",
			"p{}\n\n",
			payload,
		},
		{
			"url encoded",
			"p{}\n/*# sourceMappingURL=data:application/json;charset=utf-8,%7B%22version%22%3A3%7D */",
			"p{}\n",
			payload,
		},
		{"none", "var a = 1;\n", "var a = 1;\n", ""},
		{"external file", "var a = 1;\n//# sourceMappingURL=a.js.map\n", "var a = 1;\n//# sourceMappingURL=a.js.map\n", ""},
		{"not json", "x\n//# sourceMappingURL=data:application/json,oops\n", "x\n//# sourceMappingURL=data:application/json,oops\n", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src, m := extractInlineMap([]byte(tt.src))
			if string(src) != tt.wantSrc {
				t.Errorf("src = %q, want %q", src, tt.wantSrc)
			}
			if string(m) != tt.wantMap {
				t.Errorf("map = %s, want %s", m, tt.wantMap)
			}
		})
	}
}

func TestBundlerSections(t *testing.T) {
	var b bundler
	b.add("a.js", nil, []byte("one\ntwo"), identityMap("a.js", []byte("one\ntwo")))
	b.add("b.js", nil, nil, nil)
	b.add("c.js", nil, []byte("three\n"), identityMap("c.js", []byte("three\n")))

	if len(b.sections) != 2 {
		t.Fatalf("sections = %d, want 2", len(b.sections))
	}
	// Each define header takes one line and each footer another.
	if b.sections[0].Offset.Line != 1 || b.sections[1].Offset.Line != 7 {
		t.Errorf("offsets = %d, %d, want 1, 7", b.sections[0].Offset.Line, b.sections[1].Offset.Line)
	}
}
