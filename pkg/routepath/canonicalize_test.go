package routepath

import "testing"

func TestCanonicalize(t *testing.T) {
	tests := []struct {
		input string
		want  string
		err   error
	}{
		{"", "/", nil},
		{"/", "/", nil},
		{"/about", "/about", nil},
		{"/about/", "/about", nil},
		{"about", "/about", nil},
		{"//search///x", "/search/x", nil},
		{"/a/./b", "/a/b", nil},
		{"/a/b/../c", "/a/c", nil},
		{"/privacy?ref=nav", "/privacy", nil},
		{"/privacy#top", "/privacy", nil},
		{"/caf%C3%A9", "/caf%C3%A9", nil},
		{"/../secret", "", ErrPathEscapesRoot},
		{"/a\\b", "", ErrBackslashInPath},
		{"/a%00b", "", ErrNullByteInPath},
		{"/a%GG", "", ErrInvalidPercentEscape},
		{"/a%2", "", ErrInvalidPercentEscape},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := Canonicalize(tt.input)
			if err != tt.err {
				t.Fatalf("Canonicalize(%q) error = %v, want %v", tt.input, err, tt.err)
			}
			if got != tt.want {
				t.Errorf("Canonicalize(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestSegments(t *testing.T) {
	if got := Segments("/"); got != nil {
		t.Errorf("Segments(/) = %v, want nil", got)
	}
	got := Segments("/a/b")
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Errorf("Segments(/a/b) = %v", got)
	}
}

func TestDecodeSegment(t *testing.T) {
	got, err := DecodeSegment("caf%C3%A9", false)
	if err != nil || got != "café" {
		t.Errorf("DecodeSegment = %q, %v", got, err)
	}
	if _, err := DecodeSegment("a%2Fb", false); err != ErrEncodedSlashInSegment {
		t.Errorf("encoded slash error = %v", err)
	}
	if got, err := DecodeSegment("a%2Fb", true); err != nil || got != "a/b" {
		t.Errorf("catch-all DecodeSegment = %q, %v", got, err)
	}
}
