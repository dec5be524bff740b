package build

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"net/url"
	"strings"
)

// sourceMap is a version 3 source map.
type sourceMap struct {
	Version        int      `json:"version"`
	File           string   `json:"file,omitempty"`
	Sources        []string `json:"sources"`
	SourcesContent []string `json:"sourcesContent,omitempty"`
	Names          []string `json:"names"`
	Mappings       string   `json:"mappings"`
}

// indexMap is a version 3 index map. Each section maps one concatenated
// part of a bundle, placed at the generated line where the part starts.
type indexMap struct {
	Version  int       `json:"version"`
	File     string    `json:"file"`
	Sections []section `json:"sections"`
}

type section struct {
	Offset sectionOffset   `json:"offset"`
	Map    json.RawMessage `json:"map"`
}

type sectionOffset struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

// lineOrigin is the source position of one generated line. Source indexes
// the map's sources; a negative Source leaves the line unmapped.
type lineOrigin struct {
	Source int
	Line   int
}

// lineMap builds a map with one segment per generated line, at column 0.
func lineMap(sources, contents []string, origins []lineOrigin) json.RawMessage {
	data, _ := json.Marshal(sourceMap{
		Version:        3,
		Sources:        sources,
		SourcesContent: contents,
		Names:          []string{},
		Mappings:       encodeMappings(origins),
	})
	return data
}

// identityMap maps every line of src to the same line of source.
func identityMap(source string, src []byte) json.RawMessage {
	n := bytes.Count(src, []byte("\n")) + 1
	origins := make([]lineOrigin, n)
	for i := range origins {
		origins[i] = lineOrigin{Source: 0, Line: i}
	}
	return lineMap([]string{source}, []string{string(src)}, origins)
}

func encodeMappings(origins []lineOrigin) string {
	var b []byte
	prevSource, prevLine := 0, 0
	for i, o := range origins {
		if i > 0 {
			b = append(b, ';')
		}
		if o.Source < 0 {
			continue
		}
		b = appendVLQ(b, 0)
		b = appendVLQ(b, o.Source-prevSource)
		b = appendVLQ(b, o.Line-prevLine)
		b = appendVLQ(b, 0)
		prevSource, prevLine = o.Source, o.Line
	}
	return string(b)
}

const vlqDigits = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789+/"

// appendVLQ appends v as a base64 VLQ with the sign in the lowest bit.
func appendVLQ(b []byte, v int) []byte {
	u := v << 1
	if v < 0 {
		u = (-v)<<1 | 1
	}
	for {
		digit := u & 31
		u >>= 5
		if u > 0 {
			digit |= 32
		}
		b = append(b, vlqDigits[digit])
		if u == 0 {
			return b
		}
	}
}

// bundleMap joins section maps into the index map of the bundle name.
func bundleMap(name string, sections []section) []byte {
	if sections == nil {
		sections = []section{}
	}
	data, _ := json.Marshal(indexMap{Version: 3, File: name, Sections: sections})
	return data
}

// mapComment is the trailing comment linking a bundle to its map.
func mapComment(name string, css bool) string {
	if css {
		return "/*# sourceMappingURL=" + name + ".map */\n"
	}
	return "//# sourceMappingURL=" + name + ".map\n"
}

// extractInlineMap removes a trailing inline source map comment, as esbuild
// and sass write them, and returns the source and the decoded map. Without
// a readable inline map src is returned unchanged with a nil map.
func extractInlineMap(src []byte) ([]byte, json.RawMessage) {
	const marker = "sourceMappingURL=data:"
	at := bytes.LastIndex(src, []byte(marker))
	if at < 0 {
		return src, nil
	}
	start := max(bytes.LastIndex(src[:at], []byte("//#")), bytes.LastIndex(src[:at], []byte("/*#")))
	if start < 0 {
		return src, nil
	}

	ref := src[at+len("sourceMappingURL="):]
	if end := bytes.IndexAny(ref, " \t\r\n*"); end >= 0 {
		ref = ref[:end]
	}
	header, payload, ok := strings.Cut(string(ref), ",")
	if !ok || !strings.HasPrefix(header, "data:application/json") {
		return src, nil
	}

	var data []byte
	var err error
	if strings.HasSuffix(header, ";base64") {
		data, err = base64.StdEncoding.DecodeString(payload)
	} else {
		var s string
		s, err = url.PathUnescape(payload)
		data = []byte(s)
	}
	if err != nil || !json.Valid(data) {
		return src, nil
	}
	return src[:start], data
}
