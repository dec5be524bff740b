package build

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/ffyyc/web/internal/config"
)

// Define is one compile-time constant: a dotted key and the JavaScript
// literal replacing it.
type Define struct {
	Key   string
	Value string
}

// DefineSet holds the constants injected into script modules.
type DefineSet struct {
	defines []Define
	byKey   map[string]string
	groups  map[string][]Define
}

// Defines builds the constant set from the environment and the service
// configuration. Values follow JSON.stringify: strings are quoted, zoom keeps
// the JSON literal it was written with, and unset values become undefined.
func Defines(lookupEnv func(string) (string, bool), services *config.Services) *DefineSet {
	if services == nil {
		services = &config.Services{}
	}

	nodeEnv := "undefined"
	if v, ok := lookupEnv("NODE_ENV"); ok {
		nodeEnv = jsString(v)
	}

	return NewDefineSet([]Define{
		{Key: "ENV.NODE_ENV", Value: nodeEnv},
		{Key: "PARSE.APP_ID", Value: jsOptional(services.Parse.AppID)},
		{Key: "PARSE.JS_KEY", Value: jsOptional(services.Parse.JSKey)},
		{Key: "PARSE.URL", Value: jsOptional(services.Parse.URL)},
		{Key: "GOOGLE.MAP", Value: jsOptional(services.Google.Map)},
		{Key: "GOOGLE.ZOOM", Value: jsLiteral(services.Google.Zoom)},
		{Key: "GOOGLE.GA", Value: jsOptional(services.Google.GA)},
	})
}

// NewDefineSet indexes defines. Keys of the form GROUP.MEMBER also make
// GROUP itself replaceable by an object literal of its members.
func NewDefineSet(defines []Define) *DefineSet {
	ds := &DefineSet{
		defines: defines,
		byKey:   make(map[string]string, len(defines)),
		groups:  make(map[string][]Define),
	}
	for _, d := range defines {
		ds.byKey[d.Key] = d.Value
		if group, member, ok := strings.Cut(d.Key, "."); ok && !strings.Contains(member, ".") {
			ds.groups[group] = append(ds.groups[group], Define{Key: member, Value: d.Value})
		}
	}
	return ds
}

// All returns the defines in declaration order.
func (ds *DefineSet) All() []Define {
	return append([]Define(nil), ds.defines...)
}

// Lookup returns the literal for key.
func (ds *DefineSet) Lookup(key string) (string, bool) {
	v, ok := ds.byKey[key]
	return v, ok
}

// Apply replaces define keys in JavaScript source. Occurrences inside
// strings, regular expressions, template literal text and comments are left
// alone, as are property accesses such as obj.PARSE.URL. Template
// substitutions are replaced like any other code.
func (ds *DefineSet) Apply(src []byte) []byte {
	var out bytes.Buffer
	out.Grow(len(src))

	last := 0
	for _, code := range codeSpans(src) {
		out.Write(src[last:code.start])
		ds.applyCode(&out, src, code)
		last = code.end
	}
	out.Write(src[last:])
	return out.Bytes()
}

func (ds *DefineSet) applyCode(out *bytes.Buffer, src []byte, code span) {
	for i := code.start; i < code.end; {
		c := src[i]
		if !isIdentStart(c) || (i > 0 && isMemberContinuation(src, i)) {
			out.WriteByte(c)
			i++
			continue
		}
		end := i
		for end < code.end && (isIdentPart(src[end]) || src[end] == '.') {
			end++
		}
		chain := string(src[i:end])
		replaced, consumed := ds.replace(chain)
		if consumed == 0 {
			out.WriteString(chain)
		} else {
			out.WriteString(replaced)
			out.WriteString(chain[consumed:])
		}
		i = end
	}
}

// replace finds the longest define key that prefixes chain on a member
// boundary. It returns the replacement and how many bytes it covers.
func (ds *DefineSet) replace(chain string) (string, int) {
	parts := strings.Split(chain, ".")
	for k := len(parts); k > 0; k-- {
		key := strings.Join(parts[:k], ".")
		if v, ok := ds.byKey[key]; ok {
			return v, len(key)
		}
	}
	if members, ok := ds.groups[parts[0]]; ok && (len(parts) == 1 || parts[1] == "") {
		return objectLiteral(members), len(parts[0])
	}
	return "", 0
}

func objectLiteral(members []Define) string {
	var b strings.Builder
	b.WriteString("({")
	for i, m := range members {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(jsString(m.Key))
		b.WriteByte(':')
		b.WriteString(m.Value)
	}
	b.WriteString("})")
	return b.String()
}

// isMemberContinuation reports whether the identifier at i continues a
// longer identifier or follows a member access dot.
func isMemberContinuation(src []byte, i int) bool {
	j := i - 1
	if isIdentPart(src[j]) {
		return true
	}
	for j >= 0 && (src[j] == ' ' || src[j] == '\t' || src[j] == '\n' || src[j] == '\r') {
		j--
	}
	return j >= 0 && src[j] == '.' && (j == 0 || src[j-1] != '.')
}

func isIdentStart(c byte) bool {
	return c == '_' || c == '$' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}

func jsString(s string) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(s)
	return strings.TrimSuffix(buf.String(), "\n")
}

func jsOptional(s *string) string {
	if s == nil {
		return "undefined"
	}
	return jsString(*s)
}

func jsLiteral(l config.Literal) string {
	if len(l) == 0 {
		return "undefined"
	}
	return l.String()
}
