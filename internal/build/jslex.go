package build

import "bytes"

// span is a half-open byte range of a source file.
type span struct {
	start, end int
}

// jsLexer splits JavaScript into code and non-code. Non-code is comments,
// string and regular expression literals, and the text of template
// literals. Template substitutions are code.
type jsLexer struct {
	src  []byte
	code []span
}

// codeSpans returns the code spans of src in order.
func codeSpans(src []byte) []span {
	l := &jsLexer{src: src}
	l.scanCode(0, false)
	return l.code
}

// inCode reports whether offset lies in one of spans.
func inCode(spans []span, offset int) bool {
	for _, s := range spans {
		if offset < s.start {
			return false
		}
		if offset < s.end {
			return true
		}
	}
	return false
}

// scanCode scans code from i. When nested it stops at the brace closing a
// template substitution and returns its index.
func (l *jsLexer) scanCode(i int, nested bool) int {
	src := l.src
	n := len(src)
	start := i
	emit := func(end int) {
		if end > start {
			l.code = append(l.code, span{start, end})
		}
	}

	depth := 0
	// prev is the last significant byte and word the identifier it ended,
	// which together decide whether a slash starts a regular expression.
	var prev byte
	word := ""
	for i < n {
		c := src[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
			continue

		case c == '/' && i+1 < n && src[i+1] == '/':
			emit(i)
			end := bytes.IndexByte(src[i:], '\n')
			if end < 0 {
				end = n - i
			}
			i += end
			start = i
			continue

		case c == '/' && i+1 < n && src[i+1] == '*':
			emit(i)
			end := bytes.Index(src[i+2:], []byte("*/"))
			if end < 0 {
				return n
			}
			i += 2 + end + 2
			start = i
			continue

		case c == '"' || c == '\'':
			emit(i)
			i = skipQuoted(src, i)
			start = i
			prev = '"'

		case c == '`':
			emit(i)
			i = l.template(i)
			start = i
			prev = '`'

		case c == '/' && regexAllowed(prev, word):
			emit(i)
			i = skipRegex(src, i)
			start = i
			prev = '/'

		case c == '{':
			depth++
			prev = c
			i++

		case c == '}':
			if nested && depth == 0 {
				emit(i)
				return i
			}
			depth--
			prev = c
			i++

		case isIdentPart(c):
			j := i
			for j < n && isIdentPart(src[j]) {
				j++
			}
			word = ""
			if isIdentStart(c) {
				word = string(src[i:j])
			}
			prev = 'a'
			i = j
			continue

		default:
			prev = c
			i++
		}
		word = ""
	}
	emit(n)
	return n
}

// template returns the index just past the template literal starting at i.
func (l *jsLexer) template(i int) int {
	src := l.src
	for j := i + 1; j < len(src); j++ {
		switch src[j] {
		case '\\':
			j++
		case '`':
			return j + 1
		case '$':
			if j+1 < len(src) && src[j+1] == '{' {
				j = l.scanCode(j+2, true)
			}
		}
	}
	return len(src)
}

var regexKeywords = map[string]bool{
	"return": true, "typeof": true, "instanceof": true, "in": true, "of": true,
	"new": true, "delete": true, "void": true, "throw": true, "case": true,
	"do": true, "else": true, "yield": true, "await": true,
}

// regexAllowed reports whether a slash after prev starts a regular
// expression rather than a division. After an identifier only keywords
// allow one.
func regexAllowed(prev byte, word string) bool {
	if prev == 'a' {
		return regexKeywords[word]
	}
	if prev == 0 {
		return true
	}
	return bytes.IndexByte([]byte("(,=:[!&|?{};+-*%<>~^"), prev) >= 0
}

// skipRegex returns the index just past the regular expression literal
// starting at i. Flags are left to the caller as identifier bytes.
func skipRegex(src []byte, i int) int {
	class := false
	for j := i + 1; j < len(src); j++ {
		switch src[j] {
		case '\\':
			j++
		case '[':
			class = true
		case ']':
			class = false
		case '/':
			if !class {
				return j + 1
			}
		case '\n':
			return j
		}
	}
	return len(src)
}

// skipQuoted returns the index just past the string literal starting at i.
// An unterminated literal ends at the line break.
func skipQuoted(src []byte, i int) int {
	quote := src[i]
	for j := i + 1; j < len(src); j++ {
		switch src[j] {
		case '\\':
			j++
		case quote:
			return j + 1
		case '\n':
			return j + 1
		}
	}
	return len(src)
}
