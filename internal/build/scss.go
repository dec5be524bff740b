package build

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"

	"github.com/ffyyc/web/internal/errors"
)

// preprocessSCSS is the built-in fallback for the sass binary. It covers
// the subset flat stylesheets use: local @import of partials, variables
// (including !default and #{} interpolation) and // comments. Nesting,
// mixins and functions need the real compiler.
func preprocessSCSS(file string) ([]byte, error) {
	return newSCSSProcessor().run(file)
}

type scssProcessor struct {
	vars   map[string]string
	active map[string]bool

	// sources lists the files read, in first-read order, and origins
	// holds the source position of every output line.
	sources   []string
	sourceIDs map[string]int
	origins   []lineOrigin
	midLine   bool
}

func newSCSSProcessor() *scssProcessor {
	return &scssProcessor{
		vars:      make(map[string]string),
		active:    make(map[string]bool),
		sourceIDs: make(map[string]int),
	}
}

func (p *scssProcessor) run(file string) ([]byte, error) {
	var out bytes.Buffer
	if err := p.process(file, &out); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

// emit writes data that starts at the one-based line of source, recording
// the origin of every output line it begins.
func (p *scssProcessor) emit(out *bytes.Buffer, data []byte, source, line int) {
	for _, c := range data {
		if !p.midLine {
			p.origins = append(p.origins, lineOrigin{Source: source, Line: line - 1})
			p.midLine = true
		}
		if c == '\n' {
			p.midLine = false
			line++
		}
	}
	out.Write(data)
}

func (p *scssProcessor) sourceID(file string) int {
	if id, ok := p.sourceIDs[file]; ok {
		return id
	}
	id := len(p.sources)
	p.sources = append(p.sources, file)
	p.sourceIDs[file] = id
	return id
}

func (p *scssProcessor) process(file string, out *bytes.Buffer) error {
	abs, _ := filepath.Abs(file)
	if p.active[abs] {
		return errors.New("E152").WithDetail("Import cycle through " + filepath.Base(file))
	}
	p.active[abs] = true
	defer delete(p.active, abs)

	raw, err := os.ReadFile(file)
	if err != nil {
		return errors.New("E152").WithDetail("Cannot read " + file).Wrap(err)
	}
	src := stripLineComments(raw)
	source := p.sourceID(abs)

	depth := 0
	line := 1
	for i := 0; i < len(src); {
		c := src[i]
		switch {
		case c == '"' || c == '\'':
			end := skipQuoted(src, i)
			p.emit(out, src[i:end], source, line)
			line += bytes.Count(src[i:end], []byte("\n"))
			i = end

		case c == '{':
			depth++
			p.emit(out, src[i:i+1], source, line)
			i++

		case c == '}':
			depth--
			p.emit(out, src[i:i+1], source, line)
			i++

		case c == '@' && bytes.HasPrefix(src[i:], []byte("@import")) && depth == 0:
			end := statementEnd(src, i)
			stmt := strings.TrimSpace(string(src[i+len("@import") : end]))
			if err := p.importAll(file, source, stmt, line, out); err != nil {
				return err
			}
			line += bytes.Count(src[i:end], []byte("\n"))
			i = skipSemicolon(src, end)

		case c == '$' && isVarDefinition(src[i:]):
			end := statementEnd(src, i)
			stmt := string(src[i+1 : end])
			name, value, _ := strings.Cut(stmt, ":")
			name = strings.TrimSpace(name)
			value = strings.TrimSpace(value)
			isDefault := strings.HasSuffix(value, "!default")
			value = strings.TrimSpace(strings.TrimSuffix(value, "!default"))
			expanded, err := p.expand(value, file, line)
			if err != nil {
				return err
			}
			if _, exists := p.vars[name]; !exists || !isDefault {
				p.vars[name] = expanded
			}
			line += bytes.Count(src[i:end], []byte("\n"))
			i = skipSemicolon(src, end)

		case c == '$' || (c == '#' && i+1 < len(src) && src[i+1] == '{'):
			end := i + 1
			if c == '#' {
				closing := bytes.IndexByte(src[i:], '}')
				if closing < 0 {
					return errors.New("E150").WithDetail("Unterminated interpolation").WithLocation(file, line, 0)
				}
				end = i + closing + 1
			} else {
				for end < len(src) && isVarPart(src[end]) {
					end++
				}
			}
			expanded, err := p.expand(string(src[i:end]), file, line)
			if err != nil {
				return err
			}
			p.emit(out, []byte(expanded), source, line)
			i = end

		default:
			p.emit(out, src[i:i+1], source, line)
			if c == '\n' {
				line++
			}
			i++
		}
	}
	return nil
}

// importAll handles the comma-separated targets of one @import.
func (p *scssProcessor) importAll(file string, source int, stmt string, line int, out *bytes.Buffer) error {
	for _, target := range strings.Split(stmt, ",") {
		target = strings.TrimSpace(target)
		unquoted := strings.Trim(target, `"'`)
		if strings.HasPrefix(target, "url(") || strings.HasSuffix(unquoted, ".css") || isExternalRef(unquoted) {
			p.emit(out, []byte("@import "+target+";"), source, line)
			continue
		}
		resolved, ok := resolvePartial(filepath.Dir(file), unquoted)
		if !ok {
			return errors.New("E152").
				WithDetail("Cannot find stylesheet to import: " + unquoted).
				WithLocation(file, line, 0).
				WithSuggestion("Partials are looked up as " + unquoted + ".scss and _" + filepath.Base(unquoted) + ".scss next to the importing file")
		}
		if err := p.process(resolved, out); err != nil {
			return err
		}
	}
	return nil
}

// expand substitutes $name and #{$name} references in s.
func (p *scssProcessor) expand(s, file string, line int) (string, error) {
	var b strings.Builder
	for i := 0; i < len(s); {
		switch {
		case strings.HasPrefix(s[i:], "#{"):
			end := strings.IndexByte(s[i:], '}')
			if end < 0 {
				return "", errors.New("E150").WithDetail("Unterminated interpolation").WithLocation(file, line, 0)
			}
			inner, err := p.expand(strings.TrimSpace(s[i+2 : i+end]), file, line)
			if err != nil {
				return "", err
			}
			b.WriteString(strings.Trim(inner, `"'`))
			i += end + 1
		case s[i] == '$':
			end := i + 1
			for end < len(s) && isVarPart(s[end]) {
				end++
			}
			name := s[i+1 : end]
			v, ok := p.vars[name]
			if !ok {
				return "", errors.New("E150").
					WithDetail("Undefined variable: $" + name).
					WithLocation(file, line, 0)
			}
			b.WriteString(v)
			i = end
		default:
			b.WriteByte(s[i])
			i++
		}
	}
	return b.String(), nil
}

// resolvePartial finds name relative to dir, trying the partial and
// extension variants Sass accepts.
func resolvePartial(dir, name string) (string, bool) {
	base := filepath.Join(dir, filepath.FromSlash(name))
	partial := filepath.Join(filepath.Dir(base), "_"+filepath.Base(base))
	candidates := []string{base}
	if filepath.Ext(base) == "" {
		candidates = []string{base + ".scss", partial + ".scss", base + ".sass", partial + ".sass"}
	} else {
		candidates = append(candidates, partial)
	}
	for _, c := range candidates {
		if fileExists(c) {
			return c, true
		}
	}
	return "", false
}

// stripLineComments removes // comments outside strings and url()
// tokens, leaving newlines so line numbers stay correct. "//" right after
// ':' is kept for URLs.
func stripLineComments(src []byte) []byte {
	var out bytes.Buffer
	out.Grow(len(src))
	for i := 0; i < len(src); {
		c := src[i]
		switch {
		case c == '"' || c == '\'':
			end := skipQuoted(src, i)
			out.Write(src[i:end])
			i = end
		case (c == 'u' || c == 'U') && isURLToken(src, i):
			end := urlEnd(src, i)
			out.Write(src[i:end])
			i = end
		case c == '/' && i+1 < len(src) && src[i+1] == '*':
			end := bytes.Index(src[i+2:], []byte("*/"))
			if end < 0 {
				out.Write(src[i:])
				return out.Bytes()
			}
			out.Write(src[i : i+end+4])
			i += end + 4
		case c == '/' && i+1 < len(src) && src[i+1] == '/' && (i == 0 || src[i-1] != ':'):
			for i < len(src) && src[i] != '\n' {
				i++
			}
		default:
			out.WriteByte(c)
			i++
		}
	}
	return out.Bytes()
}

// isURLToken reports whether an unquoted url( token starts at i.
func isURLToken(src []byte, i int) bool {
	if i > 0 && (isVarPart(src[i-1]) || src[i-1] == '$') {
		return false
	}
	if len(src)-i < 4 || !bytes.EqualFold(src[i:i+4], []byte("url(")) {
		return false
	}
	j := i + 4
	for j < len(src) && (src[j] == ' ' || src[j] == '\t') {
		j++
	}
	return j < len(src) && src[j] != '"' && src[j] != '\''
}

// urlEnd returns the index just past the ')' closing the url( token at i,
// or the line break when it is unterminated.
func urlEnd(src []byte, i int) int {
	for j := i + 4; j < len(src); j++ {
		switch src[j] {
		case '\\':
			j++
		case ')':
			return j + 1
		case '\n':
			return j
		}
	}
	return len(src)
}

// statementEnd returns the index of the ';' or '}' ending the statement
// at i, skipping quoted strings. Without one it returns len(src).
func statementEnd(src []byte, i int) int {
	for j := i; j < len(src); {
		switch src[j] {
		case '"', '\'':
			j = skipQuoted(src, j)
		case ';', '}':
			return j
		default:
			j++
		}
	}
	return len(src)
}

// skipSemicolon steps over the terminator at end when it is a ';'. A '}'
// is left for the block tracking.
func skipSemicolon(src []byte, end int) int {
	if end < len(src) && src[end] == ';' {
		return end + 1
	}
	return end
}

func isVarDefinition(src []byte) bool {
	j := 1
	for j < len(src) && isVarPart(src[j]) {
		j++
	}
	if j == 1 {
		return false
	}
	for j < len(src) && (src[j] == ' ' || src[j] == '\t') {
		j++
	}
	return j < len(src) && src[j] == ':'
}

func isVarPart(c byte) bool {
	return c == '-' || c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}
