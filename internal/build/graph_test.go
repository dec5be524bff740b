package build

import (
	"reflect"
	"testing"
)

func TestScanImports(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want []string
	}{
		{"require", `var a = require('./a'); var b = require("b");`, []string{"./a", "b"}},
		{"import", "import x from './x';\nimport './side';\nexport * from \"./y\";", []string{"./x", "./side", "./y"}},
		{"duplicates", `require('./a'); require('./a');`, []string{"./a"}},
		{"line comment", "// var old = require('./old');\nvar a = require('./a');", []string{"./a"}},
		{"block comment", "/*\nimport x from './x';\n*/\nrequire('./a');", []string{"./a"}},
		{"string", `var doc = "call require('./x') to load x"; require('./a');`, []string{"./a"}},
		{"template text", "var doc = `require('./x')`;", nil},
		{"template substitution", "var m = `${require('./a').name}`;", []string{"./a"}},
		{"regex", `var re = /require\('.\/x'\)/; require('./a');`, []string{"./a"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := scanImports([]byte(tt.src))
			if len(got) == 0 && len(tt.want) == 0 {
				return
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("scanImports = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCodeSpans(t *testing.T) {
	src := "a = 'x' + `t${b}t`; // c\n/r/g"
	var got []string
	for _, s := range codeSpans([]byte(src)) {
		got = append(got, src[s.start:s.end])
	}
	want := []string{"a = ", " + ", "b", "; ", "\n", "g"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("codeSpans = %q, want %q", got, want)
	}
}
