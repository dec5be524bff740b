package build

import (
	"path"
	"regexp"
	"strings"
)

// Step is one transform in a rule's chain.
type Step string

const (
	// StepDefine substitutes compile-time constants.
	StepDefine Step = "define"

	// StepTranspile turns JSX and modern syntax into plain JavaScript.
	StepTranspile Step = "transpile"

	// StepSass compiles SCSS/Sass into CSS.
	StepSass Step = "sass"

	// StepCSS resolves url() references in CSS against the file rules.
	StepCSS Step = "css"
)

// Bucket is the bundle a script module is emitted into.
type Bucket string

const (
	BucketCommon Bucket = "common"
	BucketVendor Bucket = "vendor"
	BucketMain   Bucket = "main"
)

// Kind says what happens to a file a rule claims.
type Kind int

const (
	// KindScript files become modules of a script bundle.
	KindScript Kind = iota

	// KindStylesheet files are extracted into the stylesheet.
	KindStylesheet

	// KindFile files are copied under Rule.Name.
	KindFile
)

// Rule claims files by path and says how to transform them.
//
// Chain lists steps outermost first, the way loader chains are written, so
// the last step runs first: Chain{StepCSS, StepSass} compiles Sass and then
// processes the resulting CSS.
type Rule struct {
	Name    string
	Test    *regexp.Regexp
	Include *regexp.Regexp
	Exclude *regexp.Regexp
	Kind    Kind
	Chain   []Step
	Bucket  Bucket

	// Output is the emitted name of a KindFile asset. [name] is the base
	// name without extension, [ext] the extension without the dot.
	Output string
}

// Matches reports whether the rule claims the slash-separated path p.
func (r Rule) Matches(p string) bool {
	if !r.Test.MatchString(p) {
		return false
	}
	if r.Include != nil && !r.Include.MatchString(p) {
		return false
	}
	if r.Exclude != nil && r.Exclude.MatchString(p) {
		return false
	}
	return true
}

// Steps returns the chain in execution order.
func (r Rule) Steps() []Step {
	steps := make([]Step, len(r.Chain))
	for i, s := range r.Chain {
		steps[len(r.Chain)-1-i] = s
	}
	return steps
}

// OutputName expands Output for the file at p.
func (r Rule) OutputName(p string) string {
	base := path.Base(queryOrHashRef.ReplaceAllString(p, ""))
	ext := path.Ext(base)
	name := strings.TrimSuffix(base, ext)
	out := strings.ReplaceAll(r.Output, "[name]", name)
	return strings.ReplaceAll(out, "[ext]", strings.TrimPrefix(ext, "."))
}

// RuleSet is an ordered rule list; the first matching rule claims a file.
type RuleSet []Rule

// Match returns the rule claiming p.
func (rs RuleSet) Match(p string) (Rule, bool) {
	for _, r := range rs {
		if r.Matches(p) {
			return r, true
		}
	}
	return Rule{}, false
}

var (
	scriptTest     = regexp.MustCompile(`\.jsx?$`)
	cssTest        = regexp.MustCompile(`\.css$`)
	sassTest       = regexp.MustCompile(`\.(sass|scss)$`)
	fontTest       = regexp.MustCompile(`\.(ttf|otf|eot|woff2?)(\?[a-z0-9]+)?$`)
	imageTest      = regexp.MustCompile(`\.(jpg|jpeg|gif|png|svg)$`)
	queryOrHashRef = regexp.MustCompile(`[?#].*$`)
)

// DefaultRules returns the project rule set. thirdParty is the name of the
// directory holding third-party packages; scripts inside it are vendor
// modules and skip transpiling.
func DefaultRules(thirdParty string) RuleSet {
	thirdParty = strings.Trim(path.Clean("/"+thirdParty), "/")
	inThirdParty := regexp.MustCompile(`(^|/)` + regexp.QuoteMeta(thirdParty) + `/`)

	return RuleSet{
		{
			Name:    "scripts",
			Test:    scriptTest,
			Exclude: inThirdParty,
			Kind:    KindScript,
			Chain:   []Step{StepDefine, StepTranspile},
			Bucket:  BucketMain,
		},
		{
			Name:    "vendor-scripts",
			Test:    scriptTest,
			Include: inThirdParty,
			Kind:    KindScript,
			Chain:   []Step{StepDefine},
			Bucket:  BucketVendor,
		},
		{
			Name:  "css",
			Test:  cssTest,
			Kind:  KindStylesheet,
			Chain: []Step{StepCSS},
		},
		{
			Name:  "scss",
			Test:  sassTest,
			Kind:  KindStylesheet,
			Chain: []Step{StepCSS, StepSass},
		},
		{
			Name:   "fonts",
			Test:   fontTest,
			Kind:   KindFile,
			Output: "fonts/[name].[ext]",
		},
		{
			Name:   "images",
			Test:   imageTest,
			Kind:   KindFile,
			Output: "img/[name].[ext]",
		},
	}
}
