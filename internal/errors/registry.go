package errors

// Template defines a registered error type.
type Template struct {
	Category Category
	Message  string
	Detail   string
}

// registry maps error codes to their templates.
var registry = map[string]Template{
	// ============================================
	// Configuration Errors (E120-E149)
	// ============================================

	"E120": {
		Category: CategoryConfig,
		Message:  "Invalid project configuration",
		Detail:   "The project file could not be read or parsed.",
	},
	"E121": {
		Category: CategoryConfig,
		Message:  "Invalid service configuration",
		Detail:   "The service configuration (parse/google settings) could not be read, parsed or overridden from the environment.",
	},
	"E122": {
		Category: CategoryConfig,
		Message:  "Invalid configuration value",
		Detail:   "A configuration value is out of range or inconsistent.",
	},
	"E141": {
		Category: CategoryConfig,
		Message:  "Project configuration not found",
		Detail:   "No ffyyc.json or ffyyc.yaml was found for this project.",
	},
	"E142": {
		Category: CategoryBuild,
		Message:  "Cannot write build output",
		Detail:   "The output directory could not be cleaned, created or written.",
	},

	// ============================================
	// Build Errors (E150-E159)
	// ============================================

	"E150": {
		Category: CategoryBuild,
		Message:  "Transform failed",
		Detail:   "A transform step in the chain for this file returned an error.",
	},
	"E151": {
		Category: CategoryBuild,
		Message:  "Transpiler not available",
		Detail:   "JSX sources need esbuild to be transformed into plain JavaScript.",
	},
	"E152": {
		Category: CategoryBuild,
		Message:  "Stylesheet import failed",
		Detail:   "An @import in a stylesheet could not be resolved.",
	},
	"E153": {
		Category: CategoryBuild,
		Message:  "Favicon generation failed",
		Detail:   "The icon source could not be decoded or the favicon set could not be written.",
	},
	"E154": {
		Category: CategoryBuild,
		Message:  "Invalid HTML template",
		Detail:   "The index.html template could not be read.",
	},

	// ============================================
	// Publish Errors (E160-E169)
	// ============================================

	"E160": {
		Category: CategoryPublish,
		Message:  "Publish failed",
		Detail:   "Uploading the build output failed.",
	},
	"E161": {
		Category: CategoryPublish,
		Message:  "Notification failed",
		Detail:   "The build was uploaded but the Slack notification could not be sent.",
	},

	// ============================================
	// Route Errors (E170-E179)
	// ============================================

	"E170": {
		Category: CategoryRoute,
		Message:  "Invalid route table",
		Detail:   "A route pattern is malformed or declared more than once.",
	},

	// ============================================
	// CLI Errors (E180-E189)
	// ============================================

	"E180": {
		Category: CategoryCLI,
		Message:  "Unknown project template",
		Detail:   "No project template with this name exists.",
	},
	"E181": {
		Category: CategoryCLI,
		Message:  "Project already exists",
		Detail:   "The target directory already contains a project file.",
	},
}

// GetTemplate returns the template for an error code.
func GetTemplate(code string) (Template, bool) {
	t, ok := registry[code]
	return t, ok
}
