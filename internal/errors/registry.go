package errors

// ErrorTemplate defines a registered error type.
type ErrorTemplate struct {
	Category Category
	Kind     Kind
	Message  string
	DocURL   string
}

// registry maps error codes to their templates.
var registry = map[string]ErrorTemplate{
	// ============================================
	// Configuration Errors (E120-E139)
	// ============================================

	"E120": {
		Category: CategoryConfig,
		Kind:     KindConfig,
		Message:  "Invalid config file",
		DocURL:   "https://statikapi.dev/docs/errors/E120",
	},
	"E121": {
		Category: CategoryConfig,
		Kind:     KindConfig,
		Message:  "Invalid configuration value",
		DocURL:   "https://statikapi.dev/docs/errors/E121",
	},
	"E122": {
		Category: CategoryConfig,
		Kind:     KindConfig,
		Message:  "Invalid port number",
		DocURL:   "https://statikapi.dev/docs/errors/E122",
	},

	// ============================================
	// CLI Errors (E140-E159)
	// ============================================

	"E140": {
		Category: CategoryCLI,
		Message:  "Project directory is not empty",
		DocURL:   "https://statikapi.dev/docs/errors/E140",
	},
	"E145": {
		Category: CategoryCLI,
		Message:  "Invalid template",
		DocURL:   "https://statikapi.dev/docs/errors/E145",
	},
	"E150": {
		Category: CategoryCLI,
		Message:  "Publish failed",
		DocURL:   "https://statikapi.dev/docs/errors/E150",
	},
	"E151": {
		Category: CategoryBuild,
		Message:  "Build finished with failed routes",
		DocURL:   "https://statikapi.dev/docs/errors/E151",
	},

	// ============================================
	// Build Errors (E200-E219)
	// ============================================

	"E201": {
		Category: CategoryModule,
		Kind:     KindLoad,
		Message:  "Module failed to load",
		DocURL:   "https://statikapi.dev/docs/errors/E201",
	},
	"E202": {
		Category: CategoryModule,
		Kind:     KindValidation,
		Message:  "Not JSON-serializable",
		DocURL:   "https://statikapi.dev/docs/errors/E202",
	},
	"E203": {
		Category: CategoryModule,
		Kind:     KindEnumeration,
		Message:  "Invalid paths() result",
		DocURL:   "https://statikapi.dev/docs/errors/E203",
	},
	"E204": {
		Category: CategoryBuild,
		Kind:     KindFilesystem,
		Message:  "Filesystem operation failed",
		DocURL:   "https://statikapi.dev/docs/errors/E204",
	},
	"E205": {
		Category: CategoryBuild,
		Kind:     KindConflict,
		Message:  "Route conflict",
		DocURL:   "https://statikapi.dev/docs/errors/E205",
	},
	"E206": {
		Category: CategoryBuild,
		Kind:     KindPattern,
		Message:  "Invalid route pattern",
		DocURL:   "https://statikapi.dev/docs/errors/E206",
	},
}

// GetAllCodes returns all registered error codes.
func GetAllCodes() []string {
	codes := make([]string, 0, len(registry))
	for code := range registry {
		codes = append(codes, code)
	}
	return codes
}

// GetTemplate returns the template for an error code.
func GetTemplate(code string) (ErrorTemplate, bool) {
	t, ok := registry[code]
	return t, ok
}
