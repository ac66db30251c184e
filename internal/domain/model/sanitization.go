package model

import "regexp"

// Finding is one itemized sanitizer observation. Path is empty for top-level
// scalars. KeyRewrite marks findings that only renamed a key; those do not
// invalidate a result.
type Finding struct {
	Path       string
	Message    string
	KeyRewrite bool
}

// String renders the finding with its path prefix.
func (f Finding) String() string {
	if f.Path == "" {
		return f.Message
	}
	return f.Path + ": " + f.Message
}

// SanitizationResult is the outcome of cleaning one untrusted value.
type SanitizationResult struct {
	Valid    bool
	Value    Value
	Findings []Finding
}

// Messages returns the findings as display strings in order.
func (r SanitizationResult) Messages() []string {
	out := make([]string, len(r.Findings))
	for i, f := range r.Findings {
		out[i] = f.String()
	}
	return out
}

// StringLimits configures SanitizeString. A zero MaxLength means the default.
type StringLimits struct {
	MaxLength int
	MinLength int
	Required  bool
	AllowHTML bool
	// Pattern, when set, must match the cleaned value.
	Pattern *regexp.Regexp
}
