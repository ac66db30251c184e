package application

import (
	"fmt"
	"html"
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"

	"github.com/ericfisherdev/policypanel/internal/domain/model"
)

const (
	// MaxPayloadSize bounds the serialized size of one row payload, in characters.
	MaxPayloadSize = 10000
	// DefaultStringMaxLength applies when StringLimits.MaxLength is zero.
	DefaultStringMaxLength = 5000
	maxKeyLength           = 256
)

// dangerousPatterns is the fixed catalogue stripped from plain-text values.
// Each pattern removes at most its first match per call, so content that only
// becomes dangerous after one removal survives.
var dangerousPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?is)<script\b.*?</script>`),
	regexp.MustCompile(`(?i)javascript:`),
	regexp.MustCompile(`(?i)on\w+\s*=`),
	regexp.MustCompile(`(?i)data:\s*text/html`),
	regexp.MustCompile(`(?i)<iframe`),
	regexp.MustCompile(`(?i)<object`),
	regexp.MustCompile(`(?i)<embed`),
	regexp.MustCompile(`(?i)<link`),
	regexp.MustCompile(`(?i)<meta`),
	regexp.MustCompile(`(?i)expression\s*\(`),
	regexp.MustCompile(`(?i)url\s*\(\s*["']?\s*javascript:`),
}

var (
	unsafeKeyChars = regexp.MustCompile(`[<>'"\\]`)
	controlChars   = regexp.MustCompile(`[\x00-\x1f\x7f]`)
	blockedScheme  = regexp.MustCompile(`(?i)^(javascript|data|vbscript):`)
)

// Finding messages.
const (
	msgDangerous  = "Potentially dangerous content detected and removed"
	msgDisallowed = "Disallowed HTML removed"
	msgPattern    = "Value does not match required pattern"
	msgRequired   = "Value is required"
)

// InputSanitizer cleans and validates untrusted values before they reach the
// write path. It is safe for concurrent use.
type InputSanitizer struct {
	htmlPolicy *bluemonday.Policy
}

// NewInputSanitizer creates an InputSanitizer. Fields that allow HTML are
// filtered through a user-generated-content allowlist.
func NewInputSanitizer() *InputSanitizer {
	return &InputSanitizer{htmlPolicy: bluemonday.UGCPolicy()}
}

// SanitizeString cleans one string. Over-long values are truncated with a
// finding. Plain-text values have the dangerous pattern catalogue stripped;
// AllowHTML values go through the HTML allowlist instead. The empty string
// counts as absent for Required.
func (s *InputSanitizer) SanitizeString(value string, limits model.StringLimits) model.SanitizationResult {
	if value == "" && limits.Required {
		return model.SanitizationResult{
			Valid:    false,
			Value:    model.Text(""),
			Findings: []model.Finding{{Message: msgRequired}},
		}
	}

	findings := s.cleanString(&value, limits)
	return model.SanitizationResult{
		Valid:    len(findings) == 0,
		Value:    model.Text(value),
		Findings: findings,
	}
}

func (s *InputSanitizer) cleanString(value *string, limits model.StringLimits) []model.Finding {
	var findings []model.Finding

	maxLength := limits.MaxLength
	if maxLength <= 0 {
		maxLength = DefaultStringMaxLength
	}
	if utf8.RuneCountInString(*value) > maxLength {
		findings = append(findings, model.Finding{
			Message: fmt.Sprintf("Value exceeds maximum length of %d characters", maxLength),
		})
		*value = truncateRunes(*value, maxLength)
	}

	if limits.MinLength > 0 && utf8.RuneCountInString(*value) < limits.MinLength {
		findings = append(findings, model.Finding{
			Message: fmt.Sprintf("Value must be at least %d characters", limits.MinLength),
		})
	}

	if limits.AllowHTML {
		cleaned := s.htmlPolicy.Sanitize(*value)
		if html.UnescapeString(cleaned) != html.UnescapeString(*value) {
			findings = append(findings, model.Finding{Message: msgDisallowed})
		}
		*value = cleaned
	} else {
		for _, pattern := range dangerousPatterns {
			loc := pattern.FindStringIndex(*value)
			if loc == nil {
				continue
			}
			*value = (*value)[:loc[0]] + (*value)[loc[1]:]
			findings = append(findings, model.Finding{Message: msgDangerous})
		}
	}

	if limits.Pattern != nil && !limits.Pattern.MatchString(*value) {
		findings = append(findings, model.Finding{Message: msgPattern})
	}

	return findings
}

// SanitizeRowData cleans an arbitrary value tree. A payload whose serialized
// form exceeds MaxPayloadSize is rejected whole and returned unchanged. Keys
// are cleaned of markup and control characters; a rewritten key is reported
// but does not invalidate the result. Findings carry the path of the value
// they concern ("notes", "tags[2]", "meta.source").
func (s *InputSanitizer) SanitizeRowData(data model.Map) model.SanitizationResult {
	encoded, err := model.MarshalValue(data)
	if err != nil {
		return model.SanitizationResult{
			Valid:    false,
			Value:    data,
			Findings: []model.Finding{{Message: fmt.Sprintf("Data could not be serialized: %v", err)}},
		}
	}
	if utf8.RuneCount(encoded) > MaxPayloadSize {
		return model.SanitizationResult{
			Valid:    false,
			Value:    data,
			Findings: []model.Finding{{Message: fmt.Sprintf("Data exceeds maximum size of %d characters", MaxPayloadSize)}},
		}
	}

	var findings []model.Finding
	cleaned := s.walkMap(data, "", &findings)

	valid := true
	for _, f := range findings {
		if !f.KeyRewrite {
			valid = false
			break
		}
	}
	return model.SanitizationResult{Valid: valid, Value: cleaned, Findings: findings}
}

func (s *InputSanitizer) walkMap(m model.Map, prefix string, findings *[]model.Finding) model.Map {
	out := make(model.Map, len(m))
	for _, key := range m.SortedKeys() {
		cleanKey := sanitizeKey(key)
		if cleanKey != key {
			*findings = append(*findings, model.Finding{
				Path:       prefix,
				Message:    fmt.Sprintf("Key %q was sanitized", key),
				KeyRewrite: true,
			})
		}
		out[cleanKey] = s.walkValue(m[key], joinPath(prefix, key), findings)
	}
	return out
}

func (s *InputSanitizer) walkValue(v model.Value, path string, findings *[]model.Finding) model.Value {
	switch val := v.(type) {
	case model.Text:
		str := string(val)
		for _, f := range s.cleanString(&str, model.StringLimits{}) {
			f.Path = path
			*findings = append(*findings, f)
		}
		return model.Text(str)
	case model.List:
		out := make(model.List, len(val))
		for i, elem := range val {
			out[i] = s.walkValue(elem, fmt.Sprintf("%s[%d]", path, i), findings)
		}
		return out
	case model.Map:
		return s.walkMap(val, path, findings)
	default:
		// Null, Bool and Number pass through.
		return v
	}
}

func joinPath(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}

// sanitizeKey strips characters unsafe for downstream JSON or markup use and
// clamps the key length.
func sanitizeKey(key string) string {
	key = unsafeKeyChars.ReplaceAllString(key, "")
	key = controlChars.ReplaceAllString(key, "")
	key = strings.TrimSpace(key)
	return truncateRunes(key, maxKeyLength)
}

// SanitizeURL blanks script-capable schemes and otherwise returns the trimmed URL.
func (s *InputSanitizer) SanitizeURL(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if blockedScheme.MatchString(trimmed) {
		return ""
	}
	return trimmed
}

// IsValidURL reports whether raw is empty or an absolute http(s) URL.
func (s *InputSanitizer) IsValidURL(raw string) bool {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return true
	}
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
