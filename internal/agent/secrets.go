package agent

import "regexp"

// secretPattern is one recognizable credential shape. kind is logged so
// an operator can tell what was redacted without seeing the value itself.
type secretPattern struct {
	kind    string
	pattern *regexp.Regexp
}

var secretPatterns = []secretPattern{
	{"anthropic_api_key", regexp.MustCompile(`\bsk-ant-[A-Za-z0-9_-]{20,}\b`)},
	{"openai_api_key", regexp.MustCompile(`\bsk-[A-Za-z0-9]{20,}\b`)},
	{"aws_access_key", regexp.MustCompile(`\bAKIA[0-9A-Z]{16}\b`)},
	{"github_token", regexp.MustCompile(`\bgh[pousr]_[A-Za-z0-9]{30,}\b`)},
	{"slack_token", regexp.MustCompile(`\bxox[baprs]-[A-Za-z0-9-]{10,}\b`)},
	{"bearer_token", regexp.MustCompile(`(?i)\bBearer\s+[A-Za-z0-9._-]{15,}\b`)},
	{"private_key_block", regexp.MustCompile(`-----BEGIN[A-Z ]*PRIVATE KEY-----`)},
	{"generic_secret_assignment", regexp.MustCompile(`(?i)\b(api[_-]?key|secret|password|token)\s*[:=]\s*['"]?[A-Za-z0-9._-]{12,}['"]?`)},
}

// sanitizeSecrets redacts recognizable credential shapes from content,
// returning the cleaned text and the distinct kinds it found (for a
// warning log, never the matched value itself). kinds is nil when
// nothing matched.
func sanitizeSecrets(content string) (sanitized string, kinds []string) {
	seen := make(map[string]bool)
	sanitized = content
	for _, p := range secretPatterns {
		if p.pattern.MatchString(sanitized) {
			if !seen[p.kind] {
				seen[p.kind] = true
				kinds = append(kinds, p.kind)
			}
			sanitized = p.pattern.ReplaceAllString(sanitized, "[REDACTED:"+p.kind+"]")
		}
	}
	return sanitized, kinds
}
