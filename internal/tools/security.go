package tools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

// Severity ranks how dangerous a skill-scan finding is.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

// severityWeight is how many points a finding of that severity adds to
// a report's total risk score (capped at 100).
var severityWeight = map[Severity]int{
	SeverityCritical: 40,
	SeverityHigh:     20,
	SeverityMedium:   8,
	SeverityLow:      2,
}

// Finding is one pattern match against a skill's files.
type Finding struct {
	Severity    Severity
	Category    string
	Description string
	File        string
	LineContent string
	Remediation string
}

// ScanReport is the result of scanning one skill directory or file.
type ScanReport struct {
	SkillName      string
	Findings       []Finding
	TotalRiskScore int
	CriticalCount  int
	HighCount      int
	MediumCount    int
	LowCount       int
	Passed         bool
}

type securityPattern struct {
	re          *regexp.Regexp
	severity    Severity
	category    string
	description string
	remediation string
}

// skillSecurityPatterns mirrors the categories shell.go's defaultDenyPatterns
// already screens shell commands for, applied instead to a skill's static
// files (SKILL.md, scripts) before the skill is ever installed or run —
// the earlier a dangerous pattern is caught, the better.
var skillSecurityPatterns = []securityPattern{
	{
		re:          regexp.MustCompile(`\bcurl\b[^\n]*\|\s*(ba)?sh\b|\bwget\b[^\n]*-O\s*-\s*\|\s*(ba)?sh\b`),
		severity:    SeverityCritical,
		category:    "remote_code_execution",
		description: "pipes a downloaded script directly into a shell",
		remediation: "fetches and executes unreviewed code from the network at install or run time",
	},
	{
		re:          regexp.MustCompile(`\.ssh/(id_rsa|id_ed25519|id_ecdsa|authorized_keys|known_hosts)\b`),
		severity:    SeverityCritical,
		category:    "credential_theft",
		description: "reads or references SSH private key material",
		remediation: "a skill has no legitimate reason to touch SSH keys",
	},
	{
		re:          regexp.MustCompile(`\.aws/credentials\b|\.netrc\b|\.npmrc\b.*_authToken|(?i)anthropic_api_key\s*=|(?i)openai_api_key\s*=`),
		severity:    SeverityCritical,
		category:    "credential_theft",
		description: "references cloud or provider credential files directly",
		remediation: "credentials should only ever be read through the configured provider, never scraped from disk",
	},
	{
		re:          regexp.MustCompile(`\bchmod\s+[0-7]{3,4}\s+/(?:etc|usr|bin|sbin)\b|\bsetuid\b|\bsudoers\b`),
		severity:    SeverityCritical,
		category:    "privilege_escalation",
		description: "attempts to modify system permissions or sudoers",
		remediation: "a skill running with elevated system access is a persistence mechanism, not a feature",
	},
	{
		re:          regexp.MustCompile(`(?i)\bdisable\b[^\n]{0,30}\b(firewall|selinux|apparmor|antivirus|defender)\b`),
		severity:    SeverityHigh,
		category:    "security_bypass",
		description: "disables a local security control",
		remediation: "skills should never need to turn off host protections to function",
	},
	{
		re:          regexp.MustCompile(`\b(nc|ncat|netcat)\b[^\n]*-[el]\b|\bsocat\b|/dev/tcp/`),
		severity:    SeverityHigh,
		category:    "reverse_shell",
		description: "opens a raw listening or outbound network shell",
		remediation: "a legitimate skill communicates through its declared tool contract, not a bare socket",
	},
	{
		re:          regexp.MustCompile(`\bcrontab\b|>\s*~?/?\.(bashrc|bash_profile|profile|zshrc)\b`),
		severity:    SeverityHigh,
		category:    "persistence",
		description: "installs a cron job or appends to a shell startup file",
		remediation: "persistence across restarts outside the skill's own declared lifecycle is a backdoor pattern",
	},
	{
		re:          regexp.MustCompile(`\beval\s*\(|\bexec\s*\(|(?i)\bos\.system\s*\(`),
		severity:    SeverityMedium,
		category:    "dynamic_execution",
		description: "evaluates or executes a dynamically constructed string as code",
		remediation: "review whether the evaluated content can be influenced by untrusted input",
	},
	{
		re:          regexp.MustCompile(`(?i)\bbase64\b[^\n]{0,20}\bdecode\b`),
		severity:    SeverityMedium,
		category:    "obfuscation",
		description: "decodes base64-encoded content before use",
		remediation: "obfuscated payloads are a common way to hide the patterns above from a first read",
	},
	{
		re:          regexp.MustCompile(`(?i)\brm\s+-rf\s+/(?:\s|$)`),
		severity:    SeverityHigh,
		category:    "destructive_operation",
		description: "recursively force-removes from filesystem root",
		remediation: "no legitimate skill needs to delete the whole filesystem",
	},
}

// skillScanExtensions are the file types a skill scan reads content from.
var skillScanExtensions = map[string]bool{
	".md": true, ".py": true, ".sh": true, ".js": true, ".ts": true,
	".go": true, ".rb": true, ".ps1": true, ".yaml": true, ".yml": true,
}

// ScanSkill walks path (a skill directory, or a single file such as a
// SKILL.md) and matches every text file's content against
// skillSecurityPatterns. strict additionally fails the scan on medium
// severity findings, not just critical/high.
func ScanSkill(path string, strict bool) (*ScanReport, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("scan_skill: %w", err)
	}

	report := &ScanReport{SkillName: filepath.Base(strings.TrimSuffix(path, string(os.PathSeparator)))}

	scanFile := func(p string) error {
		ext := strings.ToLower(filepath.Ext(p))
		if !skillScanExtensions[ext] {
			return nil
		}
		data, err := os.ReadFile(p)
		if err != nil {
			return nil // unreadable files are skipped, not fatal to the scan
		}
		rel, err := filepath.Rel(path, p)
		if err != nil {
			rel = p
		}
		scanContent(report, rel, string(data))
		return nil
	}

	if info.IsDir() {
		err = filepath.Walk(path, func(p string, fi os.FileInfo, err error) error {
			if err != nil || fi.IsDir() {
				return nil
			}
			return scanFile(p)
		})
		if err != nil {
			return nil, fmt.Errorf("scan_skill: walk: %w", err)
		}
	} else {
		if err := scanFile(path); err != nil {
			return nil, err
		}
	}

	finalizeReport(report, strict)
	return report, nil
}

func scanContent(report *ScanReport, file, content string) {
	lines := strings.Split(content, "\n")
	for _, pat := range skillSecurityPatterns {
		for i, line := range lines {
			if !pat.re.MatchString(line) {
				continue
			}
			snippet := strings.TrimSpace(line)
			if len(snippet) > 120 {
				snippet = snippet[:120] + "..."
			}
			report.Findings = append(report.Findings, Finding{
				Severity:    pat.severity,
				Category:    pat.category,
				Description: pat.description,
				File:        fmt.Sprintf("%s:%d", file, i+1),
				LineContent: snippet,
				Remediation: pat.remediation,
			})
		}
	}
}

func finalizeReport(report *ScanReport, strict bool) {
	sort.Slice(report.Findings, func(i, j int) bool {
		return severityRank(report.Findings[i].Severity) > severityRank(report.Findings[j].Severity)
	})

	score := 0
	for _, f := range report.Findings {
		switch f.Severity {
		case SeverityCritical:
			report.CriticalCount++
		case SeverityHigh:
			report.HighCount++
		case SeverityMedium:
			report.MediumCount++
		case SeverityLow:
			report.LowCount++
		}
		score += severityWeight[f.Severity]
	}
	if score > 100 {
		score = 100
	}
	report.TotalRiskScore = score

	report.Passed = report.CriticalCount == 0 && report.HighCount == 0
	if strict {
		report.Passed = report.Passed && report.MediumCount == 0
	}
}

func severityRank(s Severity) int {
	switch s {
	case SeverityCritical:
		return 4
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	default:
		return 1
	}
}

// formatScanReport renders a ScanReport as plain text for the LLM's
// tool-result content, mirroring the pass/fail sectioning of the
// original scanner's CLI report without its emoji decoration.
func formatScanReport(r *ScanReport) string {
	var b strings.Builder
	if r.Passed {
		fmt.Fprintf(&b, "Security scan passed: %s\n", r.SkillName)
	} else {
		fmt.Fprintf(&b, "Security scan FAILED: %s — do not install\n", r.SkillName)
	}
	fmt.Fprintf(&b, "Risk score: %d/100  (critical=%d high=%d medium=%d low=%d)\n",
		r.TotalRiskScore, r.CriticalCount, r.HighCount, r.MediumCount, r.LowCount)

	if len(r.Findings) == 0 {
		b.WriteString("No findings.\n")
		return b.String()
	}

	b.WriteString("\nFindings:\n")
	for _, f := range r.Findings {
		fmt.Fprintf(&b, "- [%s] %s (%s): %s\n", strings.ToUpper(string(f.Severity)), f.Category, f.File, f.Description)
		if f.LineContent != "" {
			fmt.Fprintf(&b, "    %s\n", f.LineContent)
		}
		if f.Remediation != "" {
			fmt.Fprintf(&b, "    why: %s\n", f.Remediation)
		}
	}
	return b.String()
}

// ScanSkillTool runs a full security scan over a skill's files and
// returns a detailed findings report.
type ScanSkillTool struct{}

func NewScanSkillTool() *ScanSkillTool { return &ScanSkillTool{} }

func (t *ScanSkillTool) Name() string { return "scan_skill" }
func (t *ScanSkillTool) Description() string {
	return "Scan a skill directory or SKILL.md for security vulnerabilities before installing or using it."
}
func (t *ScanSkillTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"skill_path": map[string]interface{}{
				"type":        "string",
				"description": "Path to the skill directory or SKILL.md file to scan",
			},
			"strict_mode": map[string]interface{}{
				"type":        "boolean",
				"description": "If true, also fails the scan on medium-severity findings",
				"default":     false,
			},
		},
		"required": []string{"skill_path"},
	}
}

func (t *ScanSkillTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	skillPath, _ := args["skill_path"].(string)
	if skillPath == "" {
		return ErrorResult("skill_path is required")
	}
	strict, _ := args["strict_mode"].(bool)

	resolved, err := resolvePath(skillPath, ToolWorkspaceFromCtx(ctx), true)
	if err != nil {
		return ErrorResult(err.Error())
	}

	report, err := ScanSkill(resolved, strict)
	if err != nil {
		return ErrorResult(err.Error())
	}
	if !report.Passed {
		return UserResult(formatScanReport(report))
	}
	return NewResult(formatScanReport(report))
}

// ValidateSkillSafetyTool is a lightweight safe/unsafe check, for
// automatic validation where a full report isn't needed.
type ValidateSkillSafetyTool struct{}

func NewValidateSkillSafetyTool() *ValidateSkillSafetyTool { return &ValidateSkillSafetyTool{} }

func (t *ValidateSkillSafetyTool) Name() string { return "validate_skill_safety" }
func (t *ValidateSkillSafetyTool) Description() string {
	return "Quickly check whether a skill is safe to use (true/false). Use scan_skill for a detailed report."
}
func (t *ValidateSkillSafetyTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"skill_path": map[string]interface{}{
				"type":        "string",
				"description": "Path to skill directory or SKILL.md",
			},
		},
		"required": []string{"skill_path"},
	}
}

func (t *ValidateSkillSafetyTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	skillPath, _ := args["skill_path"].(string)
	if skillPath == "" {
		return ErrorResult("skill_path is required")
	}

	resolved, err := resolvePath(skillPath, ToolWorkspaceFromCtx(ctx), true)
	if err != nil {
		return NewResult(fmt.Sprintf("false (error: %s)", err.Error()))
	}

	report, err := ScanSkill(resolved, false)
	if err != nil {
		return NewResult(fmt.Sprintf("false (error: %s)", err.Error()))
	}
	if report.Passed {
		return NewResult(fmt.Sprintf("true (risk score: %d/100)", report.TotalRiskScore))
	}
	return NewResult(fmt.Sprintf("false (risk score: %d/100, critical=%d high=%d)", report.TotalRiskScore, report.CriticalCount, report.HighCount))
}
