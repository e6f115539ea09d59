package tools

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/nanobridge/orchestrator/internal/config"
)

// UpdateConfigTool implements spec §4.8's "update_config" tool and the
// §9 design note calling for "strongly typed configuration tree plus a
// generic path-walker that validates against a closed schema... The
// update tool applies set/append/remove operations with
// backup-then-atomic-rename." Unlike a reflective "get attribute by
// dotted path", every path below is listed explicitly; an unlisted path
// is rejected rather than resolved.
type UpdateConfigTool struct {
	cfg      *config.Config
	path     string // config.json path this tool persists to
	backupFn func(path string, data []byte) error
}

func NewUpdateConfigTool(cfg *config.Config, configPath string) *UpdateConfigTool {
	return &UpdateConfigTool{cfg: cfg, path: configPath, backupFn: writeBackup}
}

func (t *UpdateConfigTool) Name() string { return "update_config" }

func (t *UpdateConfigTool) Description() string {
	return "Read or change a configuration value at a known dotted path (e.g. " +
		"\"agents.defaults.model\", \"providers.anthropic.api_key\", \"channels.telegram.enabled\", " +
		"\"tools.allow\"). op is one of get, set, append, remove."
}

func (t *UpdateConfigTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"path":  map[string]interface{}{"type": "string", "description": "dotted config path"},
			"op":    map[string]interface{}{"type": "string", "enum": []string{"get", "set", "append", "remove"}},
			"value": map[string]interface{}{"type": "string", "description": "new value (for set/append/remove); ignored for get"},
		},
		"required": []string{"path", "op"},
	}
}

func (t *UpdateConfigTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	path, _ := args["path"].(string)
	op, _ := args["op"].(string)
	value, _ := args["value"].(string)
	path = strings.TrimSpace(path)

	field, ok := configSchema[path]
	if !ok {
		return ErrorResult(fmt.Sprintf("update_config: unknown path %q", path))
	}

	if op == "get" {
		return NewResult(field.get(t.cfg))
	}
	if field.readOnly {
		return ErrorResult(fmt.Sprintf("update_config: %q is read-only (secrets must be set via environment variables)", path))
	}

	var err error
	t.cfg.WithLock(func() {
		switch op {
		case "set":
			err = field.set(t.cfg, value)
		case "append":
			err = field.appendVal(t.cfg, value)
		case "remove":
			err = field.removeVal(t.cfg, value)
		default:
			err = fmt.Errorf("unknown op %q", op)
		}
	})
	if err != nil {
		return ErrorResult(fmt.Sprintf("update_config: %v", err)).WithError(err)
	}

	if t.path != "" {
		if err := t.persist(); err != nil {
			return ErrorResult(fmt.Sprintf("update_config: applied in memory but failed to persist: %v", err)).WithError(err)
		}
	}
	return NewResult(fmt.Sprintf("%s set to %s", path, field.get(t.cfg)))
}

// persist backs up the existing file, then writes the new config with an
// atomic temp-then-rename (the §9 "backup-then-atomic-rename" contract).
func (t *UpdateConfigTool) persist() error {
	if existing, err := os.ReadFile(t.path); err == nil {
		if err := t.backupFn(t.path, existing); err != nil {
			return fmt.Errorf("backup: %w", err)
		}
	}
	return config.Save(t.path, t.cfg)
}

func writeBackup(path string, data []byte) error {
	backupPath := path + "." + time.Now().UTC().Format("20060102T150405") + ".bak"
	tmp := backupPath + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, backupPath)
}

// configField is one addressable leaf of the closed update_config schema.
type configField struct {
	get       func(c *config.Config) string
	set       func(c *config.Config, v string) error
	appendVal func(c *config.Config, v string) error
	removeVal func(c *config.Config, v string) error
	readOnly  bool
}

func stringField(get func(c *config.Config) string, set func(c *config.Config, v string)) configField {
	notList := func(*config.Config, string) error {
		return fmt.Errorf("append/remove only apply to list-valued paths")
	}
	return configField{
		get:       get,
		set:       func(c *config.Config, v string) error { set(c, v); return nil },
		appendVal: notList,
		removeVal: notList,
	}
}

func boolField(get func(c *config.Config) bool, set func(c *config.Config, v bool)) configField {
	return stringField(
		func(c *config.Config) string { return strconv.FormatBool(get(c)) },
		func(c *config.Config, v string) {
			set(c, v == "true" || v == "1" || v == "yes")
		},
	)
}

func floatField(get func(c *config.Config) float64, set func(c *config.Config, v float64)) configField {
	return stringField(
		func(c *config.Config) string { return strconv.FormatFloat(get(c), 'f', -1, 64) },
		func(c *config.Config, v string) {
			f, err := strconv.ParseFloat(v, 64)
			if err == nil {
				set(c, f)
			}
		},
	)
}

func intField(get func(c *config.Config) int, set func(c *config.Config, v int)) configField {
	return stringField(
		func(c *config.Config) string { return strconv.Itoa(get(c)) },
		func(c *config.Config, v string) {
			n, err := strconv.Atoi(v)
			if err == nil {
				set(c, n)
			}
		},
	)
}

func listField(get func(c *config.Config) []string, set func(c *config.Config, v []string)) configField {
	return configField{
		get: func(c *config.Config) string { return strings.Join(get(c), ",") },
		set: func(c *config.Config, v string) error {
			set(c, splitCSV(v))
			return nil
		},
		appendVal: func(c *config.Config, v string) error {
			cur := get(c)
			for _, existing := range cur {
				if existing == v {
					return nil
				}
			}
			set(c, append(cur, v))
			return nil
		},
		removeVal: func(c *config.Config, v string) error {
			cur := get(c)
			out := make([]string, 0, len(cur))
			for _, existing := range cur {
				if existing != v {
					out = append(out, existing)
				}
			}
			set(c, out)
			return nil
		},
	}
}

func splitCSV(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// readOnlySecret reports a provider API key without ever allowing it to
// be set through this tool — secrets only ever come from environment
// variables (see config_load.go's applyEnvOverrides), matching the
// provider onboarding convention the rest of the config package follows.
func readOnlySecret(get func(c *config.Config) string) configField {
	return configField{
		get: func(c *config.Config) string {
			if get(c) == "" {
				return "(not set)"
			}
			return "(set)"
		},
		readOnly: true,
	}
}

// configSchema is the entire closed set of dotted paths update_config
// understands. Anything not listed here is rejected, per spec §9's
// "reject unknown paths" instruction — this function never does
// reflective attribute lookup against the Config struct.
var configSchema = map[string]configField{
	"agents.defaults.model": stringField(
		func(c *config.Config) string { return c.Agents.Defaults.Model },
		func(c *config.Config, v string) { c.Agents.Defaults.Model = v },
	),
	"agents.defaults.provider": stringField(
		func(c *config.Config) string { return c.Agents.Defaults.Provider },
		func(c *config.Config, v string) { c.Agents.Defaults.Provider = v },
	),
	"agents.defaults.workspace": stringField(
		func(c *config.Config) string { return c.Agents.Defaults.Workspace },
		func(c *config.Config, v string) { c.Agents.Defaults.Workspace = v },
	),
	"agents.defaults.max_tokens": intField(
		func(c *config.Config) int { return c.Agents.Defaults.MaxTokens },
		func(c *config.Config, v int) { c.Agents.Defaults.MaxTokens = v },
	),
	"agents.defaults.temperature": floatField(
		func(c *config.Config) float64 { return c.Agents.Defaults.Temperature },
		func(c *config.Config, v float64) { c.Agents.Defaults.Temperature = v },
	),
	"agents.defaults.max_tool_iterations": intField(
		func(c *config.Config) int { return c.Agents.Defaults.MaxToolIterations },
		func(c *config.Config, v int) { c.Agents.Defaults.MaxToolIterations = v },
	),
	"agents.defaults.restrict_to_workspace": boolField(
		func(c *config.Config) bool { return c.Agents.Defaults.RestrictToWorkspace },
		func(c *config.Config, v bool) { c.Agents.Defaults.RestrictToWorkspace = v },
	),
	"providers.anthropic.api_key":  readOnlySecret(func(c *config.Config) string { return c.Providers.Anthropic.APIKey }),
	"providers.openai.api_key":     readOnlySecret(func(c *config.Config) string { return c.Providers.OpenAI.APIKey }),
	"providers.openrouter.api_key": readOnlySecret(func(c *config.Config) string { return c.Providers.OpenRouter.APIKey }),
	"providers.anthropic.api_base": stringField(
		func(c *config.Config) string { return c.Providers.Anthropic.APIBase },
		func(c *config.Config, v string) { c.Providers.Anthropic.APIBase = v },
	),
	"channels.telegram.enabled": boolField(
		func(c *config.Config) bool { return c.Channels.Telegram.Enabled },
		func(c *config.Config, v bool) { c.Channels.Telegram.Enabled = v },
	),
	"channels.discord.enabled": boolField(
		func(c *config.Config) bool { return c.Channels.Discord.Enabled },
		func(c *config.Config, v bool) { c.Channels.Discord.Enabled = v },
	),
	"tools.profile": stringField(
		func(c *config.Config) string { return c.Tools.Profile },
		func(c *config.Config, v string) { c.Tools.Profile = v },
	),
	"tools.allow": listField(
		func(c *config.Config) []string { return c.Tools.Allow },
		func(c *config.Config, v []string) { c.Tools.Allow = v },
	),
	"tools.deny": listField(
		func(c *config.Config) []string { return c.Tools.Deny },
		func(c *config.Config, v []string) { c.Tools.Deny = v },
	),
	"gateway.port": intField(
		func(c *config.Config) int { return c.Gateway.Port },
		func(c *config.Config, v int) { c.Gateway.Port = v },
	),
	"gateway.max_message_chars": intField(
		func(c *config.Config) int { return c.Gateway.MaxMessageChars },
		func(c *config.Config, v int) { c.Gateway.MaxMessageChars = v },
	),
}

// ConfigSchemaPaths returns every path update_config understands, sorted
// is not required here — callers (the `configure` CLI subcommand) just
// need the set for validation/help text.
func ConfigSchemaPaths() []string {
	paths := make([]string, 0, len(configSchema))
	for p := range configSchema {
		paths = append(paths, p)
	}
	return paths
}
