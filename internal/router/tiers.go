package router

// ModelMapping is the model(s) a tier routes to. SecondaryModel, when set,
// is retried once by the Agent Loop if the primary model call fails.
type ModelMapping struct {
	Model          string `json:"model"`
	SecondaryModel string `json:"secondary_model,omitempty"`
}

// ModelMap resolves a Tier to its configured model(s).
type ModelMap map[Tier]ModelMapping

// DefaultModelMap is a reasonable starting point; deployments override it
// via internal/config.
func DefaultModelMap() ModelMap {
	return ModelMap{
		TierSimple:    {Model: "haiku"},
		TierMedium:    {Model: "sonnet", SecondaryModel: "haiku"},
		TierComplex:   {Model: "sonnet", SecondaryModel: "opus"},
		TierReasoning: {Model: "opus", SecondaryModel: "sonnet"},
		TierCoding:    {Model: "sonnet", SecondaryModel: "opus"},
	}
}

// Resolve returns the model mapping for tier, falling back to the medium
// tier's mapping if tier is unconfigured.
func (m ModelMap) Resolve(tier Tier) ModelMapping {
	if mapping, ok := m[tier]; ok {
		return mapping
	}
	return m[TierMedium]
}
