package store

import "context"

type ctxKey int

const (
	ctxKeyUserID ctxKey = iota
	ctxKeyAgentType
)

// WithUserID attaches the originating external user ID (e.g. a Telegram or
// Discord user ID) to ctx, for permission checks and span/trace attribution.
func WithUserID(ctx context.Context, userID string) context.Context {
	if userID == "" {
		return ctx
	}
	return context.WithValue(ctx, ctxKeyUserID, userID)
}

// UserIDFromContext returns the user ID set by WithUserID, or "".
func UserIDFromContext(ctx context.Context) string {
	v, _ := ctx.Value(ctxKeyUserID).(string)
	return v
}

// WithAgentType attaches the kind of agent handling the request (e.g.
// "leader", "delegate", "subagent") to ctx.
func WithAgentType(ctx context.Context, agentType string) context.Context {
	if agentType == "" {
		return ctx
	}
	return context.WithValue(ctx, ctxKeyAgentType, agentType)
}

// AgentTypeFromContext returns the agent type set by WithAgentType, or "".
func AgentTypeFromContext(ctx context.Context) string {
	v, _ := ctx.Value(ctxKeyAgentType).(string)
	return v
}
