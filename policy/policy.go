package policy

import (
	"context"

	"github.com/parleyhq/parley/model"
)

// DecisionPolicy proposes the next action for a flow. It must return exactly
// one decision within a bounded time; the engine converts any returned error
// into a fail decision instead of letting it escape the round. The reasoning
// text is opaque to the engine and kept for audit only.
type DecisionPolicy interface {
	Decide(ctx context.Context, flow *model.Flow, profile *model.AgentProfile) (model.Decision, error)
}
