package script

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dop251/goja"
	"github.com/parleyhq/parley/logger"
	"github.com/parleyhq/parley/model"
	"github.com/parleyhq/parley/policy"
	"github.com/parleyhq/parley/util"
	"go.uber.org/zap"
)

// DefaultExpression completes every flow on the first round, echoing the
// trigger back to the requester. Used when no script is configured.
const DefaultExpression = `$decision = {
	type: "complete",
	reasoning: "default policy, nothing to orchestrate",
	confidence: 1.0,
	complete: { finalResponse: "Received: " + $.trigger.subject }
};`

var _ policy.DecisionPolicy = new(ScriptPolicy)

// ScriptPolicy evaluates a javascript expression against the flow. The script
// sees the flow as $ and must assign the decision object to $decision.
// String payloads may carry {$.json.path} placeholders which are resolved
// against the same flow view after the script runs.
type ScriptPolicy struct {
	expression string
}

func NewScriptPolicy(expression string) *ScriptPolicy {
	return &ScriptPolicy{
		expression: expression,
	}
}

func (p *ScriptPolicy) Validate() error {
	if len(p.expression) == 0 {
		return fmt.Errorf("policy expression can not be empty")
	}
	return nil
}

func (p *ScriptPolicy) Decide(ctx context.Context, flow *model.Flow, profile *model.AgentProfile) (model.Decision, error) {
	logger.Debug("running policy script", zap.String("agentId", flow.AgentId), zap.String("flowId", flow.Id))
	view, err := flowView(flow, profile)
	if err != nil {
		return model.Decision{}, err
	}
	data, err := json.Marshal(view)
	if err != nil {
		return model.Decision{}, err
	}
	expression := fmt.Sprintf("var $ = %s;\nvar $decision = null;\n", data)
	expression = expression + p.expression
	vm := goja.New()
	if _, err := vm.RunString(expression); err != nil {
		return model.Decision{}, fmt.Errorf("error executing policy script %w", err)
	}
	val, err := vm.RunString("JSON.stringify($decision)")
	if err != nil {
		return model.Decision{}, fmt.Errorf("error executing policy script %w", err)
	}
	var decision model.Decision
	if err := json.Unmarshal([]byte(val.String()), &decision); err != nil {
		return model.Decision{}, fmt.Errorf("policy script produced an invalid decision: %w", err)
	}
	resolvePayloads(view, &decision)
	return decision, nil
}

// flowView is the script-visible projection of the flow, produced by a json
// round trip so jsonpath lookups see the wire field names.
func flowView(flow *model.Flow, profile *model.AgentProfile) (map[string]any, error) {
	raw, err := json.Marshal(flow)
	if err != nil {
		return nil, err
	}
	view := make(map[string]any)
	if err := json.Unmarshal(raw, &view); err != nil {
		return nil, err
	}
	if profile != nil {
		rawProfile, err := json.Marshal(profile)
		if err != nil {
			return nil, err
		}
		profileView := make(map[string]any)
		if err := json.Unmarshal(rawProfile, &profileView); err != nil {
			return nil, err
		}
		view["agent"] = profileView
	}
	return view, nil
}

func resolvePayloads(view map[string]any, decision *model.Decision) {
	if decision.WaitForAgent != nil {
		decision.WaitForAgent.Subject = util.ResolveTemplate(view, decision.WaitForAgent.Subject)
		decision.WaitForAgent.Body = util.ResolveTemplate(view, decision.WaitForAgent.Body)
	}
	if decision.WaitForTool != nil && decision.WaitForTool.Params != nil {
		decision.WaitForTool.Params = util.ResolveParams(view, decision.WaitForTool.Params)
	}
	if decision.Complete != nil {
		decision.Complete.FinalResponse = util.ResolveTemplate(view, decision.Complete.FinalResponse)
	}
}
