package filter

import (
	"context"

	"github.com/tkingovr/postguard/api"
	"github.com/tkingovr/postguard/internal/policy"
)

// PolicyFilter evaluates classifier-approved posts against the moderation
// engine.
type PolicyFilter struct {
	engine policy.Engine
}

func NewPolicyFilter(engine policy.Engine) *PolicyFilter {
	return &PolicyFilter{engine: engine}
}

func (f *PolicyFilter) Name() string { return "policy" }

func (f *PolicyFilter) Process(ctx context.Context, fc *FilterContext) error {
	if fc.Halted || f.engine == nil {
		return nil
	}

	result, err := f.engine.Evaluate(ctx, &policy.EvalInput{
		Agent:   fc.Agent,
		Content: fc.Content,
	})
	if err != nil {
		return err
	}

	if result.Verdict == api.VerdictDeny || result.Verdict == api.VerdictAsk {
		fc.halt(f.Name(), result.Verdict, result.Rule, result.Message)
		return nil
	}

	fc.Verdict = result.Verdict
	fc.MatchedRule = result.Rule
	fc.VerdictMessage = result.Message
	return nil
}
