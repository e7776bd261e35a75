// Package policy decides whether an adapter operation may spend a retry
// budget. Rules are small boolean expressions compiled at construction and
// evaluated against the facts of one call (HTTP method, whether the operation
// mutates upstream state, the classified error kind). The engine itself never
// hardcodes an idempotency rule; adapters opt in through configuration plus
// these rules.
package policy

import (
	"fmt"

	"github.com/Knetic/govaluate"
)

// Decision is the outcome of evaluating the rule set for one call.
type Decision struct {
	AllowRetry bool
}

// Rule pairs an expression with the decision applied when it evaluates to
// true. Expressions see the parameters: method (string), mutating (bool),
// kind (string), attempt (number).
type Rule struct {
	Name       string
	Expression string
	Decision   Decision
}

type compiledRule struct {
	name       string
	expression *govaluate.EvaluableExpression
	decision   Decision
}

// Enforcer evaluates retry rules in order; the first matching rule wins.
type Enforcer struct {
	rules []compiledRule
}

// DefaultRules allows retries only for operations that are safe to repeat.
func DefaultRules() []Rule {
	return []Rule{
		{
			Name:       "idempotent-reads",
			Expression: "mutating == false",
			Decision:   Decision{AllowRetry: true},
		},
	}
}

// NewEnforcer compiles the rule set. A rule that fails to compile is a
// construction error, not a runtime surprise.
func NewEnforcer(rules []Rule) (*Enforcer, error) {
	compiled := make([]compiledRule, 0, len(rules))
	for _, rule := range rules {
		if rule.Expression == "" {
			return nil, fmt.Errorf("policy: rule %q has an empty expression", rule.Name)
		}
		expr, err := govaluate.NewEvaluableExpression(rule.Expression)
		if err != nil {
			return nil, fmt.Errorf("policy: compiling rule %q: %w", rule.Name, err)
		}
		compiled = append(compiled, compiledRule{
			name:       rule.Name,
			expression: expr,
			decision:   rule.Decision,
		})
	}
	return &Enforcer{rules: compiled}, nil
}

// Evaluate returns the decision of the first rule matching params. With no
// matching rule the decision is the safe default: no retry.
func (e *Enforcer) Evaluate(params map[string]any) (Decision, error) {
	for _, rule := range e.rules {
		result, err := rule.expression.Evaluate(params)
		if err != nil {
			return Decision{}, fmt.Errorf("policy: evaluating rule %q: %w", rule.name, err)
		}
		matched, ok := result.(bool)
		if !ok {
			return Decision{}, fmt.Errorf("policy: rule %q did not evaluate to a boolean", rule.name)
		}
		if matched {
			return rule.decision, nil
		}
	}
	return Decision{AllowRetry: false}, nil
}
