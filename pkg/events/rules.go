package events

import (
	"os"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/rs/zerolog/log"
	"github.com/trackmate/trackmate/pkg/tmdf"
)

// RuleEnv is the expression environment an alert rule is evaluated against
type RuleEnv struct {
	TripID    string
	StopIndex int
	StopName  string
	Status    string
}

// AlertRule flags matching stop events in the consumer log. Rules are
// boolean expr expressions over RuleEnv, e.g.
// `Status == "ARRIVED" && StopIndex == 0`.
type AlertRule struct {
	Expression string

	program *vm.Program
}

func CompileRule(expression string) (AlertRule, error) {
	program, err := expr.Compile(expression, expr.Env(RuleEnv{}), expr.AsBool())
	if err != nil {
		return AlertRule{}, err
	}

	return AlertRule{
		Expression: expression,
		program:    program,
	}, nil
}

func (r AlertRule) Matches(event *tmdf.StopEvent) (bool, error) {
	output, err := expr.Run(r.program, RuleEnv{
		TripID:    event.TripID,
		StopIndex: event.StopIndex,
		StopName:  event.StopName,
		Status:    string(event.Status),
	})
	if err != nil {
		return false, err
	}

	return output.(bool), nil
}

// LoadRulesFromEnvironment reads semicolon separated rules from
// TRACKMATE_EVENT_ALERT_RULES; invalid rules are skipped, not fatal
func LoadRulesFromEnvironment() []AlertRule {
	raw := os.Getenv("TRACKMATE_EVENT_ALERT_RULES")
	if raw == "" {
		return nil
	}

	var rules []AlertRule
	for _, expression := range strings.Split(raw, ";") {
		expression = strings.TrimSpace(expression)
		if expression == "" {
			continue
		}

		rule, err := CompileRule(expression)
		if err != nil {
			log.Error().Err(err).Str("rule", expression).Msg("Skipping invalid alert rule")
			continue
		}

		rules = append(rules, rule)
	}

	return rules
}
