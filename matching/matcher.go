package matching

import (
	"go.uber.org/zap"

	"github.com/geonexus/extractd/domain"
)

// Matcher selects the process a request should run by scanning its
// connector's rules.
type Matcher struct {
	logger *zap.SugaredLogger
}

// NewMatcher creates a matcher
func NewMatcher(logger *zap.SugaredLogger) *Matcher {
	return &Matcher{logger: logger}
}

// Match evaluates the rules against the request in the given order and
// returns the first one that matches, or nil when none does. The caller must
// supply the rules pre-filtered to the request's connector, active only and
// ordered ascending by position; the matcher only iterates.
//
// A predicate that fails to evaluate counts as a non-match: a broken rule
// must never capture or block a request, it is skipped and logged.
func (m *Matcher) Match(request *domain.Request, rules []*domain.Rule) *domain.Rule {
	for _, rule := range rules {
		matched, err := Evaluate(rule.Rule, request)
		if err != nil {
			m.logger.Warnw("Rule predicate failed to evaluate, skipping",
				"rule_id", rule.ID,
				"position", rule.Position,
				"request_id", request.ID,
				"error", err)
			continue
		}
		if matched {
			m.logger.Debugw("Request matched rule",
				"request_id", request.ID,
				"rule_id", rule.ID,
				"position", rule.Position,
				"process_id", rule.ProcessID)
			return rule
		}
	}
	return nil
}
