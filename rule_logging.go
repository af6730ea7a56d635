package docmap

import "time"

// RuleLogEvent describes a rule evaluation attempt for logging.
type RuleLogEvent struct {
	Engine   string
	Expr     string
	Field    string
	Duration time.Duration
	Err      error
}

// RuleLogger records rule-engine events.
type RuleLogger interface {
	LogRule(RuleLogEvent)
}

// RuleLoggerFunc adapts a function to RuleLogger.
type RuleLoggerFunc func(RuleLogEvent)

// LogRule implements RuleLogger.
func (f RuleLoggerFunc) LogRule(event RuleLogEvent) {
	if f != nil {
		f(event)
	}
}

type noopRuleLogger struct{}

func (noopRuleLogger) LogRule(RuleLogEvent) {}

// QueryWarning describes a suspect filter entry observed on a find call. The
// filter itself is forwarded untouched; warnings are advisory only.
type QueryWarning struct {
	Schema string
	Key    string
	Reason string
	Err    error
}

// QueryLogger receives filter-spec warnings from Find and FindOne.
type QueryLogger interface {
	LogQueryWarning(QueryWarning)
}

// QueryLoggerFunc adapts a function to QueryLogger.
type QueryLoggerFunc func(QueryWarning)

// LogQueryWarning implements QueryLogger.
func (f QueryLoggerFunc) LogQueryWarning(warning QueryWarning) {
	if f != nil {
		f(warning)
	}
}

type noopQueryLogger struct{}

func (noopQueryLogger) LogQueryWarning(QueryWarning) {}
