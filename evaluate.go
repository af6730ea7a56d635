package docmap

import (
	"fmt"
	"time"
)

// Evaluate runs expression against the document's current fields using the
// configured rule engine. Field names are visible directly in the expression
// scope alongside the doc, now, args and metadata bindings.
func (d *Document) Evaluate(expression string, opts ...RuleOption) (any, error) {
	cfg := applyRuleOptions(opts)
	return evaluateDocument(&cfg, d, RuleContext{}, expression)
}

// EvaluateWith runs expression with a caller-supplied rule context, falling
// back to the document's fields when ctx.Document is nil.
func (d *Document) EvaluateWith(ctx RuleContext, expression string, opts ...RuleOption) (any, error) {
	cfg := applyRuleOptions(opts)
	return evaluateDocument(&cfg, d, ctx, expression)
}

func evaluateDocument(cfg *ruleConfig, d *Document, ctx RuleContext, expression string) (any, error) {
	if expression == "" {
		return nil, fmt.Errorf("docmap: expression must not be empty")
	}
	engine, err := cfg.resolveEngine()
	if err != nil {
		return nil, err
	}
	if ctx.Document == nil {
		ctx.Document = d.Values()
	}
	if ctx.Args == nil {
		ctx.Args = copyAnyMap(cfg.args)
	}
	if ctx.Metadata == nil {
		ctx.Metadata = copyAnyMap(cfg.metadata)
	}
	ctx = ctx.withDefaultNow().withDefaultMaps()

	name := ruleEngineName(engine)
	start := time.Now()
	value, evalErr := engine.Evaluate(ctx, expression)
	duration := time.Since(start)
	evalErr = wrapRuleError(name, expression, ctx.fieldLabel(), evalErr)
	cfg.ruleLogger().LogRule(RuleLogEvent{
		Engine:   name,
		Expr:     expression,
		Field:    ctx.fieldLabel(),
		Duration: duration,
		Err:      evalErr,
	})
	if evalErr != nil {
		return nil, evalErr
	}
	return value, nil
}
