package docmap

import (
	"errors"
	"fmt"
	"time"
)

var ErrNoRuleEngine = errors.New("docmap: rule engine not configured")

// RuleContext carries inputs available to a rule expression.
type RuleContext struct {
	Value    any
	Field    string
	Document map[string]any
	Now      *time.Time
	Args     map[string]any
	Metadata map[string]any
}

func (ctx RuleContext) withDefaultNow() RuleContext {
	if ctx.Now != nil {
		return ctx
	}
	now := time.Now()
	ctx.Now = &now
	return ctx
}

func (ctx RuleContext) timestamp() time.Time {
	ctx = ctx.withDefaultNow()
	return *ctx.Now
}

func (ctx RuleContext) withDefaultMaps() RuleContext {
	if ctx.Args == nil {
		ctx.Args = map[string]any{}
	}
	if ctx.Metadata == nil {
		ctx.Metadata = map[string]any{}
	}
	if ctx.Document == nil {
		ctx.Document = map[string]any{}
	}
	return ctx
}

func (ctx RuleContext) fieldLabel() string {
	if ctx.Field != "" {
		return ctx.Field
	}
	return "document"
}

// RuleEvaluator executes expressions against a rule context.
type RuleEvaluator interface {
	Evaluate(ctx RuleContext, expr string) (any, error)
	Compile(expr string, opts ...CompileOption) (CompiledRule, error)
}

// CompiledRule represents a reusable expression program.
type CompiledRule interface {
	Evaluate(ctx RuleContext) (any, error)
}

// CompileOption configures rule compile behaviour.
type CompileOption interface {
	applyCompileOption(*compileConfig)
}

type compileConfig struct{}

type compileOptionFunc func(*compileConfig)

func (f compileOptionFunc) applyCompileOption(cfg *compileConfig) {
	if f != nil {
		f(cfg)
	}
}

// RuleOption configures rule-backed validators and document checks.
type RuleOption func(*ruleConfig)

type ruleConfig struct {
	engine    RuleEvaluator
	cache     RuleCache
	functions *FunctionRegistry
	logger    RuleLogger
	args      map[string]any
	metadata  map[string]any
	message   string
}

func applyRuleOptions(opts []RuleOption) ruleConfig {
	cfg := ruleConfig{}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}

// WithRuleEngine selects the engine a rule compiles against. The expr engine
// is the default when none is configured.
func WithRuleEngine(engine RuleEvaluator) RuleOption {
	return func(cfg *ruleConfig) {
		cfg.engine = engine
	}
}

// WithRuleCache wires a compiled-program cache into the rule's engine.
func WithRuleCache(cache RuleCache) RuleOption {
	return func(cfg *ruleConfig) {
		cfg.cache = cache
	}
}

// WithRuleFunctions exposes registry functions to the rule expression.
func WithRuleFunctions(registry *FunctionRegistry) RuleOption {
	return func(cfg *ruleConfig) {
		if registry == nil {
			return
		}
		cfg.functions = registry.Clone()
	}
}

// WithRuleLogger attaches a logger receiving one event per evaluation.
func WithRuleLogger(logger RuleLogger) RuleOption {
	return func(cfg *ruleConfig) {
		if logger == nil {
			cfg.logger = noopRuleLogger{}
			return
		}
		cfg.logger = logger
	}
}

// WithRuleArgs supplies constant arguments visible to the expression as args.
func WithRuleArgs(args map[string]any) RuleOption {
	return func(cfg *ruleConfig) {
		cfg.args = copyAnyMap(args)
	}
}

// WithRuleMetadata supplies constant metadata visible to the expression.
func WithRuleMetadata(metadata map[string]any) RuleOption {
	return func(cfg *ruleConfig) {
		cfg.metadata = copyAnyMap(metadata)
	}
}

// WithRuleMessage overrides the reason reported when a boolean rule rejects.
func WithRuleMessage(message string) RuleOption {
	return func(cfg *ruleConfig) {
		cfg.message = message
	}
}

func (cfg *ruleConfig) resolveEngine() (RuleEvaluator, error) {
	if cfg.engine != nil {
		return cfg.engine, nil
	}
	var exprOpts []ExprEvaluatorOption
	if cfg.cache != nil {
		exprOpts = append(exprOpts, ExprWithRuleCache(cfg.cache))
	}
	if cfg.functions != nil {
		exprOpts = append(exprOpts, ExprWithFunctionRegistry(cfg.functions))
	}
	engine := NewExprEvaluator(exprOpts...)
	if engine == nil {
		return nil, ErrNoRuleEngine
	}
	cfg.engine = engine
	return engine, nil
}

func (cfg *ruleConfig) ruleLogger() RuleLogger {
	if cfg.logger != nil {
		return cfg.logger
	}
	return noopRuleLogger{}
}

func (cfg *ruleConfig) contextFor(value any, field string, document map[string]any) RuleContext {
	ctx := RuleContext{
		Value:    value,
		Field:    field,
		Document: document,
		Args:     copyAnyMap(cfg.args),
		Metadata: copyAnyMap(cfg.metadata),
	}
	return ctx.withDefaultNow().withDefaultMaps()
}

// runRule executes a compiled rule, wrapping failures and logging the attempt.
func (cfg *ruleConfig) runRule(rule CompiledRule, engine RuleEvaluator, expr string, ctx RuleContext) (any, error) {
	name := ruleEngineName(engine)
	start := time.Now()
	value, err := rule.Evaluate(ctx)
	duration := time.Since(start)
	err = wrapRuleError(name, expr, ctx.fieldLabel(), err)
	cfg.ruleLogger().LogRule(RuleLogEvent{
		Engine:   name,
		Expr:     expr,
		Field:    ctx.fieldLabel(),
		Duration: duration,
		Err:      err,
	})
	if err != nil {
		return nil, err
	}
	return value, nil
}

func ruleEngineName(e RuleEvaluator) string {
	if e == nil {
		return "unknown"
	}
	switch fmt.Sprintf("%T", e) {
	case "*docmap.exprEvaluator":
		return "expr"
	case "*docmap.celEvaluator":
		return "cel"
	case "*docmap.jsEvaluator":
		return "js"
	default:
		return "custom"
	}
}

func copyAnyMap(src map[string]any) map[string]any {
	if src == nil {
		return nil
	}
	dst := make(map[string]any, len(src))
	for key, value := range src {
		dst[key] = value
	}
	return dst
}
