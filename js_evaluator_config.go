package docmap

type jsEvaluatorConfig struct {
	cache    RuleCache
	registry *FunctionRegistry
}

// JSEvaluatorOption configures the JS engine.
type JSEvaluatorOption func(*jsEvaluatorConfig)

// JSWithRuleCache applies a RuleCache to the JS engine.
func JSWithRuleCache(cache RuleCache) JSEvaluatorOption {
	return func(cfg *jsEvaluatorConfig) {
		cfg.cache = cache
	}
}

// JSWithFunctionRegistry applies a FunctionRegistry to the JS engine.
func JSWithFunctionRegistry(registry *FunctionRegistry) JSEvaluatorOption {
	return func(cfg *jsEvaluatorConfig) {
		if registry == nil {
			return
		}
		cfg.registry = registry.Clone()
	}
}

func applyJSEvaluatorOptions(opts []JSEvaluatorOption) jsEvaluatorConfig {
	cfg := jsEvaluatorConfig{}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}
