package docmap

import (
	"fmt"
	"testing"
)

// engineFactories runs the shared rule contract against every engine. The js
// engine only participates when the js_eval build tag is present.
var engineFactories = []struct {
	name      string
	available func() bool
	new       func(cache RuleCache, registry *FunctionRegistry) RuleEvaluator
}{
	{
		name: "expr",
		new: func(cache RuleCache, registry *FunctionRegistry) RuleEvaluator {
			opts := []ExprEvaluatorOption{}
			if cache != nil {
				opts = append(opts, ExprWithRuleCache(cache))
			}
			if registry != nil {
				opts = append(opts, ExprWithFunctionRegistry(registry))
			}
			return NewExprEvaluator(opts...)
		},
	},
	{
		name: "cel",
		new: func(cache RuleCache, registry *FunctionRegistry) RuleEvaluator {
			opts := []CELEvaluatorOption{}
			if cache != nil {
				opts = append(opts, CELWithRuleCache(cache))
			}
			if registry != nil {
				opts = append(opts, CELWithFunctionRegistry(registry))
			}
			return NewCELEvaluator(opts...)
		},
	},
	{
		name:      "js",
		available: jsEvaluatorAvailable,
		new: func(cache RuleCache, registry *FunctionRegistry) RuleEvaluator {
			opts := []JSEvaluatorOption{}
			if cache != nil {
				opts = append(opts, JSWithRuleCache(cache))
			}
			if registry != nil {
				opts = append(opts, JSWithFunctionRegistry(registry))
			}
			return NewJSEvaluator(opts...)
		},
	},
}

func TestEnginesEvaluateSharedRules(t *testing.T) {
	cases := []struct {
		name string
		ctx  RuleContext
		expr string
		want bool
	}{
		{
			name: "value comparison",
			ctx:  RuleContext{Value: 21, Field: "age"},
			expr: `value >= 18`,
			want: true,
		},
		{
			name: "value arithmetic",
			ctx:  RuleContext{Value: 6},
			expr: `value * 2 == 12`,
			want: true,
		},
		{
			name: "field binding",
			ctx:  RuleContext{Value: "ada", Field: "name"},
			expr: `field == "name"`,
			want: true,
		},
		{
			name: "document access",
			ctx: RuleContext{
				Value:    "ada@example.com",
				Field:    "email",
				Document: map[string]any{"age": 36},
			},
			expr: `doc.age >= 18`,
			want: true,
		},
		{
			name: "args threshold",
			ctx: RuleContext{
				Value: 4,
				Args:  map[string]any{"min": 2},
			},
			expr: `value >= args.min`,
			want: true,
		},
		{
			name: "rejection",
			ctx:  RuleContext{Value: 7, Field: "age"},
			expr: `value >= 18`,
			want: false,
		},
	}

	for _, factory := range engineFactories {
		factory := factory
		t.Run(factory.name, func(t *testing.T) {
			if factory.available != nil && !factory.available() {
				t.Skip("engine not built in")
			}
			engine := factory.new(nil, nil)
			for _, tc := range cases {
				tc := tc
				t.Run(tc.name, func(t *testing.T) {
					result, err := engine.Evaluate(tc.ctx, tc.expr)
					if err != nil {
						t.Fatalf("unexpected error from Evaluate: %v", err)
					}
					verdict, ok := result.(bool)
					if !ok {
						t.Fatalf("expected bool result, got %T", result)
					}
					if verdict != tc.want {
						t.Fatalf("expected %v, got %v", tc.want, verdict)
					}
				})
			}
		})
	}
}

func TestEnginesCallRegistryFunctions(t *testing.T) {
	for _, factory := range engineFactories {
		factory := factory
		t.Run(factory.name, func(t *testing.T) {
			if factory.available != nil && !factory.available() {
				t.Skip("engine not built in")
			}

			registry := NewFunctionRegistry()
			if err := registry.Register("double", func(args ...any) (any, error) {
				if len(args) != 1 {
					return nil, fmt.Errorf("double expects one argument")
				}
				switch n := args[0].(type) {
				case int:
					return int64(n * 2), nil
				case int64:
					return n * 2, nil
				case float64:
					return int64(n * 2), nil
				default:
					return nil, fmt.Errorf("double expects a number, got %T", args[0])
				}
			}); err != nil {
				t.Fatalf("unexpected error from Register: %v", err)
			}

			engine := factory.new(nil, registry)
			result, err := engine.Evaluate(RuleContext{Value: 6}, `call("double", value) == 12`)
			if err != nil {
				t.Fatalf("unexpected error from Evaluate: %v", err)
			}
			if verdict, ok := result.(bool); !ok || !verdict {
				t.Fatalf("expected true, got %v (%T)", result, result)
			}
		})
	}
}

func TestEnginesCacheCompiledPrograms(t *testing.T) {
	for _, factory := range engineFactories {
		factory := factory
		t.Run(factory.name, func(t *testing.T) {
			if factory.available != nil && !factory.available() {
				t.Skip("engine not built in")
			}

			cache := &recordingCache{}
			engine := factory.new(cache, nil)
			ctx := RuleContext{Value: 21}

			for i := 0; i < 3; i++ {
				result, err := engine.Evaluate(ctx, `value >= 18`)
				if err != nil {
					t.Fatalf("unexpected error from Evaluate: %v", err)
				}
				if verdict, ok := result.(bool); !ok || !verdict {
					t.Fatalf("expected true, got %v (%T)", result, result)
				}
			}
			if cache.sets != 1 {
				t.Fatalf("expected one compile, got %d", cache.sets)
			}
			if cache.gets < 2 {
				t.Fatalf("expected cache hits on re-evaluation, got %d gets", cache.gets)
			}
		})
	}
}

func TestEnginesCompileReusableRules(t *testing.T) {
	for _, factory := range engineFactories {
		factory := factory
		t.Run(factory.name, func(t *testing.T) {
			if factory.available != nil && !factory.available() {
				t.Skip("engine not built in")
			}

			rule, err := factory.new(nil, nil).Compile(`value >= 18`)
			if err != nil {
				t.Fatalf("unexpected error from Compile: %v", err)
			}

			for _, tc := range []struct {
				value any
				want  bool
			}{
				{value: 21, want: true},
				{value: 7, want: false},
			} {
				result, err := rule.Evaluate(RuleContext{Value: tc.value})
				if err != nil {
					t.Fatalf("unexpected error from compiled Evaluate: %v", err)
				}
				if verdict, ok := result.(bool); !ok || verdict != tc.want {
					t.Fatalf("expected %v, got %v (%T)", tc.want, result, result)
				}
			}
		})
	}
}
