package docmap

// RuleCache stores compiled rule programs keyed by expression strings.
type RuleCache interface {
	Get(key string) (any, bool)
	Set(key string, value any)
}
