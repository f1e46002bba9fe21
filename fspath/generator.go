package fspath

// Generator generates a relative, solidus delimited file path
// from a given identifier. zinc uses this to shard content-addressed
// object paths by sha (see pathmap.ShardGenerator), keeping any one
// storage directory from accumulating too many entries.
type Generator interface {
	Generate(string) string
}

// GeneratorFunc is a function that can be used to satisfy the Generator interface
type GeneratorFunc func(string) string

// Generate a path from a given id string
func (g GeneratorFunc) Generate(id string) string {
	return g(id)
}
