package cqrs

// ScopeDecision is the outcome of the scope policy for one dispatch call.
type ScopeDecision uint8

const (
	// UseAmbientScope resolves the handler from the scope the dispatcher was resolved from.
	UseAmbientScope ScopeDecision = iota + 1
	// CreateNewScope resolves the handler from a fresh scope released when the call ends.
	CreateNewScope
)

func (d ScopeDecision) String() string {
	switch d {
	case UseAmbientScope:
		return "use_ambient_scope"
	case CreateNewScope:
		return "create_new_scope"
	}
	return "unknown"
}

// ScopePolicy holds the four switches deciding whether a dispatch creates a new scope.
type ScopePolicy struct {
	// CreateForCommands creates a new scope for every command dispatch.
	CreateForCommands bool `env:"CREATE_FOR_COMMANDS" toml:"create_for_commands"`
	// CreateForQueries creates a new scope for every query dispatch.
	CreateForQueries bool `env:"CREATE_FOR_QUERIES" toml:"create_for_queries"`
	// CreateForCommandsIfRoot creates a new scope for a command dispatch when the ambient scope is the root.
	CreateForCommandsIfRoot bool `env:"CREATE_FOR_COMMANDS_IF_ROOT" toml:"create_for_commands_if_root"`
	// CreateForQueriesIfRoot creates a new scope for a query dispatch when the ambient scope is the root.
	CreateForQueriesIfRoot bool `env:"CREATE_FOR_QUERIES_IF_ROOT" toml:"create_for_queries_if_root"`
}

// Decide returns the scope decision for one call. It is evaluated on every
// dispatch because whether the ambient scope is the root depends on the call site.
func (p ScopePolicy) Decide(cat Category, ambientIsRoot bool) ScopeDecision {
	always, ifRoot := p.CreateForCommands, p.CreateForCommandsIfRoot
	if cat == CategoryQuery {
		always, ifRoot = p.CreateForQueries, p.CreateForQueriesIfRoot
	}
	if always || (ifRoot && ambientIsRoot) {
		return CreateNewScope
	}
	return UseAmbientScope
}
