package cqrs

import "reflect"

// Identifier is used to create a consistent identity solution for commands and queries.
type Identifier string

// Contract is the interface shared by every command and query.
// The identifier is used for diagnostics only; handlers are bound by the contract's Go type.
type Contract interface {
	Identifier() Identifier
}

// Command is the interface that must be implemented by any type to be considered a command.
// A command represents an intent to change state, optionally producing a result.
type Command interface {
	Contract
}

// Query is the interface that must be implemented by any type to be considered a query.
// A query is a read-only request, optionally producing a result.
type Query interface {
	Contract
}

// Category tells commands and queries apart.
type Category uint8

const (
	// CategoryCommand marks command contracts and their handlers.
	CategoryCommand Category = iota + 1
	// CategoryQuery marks query contracts and their handlers.
	CategoryQuery
)

func (c Category) String() string {
	switch c {
	case CategoryCommand:
		return "command"
	case CategoryQuery:
		return "query"
	}
	return "unknown"
}

// identify returns the identifier of c, or an empty one for nil contracts
// whose Identifier method cannot be called.
func identify(c Contract) (id Identifier) {
	if c == nil {
		return ""
	}
	defer func() {
		if recover() != nil {
			id = ""
		}
	}()
	return c.Identifier()
}

func contractName(c Contract) string {
	return typeName(reflect.TypeOf(c))
}
