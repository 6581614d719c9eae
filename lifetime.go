package cqrs

import "strings"

// Lifetime is the instantiation policy governing how long a resolved instance is reused.
type Lifetime uint8

const (
	// Singleton is one instance for the process lifetime.
	Singleton Lifetime = iota + 1
	// PerScope is one instance per resolution scope.
	PerScope
	// PerDependency is a new instance on every resolution.
	PerDependency
	// PerMatchingScope is one instance per ancestor scope carrying the registration's tag.
	// Only adapters exposing tagged scopes support it.
	PerMatchingScope
	// PerOwned ties the instance to an explicit owner scope.
	// Only adapters exposing owned instances support it.
	PerOwned
)

var lifetimeNames = map[Lifetime]string{
	Singleton:        "singleton",
	PerScope:         "per_scope",
	PerDependency:    "per_dependency",
	PerMatchingScope: "per_matching_scope",
	PerOwned:         "per_owned",
}

// Valid reports whether l is one of the known lifetimes.
func (l Lifetime) Valid() bool {
	_, ok := lifetimeNames[l]
	return ok
}

func (l Lifetime) String() string {
	if name, ok := lifetimeNames[l]; ok {
		return name
	}
	return "invalid"
}

// MarshalText implements encoding.TextMarshaler.
func (l Lifetime) MarshalText() ([]byte, error) {
	if !l.Valid() {
		return nil, ErrInvalidLifetime
	}
	return []byte(l.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler so lifetimes can be read
// from environment variables and TOML files. Dashes and case are ignored.
func (l *Lifetime) UnmarshalText(text []byte) error {
	name := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(string(text))), "-", "_")
	for lt, n := range lifetimeNames {
		if n == name {
			*l = lt
			return nil
		}
	}
	return ErrInvalidLifetime
}
