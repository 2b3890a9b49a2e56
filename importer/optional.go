package importer

import o "github.com/moznion/go-optional"

// OptionalFirst returns an option.Some with the first element of a slice if
// available, otherwise an optional.None.
func OptionalFirst[S ~[]E, E any](s S) o.Option[E] {
	if len(s) > 0 {
		return o.Some(s[0])
	}
	return o.None[E]()
}

// optionalPtr converts the pointer style optionals used by generated schema
// types.
func optionalPtr[T any](v *T) o.Option[T] {
	if v == nil {
		return o.None[T]()
	}
	return o.Some(*v)
}

// optionalString treats the empty string as absent.
func optionalString(s string) o.Option[string] {
	if s == "" {
		return o.None[string]()
	}
	return o.Some(s)
}
