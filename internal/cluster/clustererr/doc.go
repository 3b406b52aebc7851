// Package clustererr classifies the errors the topology manager can
// surface, following the same sentinel-plus-wrapped-error idiom as the
// rest of this codebase: a small fixed set of Kind values for
// programmatic branching, and an *Error carrying the offending node or
// address alongside the wrapped cause.
package clustererr
