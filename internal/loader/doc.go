// Package loader turns endpoint modules into validated values.
//
// It sits between a module.Host and everything that writes output: the
// build orchestrator and the dev engine both go through a Loader, so no
// value reaches disk without passing jsonsafe.Check.
//
// Three operations:
//
//	m, err := l.Import(ctx, abs, module.Cached)
//	v, err := l.Value(ctx, m, "/users/42", router.Params{"id": "42"})
//	segs, ok, err := l.Expand(ctx, m, route)
//
// Errors are *errors.Error values with File set to the project-relative
// module path: E201 for import and producer failures, E202 for values
// that are not JSON-serializable (Locator says where), E203 for a paths
// hook that returned the wrong shape (Param says which parameter).
//
// Each operation opens an OpenTelemetry span and records its duration in
// metrics when configured.
package loader
