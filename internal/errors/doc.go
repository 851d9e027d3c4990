// Package errors provides structured, coded errors for statikapi.
//
// Every failure the build pipeline can surface has a registered code that
// maps to a kind, a short message and a documentation URL:
//
//   - E201 load: a module failed to import, or its producer threw
//   - E202 validation: a producer returned a value that is not JSON-serializable
//   - E203 enumeration: paths() returned a value of the wrong shape
//   - E204 filesystem: a directory walk or write failed
//   - E205 conflict: two endpoint files produce the same concrete route
//   - E206 pattern: bracket markers in a file name do not form a valid route
//
// Kinds are what callers branch on; codes are what users search for.
//
// # Usage
//
//	err := errors.New("E203").
//	    WithFile("src-api/users/[id].js").
//	    WithParam("id").
//	    WithDetail("paths() entry for :id must not contain '/'")
//
//	if errors.KindOf(err) == errors.KindEnumeration { ... }
//
//	fmt.Println(err.Format())
//	// Output:
//	// ERROR E203: Invalid paths() result
//	//
//	//   src-api/users/[id].js
//	//
//	//   paths() entry for :id must not contain '/'
//	//
//	//   Learn more: https://statikapi.dev/docs/errors/E203
package errors
