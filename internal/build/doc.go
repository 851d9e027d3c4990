// Package build runs full statikapi builds.
//
// A build scans the source root into a route table, clears the output
// root, renders every route in table order and writes the manifest last:
//
//	b := build.New(cfg, host, build.Options{})
//	result, err := b.Build(ctx)
//	if err != nil {
//	    return err // source root, output root or manifest I/O
//	}
//	if err := result.Err(); err != nil {
//	    return err // one or more routes failed
//	}
//
// Static routes are rendered directly. Dynamic and catch-all routes are
// expanded through their paths hook, bound against the pattern and
// rendered once per concrete route. A parameterized route with nothing to
// expand is skipped, not failed.
//
// # Output Structure
//
//	api-out/
//	├── index.json               # /
//	├── users/
//	│   ├── index.json           # /users
//	│   └── 42/index.json        # /users/42
//	└── .statikapi/
//	    └── manifest.json
//
// # Manifest
//
// The manifest is a JSON array sorted by route:
//
//	[
//	  {
//	    "route": "/users/42",
//	    "outFile": "api-out/users/42/index.json",
//	    "srcFile": "src-api/users/[id].js",
//	    "bytes": 27,
//	    "mtime": 1718000000000,
//	    "hash": "9f86d081884c7d65..."
//	  }
//	]
//
// Artifact modification times follow their source files, so two builds
// of unchanged sources produce byte-identical manifests.
//
// The Renderer and Emitter are shared with the dev engine, which applies
// the same pipeline to one file at a time.
package build
