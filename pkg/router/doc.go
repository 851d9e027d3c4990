// Package router maps a tree of endpoint modules to route patterns.
//
// # File Structure Convention
//
// Every module under the source root becomes one route:
//
//	src-api/
//	├── index.js            → /
//	├── blog/
//	│   └── archive.ts      → /blog/archive
//	├── users/
//	│   ├── index.js        → /users
//	│   └── [id].js         → /users/:id
//	├── docs/
//	│   └── [...slug].ts    → /docs/*slug
//	└── _lib/
//	    └── format.js       → (private, ignored)
//
// A segment starting with "_" excludes the file, and so does an extension
// outside DefaultExtensions. Neither is an error.
//
// # Ordering
//
// The table is sorted static before dynamic before catch-all, then by
// pattern, then by segment count. Manifest ordering derives from it.
//
// # Usage
//
//	scanner := router.NewScanner("src-api")
//	table, err := scanner.Scan()
//	for _, r := range table.Routes {
//	    fmt.Println(r.Type, r.Path(), r.Rel)
//	}
//
//	params, concrete, err := route.Pattern.Bind([]string{"42"})
package router
