// Package module loads endpoint modules and runs their hooks.
//
// A Host turns an absolute path into a Module. The Module resolves its
// producer once per load:
//
//   - a callable "data" export (ProducerNamed)
//   - else a callable default export (ProducerDefault)
//   - else the default export itself (ProducerStatic)
//
// and exposes the optional "paths" enumeration hook.
//
// ScriptHost runs JavaScript and TypeScript on goja. .cjs files are
// evaluated as CommonJS directly; .js, .mjs, .ts and .tsx are bundled to
// CommonJS with esbuild first, which also resolves private helpers under
// "_" directories. Compiled programs are kept in an LRU keyed by path and
// checked against a blake3 fingerprint of every bundled input.
//
// NativeHost serves Go definitions and is what tests and library users
// embed.
//
// Freshness is explicit: pass NewFresh() to force re-execution after a
// source change, Cached otherwise.
package module
