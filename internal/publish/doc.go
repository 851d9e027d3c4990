// Package publish uploads a build's output tree to S3-compatible object
// storage.
//
// Publishing is driven by the manifest: every entry's artifact is uploaded
// under <prefix>/<route>/index.json with Content-Type application/json and
// its hash as object metadata, and the manifest itself is uploaded last so
// readers never see a manifest that points at missing objects. An artifact
// whose bytes no longer match the manifest hash aborts the publish.
package publish
