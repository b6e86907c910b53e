// Package imagecache keeps food photos on disk so the plate view does not
// download them on every poll.
//
// Records live in one SQLite table, images(key, blob, timestamp), keyed by
// the photo URL with its query string removed. Expiry is lazy: Loader.Get
// ignores a record older than the TTL and refetches it. Prune exists for the
// "tray cache prune" command and is never required for correctness.
package imagecache
