/*
Package blobstore provides persistent storage of named byte blobs scoped to
the workspace entities and guarded by their content checksums.

Store is the contract callers use: existence check, streamed read and
streamed write by (scope, name, checksum). Backend is the raw transactional
storage behind it. New wraps any Backend into a Store which coalesces writes
into batched transactions while reads always observe writes made before them.

Noop is the Store used when persistent caching is disabled or unavailable:
everything misses, writes are accepted and discarded.
*/
package blobstore
