/*
Package storage manages lifetime of persistent blob stores of workspace roots.

Manager is the single entry point to the persistent cache: callers obtain
reference-counted Handles by GetStorage and release them when done. All
handles of a root share one backend connection which is opened lazily on
first use and closed when the last handle is released.

Backends are opened only for the registered primary root and only when it is
worth it: the root is large enough or its storage already exists. In all
other cases, and when the backend cannot be opened, handles are served by
blobstore.Noop, so losing the cache slows the host down but never breaks it.
*/
package storage
