/*
Package writebatch implements coalescing of write actions into backend
transactions.

Actions are queued per key. The first action queued while no flush is pending
schedules a flush of everything queued after a short coalescing window; all
actions arriving before it fires ride the same transaction. Any caller may
force pending actions of a particular key to be applied immediately with
Batcher.Flush: concurrent callers for the same key rendezvous on a single
in-flight apply instead of applying the same actions twice.

For a single key, actions are applied in the order they were queued, exactly
once. There are no ordering guarantees across different keys.
*/
package writebatch
