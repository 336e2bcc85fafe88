// Package tokenstore persists the four client credential entries
// (access token, refresh token, device id, cached user) behind a small
// key-value [Backend] interface.
//
// [Store] keeps an in-process mirror that is authoritative for the lifetime of
// the process: a failed backend write is logged and counted but the value
// remains readable, and a failed backend read degrades to "absent". Store
// operations therefore never return errors to callers.
//
// The two token halves are written independently. There is no cross-key
// transaction; the last write for each key wins.
//
// Backends:
//
//   - [MemoryBackend]: process-local map.
//   - [FileBackend]: one JSON document on disk, replaced atomically, 0600.
//     With a passphrase every value is sealed with XChaCha20-Poly1305 under an
//     Argon2id-derived key.
//   - [RedisBackend]: go-redis UniversalClient with a key prefix.
package tokenstore
