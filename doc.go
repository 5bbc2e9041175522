// Package strata implements an embedded two-tier key/value cache: a
// persistent sharded file store as the source of truth fronted by a
// bounded in-memory LRU. It gives a single process Redis-style cache
// semantics - get/set/del, TTL, batch access, glob key listing,
// cache-aside with stampede protection - without a separate service.
//
// Components:
//   - Codec[V]: (de)serializes V <-> []byte (JSON by default; CBOR,
//     Msgpack, Protobuf, raw bytes available).
//   - compress.Compressor: optional transform of envelope bytes on disk
//     (gzip, zstd); reads auto-detect, so switching is a drop-in
//     migration.
//   - memstore: bounded LRU of encoded value bytes.
//   - filestore: sharded directory of envelope files with an in-memory
//     index, atomic temp+rename writes and space/TTL eviction.
//
// Layout:
//
//	<dir>/<ss>/<hash>.json  - one entry per file, <ss> = shard, <hash> = key digest
//	<dir>/.tmp-<random>     - short-lived atomic-write temporaries
//
// Reads consult memory first and promote disk hits that fit; writes go
// to disk first and mirror into memory afterwards, so memory is always
// a subset of disk. Disk evictions call back into the coordinator to
// drop the memory copy.
//
// Cache-aside:
//
//	v, err := cache.GetOrSet(ctx, k, func(ctx context.Context) (User, error) {
//	    return loadFromDB(ctx, k) // runs once per key across concurrent callers
//	}, time.Minute)
package strata
