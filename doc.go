// Package surge implements the caching and concurrency core of a
// flash-sale service: a provider-agnostic read-through cache hardened
// against cache penetration and cache breakdown, plus the distributed
// primitives the sale path is built on (lock manager, sequence ids,
// order coordination in subpackages).
//
// Components:
//   - Provider: byte store with TTL (Redis for shared deployments;
//     Local/BigCache/Ristretto in-process).
//   - Codec[V]: (de)serializes V <-> []byte.
//   - lock.Manager: token-holder mutex on the shared store.
//   - rebuild.Pool: bounded workers for asynchronous cache refills.
//
// Keys:
//
//	cache:<ns>:<key> - payload records
//	lock:<ns>:<key>  - rebuild/purchase locks
//	seq:<ns>:<date>  - daily id counters
//
// Read strategies:
//
//	Get       - read-through with null caching: a loader miss is recorded
//	            as a tagged absence marker so repeated lookups of keys with
//	            no backing data never reach the store of record twice per
//	            absence TTL (penetration defense). Concurrent cold misses
//	            are NOT deduplicated.
//	GetLocked - read-through with a mutex-guarded rebuild: concurrent
//	            misses on one key serialize behind a bounded lock wait and
//	            a double-check, so the loader runs once (breakdown defense,
//	            blocking flavor).
//	GetStale  - logical expiration: reads always return immediately, a
//	            stale hit hands the refill to the worker pool under a
//	            per-key lock (breakdown defense, stale-while-revalidate
//	            flavor). Never self-populates; seed with Warm.
package surge
