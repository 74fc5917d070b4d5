// Package kv provides a Redis-like key-value store abstraction with in-memory
// and Redis-backed implementations.
//
// The Store interface covers strings, hashes and sets, which is what the
// search index needs to keep documents and per-term posting sets.
//
// Example usage:
//
//	store, err := kv.NewStoreFromConfig(kv.Config{Backend: kv.BackendMemory})
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer store.Close()
//
//	ctx := context.Background()
//	if _, err := store.SAdd(ctx, "idx:title:hello", []byte("1")); err != nil {
//		log.Fatal(err)
//	}
//
// Backends register themselves from init; import pkg/kv/memory and
// pkg/kv/redis for their side effects before calling NewStoreFromConfig.
package kv
