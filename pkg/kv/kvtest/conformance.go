// Package kvtest provides conformance tests for kv.Store implementations
package kvtest

import (
	"context"
	"errors"
	"reflect"
	"sort"
	"testing"

	"github.com/noticeboard/board-backend/pkg/kv"
)

// StoreFactory creates a fresh Store instance for testing
type StoreFactory func(t *testing.T) kv.Store

const (
	keyString  = "test:string"
	keyMissing = "test:nonexistent"
	keyDel1    = "test:del1"
	keyDel2    = "test:del2"
	keyExists  = "test:exists"
	keyHash    = "test:hash"
	keySet     = "test:set"
)

// Keys lists every key the suite writes, so shared backends can be cleaned first
func Keys() []string {
	return []string{keyString, keyMissing, keyDel1, keyDel2, keyExists, keyHash, keySet}
}

// RunConformanceTests runs all conformance tests against a Store implementation
func RunConformanceTests(t *testing.T, factory StoreFactory) {
	tests := []struct {
		name string
		test func(t *testing.T, store kv.Store)
	}{
		{"SetGet", testSetGet},
		{"GetNonExistent", testGetNonExistent},
		{"Del", testDel},
		{"Exists", testExists},
		{"HSetGet", testHSetGet},
		{"HMGet", testHMGet},
		{"HDelAndLen", testHDelAndLen},
		{"SAddMembers", testSAddMembers},
		{"SRem", testSRem},
		{"SMembersMissing", testSMembersMissing},
		{"SIsMember", testSIsMember},
		{"HealthCheck", testHealthCheck},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := factory(t)
			defer store.Close()
			tt.test(t, store)
		})
	}
}

func testSetGet(t *testing.T, store kv.Store) {
	ctx := context.Background()
	value := []byte("hello world")

	if err := store.Set(ctx, keyString, value); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	result, err := store.Get(ctx, keyString)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !reflect.DeepEqual(result, value) {
		t.Fatalf("Expected %v, got %v", value, result)
	}
}

func testGetNonExistent(t *testing.T, store kv.Store) {
	_, err := store.Get(context.Background(), keyMissing)
	if !errors.Is(err, kv.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound, got %v", err)
	}
}

func testDel(t *testing.T, store kv.Store) {
	ctx := context.Background()
	value := []byte("test")

	store.Set(ctx, keyDel1, value)
	store.Set(ctx, keyDel2, value)

	deleted, err := store.Del(ctx, keyDel1, keyMissing)
	if err != nil {
		t.Fatalf("Del failed: %v", err)
	}
	if deleted != 1 {
		t.Fatalf("Expected 1 deleted, got %d", deleted)
	}

	if _, err := store.Get(ctx, keyDel1); !errors.Is(err, kv.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound for deleted key, got %v", err)
	}
	if _, err := store.Get(ctx, keyDel2); err != nil {
		t.Fatalf("Expected key2 to still exist, got %v", err)
	}
}

func testExists(t *testing.T, store kv.Store) {
	ctx := context.Background()

	count, err := store.Exists(ctx, keyExists)
	if err != nil {
		t.Fatalf("Exists failed: %v", err)
	}
	if count != 0 {
		t.Fatalf("Expected 0 for non-existent key, got %d", count)
	}

	store.SAdd(ctx, keyExists, []byte("m"))

	count, err = store.Exists(ctx, keyExists)
	if err != nil {
		t.Fatalf("Exists failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("Expected 1 for existing set key, got %d", count)
	}
}

func testHSetGet(t *testing.T, store kv.Store) {
	ctx := context.Background()

	if err := store.HSet(ctx, keyHash, "field1", []byte("value1")); err != nil {
		t.Fatalf("HSet failed: %v", err)
	}
	if err := store.HSet(ctx, keyHash, "field1", []byte("value2")); err != nil {
		t.Fatalf("HSet overwrite failed: %v", err)
	}

	result, err := store.HGet(ctx, keyHash, "field1")
	if err != nil {
		t.Fatalf("HGet failed: %v", err)
	}
	if string(result) != "value2" {
		t.Fatalf("Expected value2, got %q", result)
	}

	if _, err := store.HGet(ctx, keyHash, "missing"); !errors.Is(err, kv.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound for missing field, got %v", err)
	}
	if _, err := store.HGet(ctx, keyMissing, "field1"); !errors.Is(err, kv.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound for missing hash, got %v", err)
	}
}

func testHMGet(t *testing.T, store kv.Store) {
	ctx := context.Background()
	store.HSet(ctx, keyHash, "a", []byte("1"))
	store.HSet(ctx, keyHash, "c", []byte("3"))

	values, err := store.HMGet(ctx, keyHash, "a", "b", "c")
	if err != nil {
		t.Fatalf("HMGet failed: %v", err)
	}
	if len(values) != 3 {
		t.Fatalf("Expected 3 entries, got %d", len(values))
	}
	if string(values[0]) != "1" || values[1] != nil || string(values[2]) != "3" {
		t.Fatalf("Unexpected HMGet result: %q", values)
	}
}

func testHDelAndLen(t *testing.T, store kv.Store) {
	ctx := context.Background()
	store.HSet(ctx, keyHash, "a", []byte("1"))
	store.HSet(ctx, keyHash, "b", []byte("2"))

	n, err := store.HLen(ctx, keyHash)
	if err != nil {
		t.Fatalf("HLen failed: %v", err)
	}
	if n != 2 {
		t.Fatalf("Expected 2 fields, got %d", n)
	}

	deleted, err := store.HDel(ctx, keyHash, "a", "missing")
	if err != nil {
		t.Fatalf("HDel failed: %v", err)
	}
	if deleted != 1 {
		t.Fatalf("Expected 1 deleted field, got %d", deleted)
	}

	store.HDel(ctx, keyHash, "b")
	count, _ := store.Exists(ctx, keyHash)
	if count != 0 {
		t.Fatalf("Expected empty hash to be removed, Exists=%d", count)
	}
}

func testSAddMembers(t *testing.T, store kv.Store) {
	ctx := context.Background()

	added, err := store.SAdd(ctx, keySet, []byte("a"), []byte("b"), []byte("a"))
	if err != nil {
		t.Fatalf("SAdd failed: %v", err)
	}
	if added != 2 {
		t.Fatalf("Expected 2 added, got %d", added)
	}

	members, err := store.SMembers(ctx, keySet)
	if err != nil {
		t.Fatalf("SMembers failed: %v", err)
	}
	got := make([]string, len(members))
	for i, m := range members {
		got[i] = string(m)
	}
	sort.Strings(got)
	if !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Fatalf("Expected [a b], got %v", got)
	}
}

func testSRem(t *testing.T, store kv.Store) {
	ctx := context.Background()
	store.SAdd(ctx, keySet, []byte("a"), []byte("b"))

	removed, err := store.SRem(ctx, keySet, []byte("a"), []byte("z"))
	if err != nil {
		t.Fatalf("SRem failed: %v", err)
	}
	if removed != 1 {
		t.Fatalf("Expected 1 removed, got %d", removed)
	}

	store.SRem(ctx, keySet, []byte("b"))
	count, _ := store.Exists(ctx, keySet)
	if count != 0 {
		t.Fatalf("Expected empty set to be removed, Exists=%d", count)
	}
}

func testSMembersMissing(t *testing.T, store kv.Store) {
	members, err := store.SMembers(context.Background(), keyMissing)
	if err != nil {
		t.Fatalf("SMembers failed: %v", err)
	}
	if len(members) != 0 {
		t.Fatalf("Expected no members, got %d", len(members))
	}
}

func testSIsMember(t *testing.T, store kv.Store) {
	ctx := context.Background()
	store.SAdd(ctx, keySet, []byte("a"))

	ok, err := store.SIsMember(ctx, keySet, []byte("a"))
	if err != nil || !ok {
		t.Fatalf("Expected member a, got %v err=%v", ok, err)
	}
	ok, err = store.SIsMember(ctx, keySet, []byte("z"))
	if err != nil || ok {
		t.Fatalf("Expected z not a member, got %v err=%v", ok, err)
	}
}

func testHealthCheck(t *testing.T, store kv.Store) {
	if err := store.Ping(context.Background()); err != nil {
		t.Fatalf("Ping failed: %v", err)
	}
}
