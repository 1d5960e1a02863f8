package store

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/rushteam/basketrec/core"
)

func TestMemoryStore_KV(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	defer s.Close()

	if _, err := s.Get(ctx, "missing"); !errors.Is(err, core.ErrStoreNotFound) {
		t.Fatalf("Get(missing) error = %v, want ErrStoreNotFound", err)
	}
	if err := s.Set(ctx, "a", []byte("1")); err != nil {
		t.Fatal(err)
	}
	if err := s.BatchSet(ctx, map[string][]byte{"b": []byte("2"), "c": []byte("3")}); err != nil {
		t.Fatal(err)
	}
	got, err := s.BatchGet(ctx, []string{"a", "b", "x"})
	if err != nil {
		t.Fatal(err)
	}
	want := map[string][]byte{"a": []byte("1"), "b": []byte("2")}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("BatchGet() = %v, want %v", got, want)
	}

	if err := s.Delete(ctx, "a"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Get(ctx, "a"); !core.IsStoreNotFound(err) {
		t.Errorf("Get after Delete error = %v", err)
	}
}

func TestMemoryStore_TTL(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	defer s.Close()

	_ = s.Set(ctx, "k", []byte("v"), 1)
	if _, err := s.Get(ctx, "k"); err != nil {
		t.Fatalf("Get before expiry error = %v", err)
	}
	// 直接把过期时间拨到过去，避免 sleep
	s.mu.Lock()
	s.data["k"].expire = time.Now().Add(-time.Second)
	s.mu.Unlock()
	if _, err := s.Get(ctx, "k"); !errors.Is(err, core.ErrStoreNotFound) {
		t.Errorf("Get after expiry error = %v", err)
	}
}

func TestMemoryStore_Sets(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	defer s.Close()

	_ = s.SAdd(ctx, "blacklist", "C", "A")
	_ = s.SAdd(ctx, "blacklist", "B", "A")
	got, err := s.SMembers(ctx, "blacklist")
	if err != nil {
		t.Fatal(err)
	}
	if want := []string{"A", "B", "C"}; !reflect.DeepEqual(got, want) {
		t.Errorf("SMembers() = %v, want %v", got, want)
	}
	empty, err := s.SMembers(ctx, "none")
	if err != nil || empty == nil || len(empty) != 0 {
		t.Errorf("SMembers(none) = %v, %v", empty, err)
	}
}

func TestMemoryStore_Hashes(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	defer s.Close()

	_ = s.HSet(ctx, "product:A", "name", []byte("XIAO"))
	_ = s.HSet(ctx, "product:A", "price", []byte("$15.99"))
	v, err := s.HGet(ctx, "product:A", "name")
	if err != nil || string(v) != "XIAO" {
		t.Fatalf("HGet() = %q, %v", v, err)
	}
	if _, err := s.HGet(ctx, "product:A", "image"); !errors.Is(err, core.ErrStoreNotFound) {
		t.Errorf("HGet(missing field) error = %v", err)
	}
	all, err := s.HGetAll(ctx, "product:A")
	if err != nil || len(all) != 2 {
		t.Errorf("HGetAll() = %v, %v", all, err)
	}
	none, err := s.HGetAll(ctx, "product:B")
	if err != nil || none == nil || len(none) != 0 {
		t.Errorf("HGetAll(missing) = %v, %v", none, err)
	}

	_ = s.Delete(ctx, "product:A")
	if all, _ := s.HGetAll(ctx, "product:A"); len(all) != 0 {
		t.Errorf("HGetAll after Delete = %v", all)
	}
}

func TestOpen(t *testing.T) {
	s, err := Open(context.Background(), Config{})
	if err != nil || s.Name() != "memory" {
		t.Fatalf("Open(default) = %v, %v", s, err)
	}
	_ = s.Close()
	if _, err := Open(context.Background(), Config{Backend: "etcd"}); err == nil {
		t.Error("Open(etcd) should fail")
	}
}
