package blob

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
)

func TestMemoryStorePut(t *testing.T) {
	store := NewMemoryStore("https://cdn.test/bucket")
	ctx := context.Background()

	url, err := store.Put(ctx, "u/Images/1-a.png", strings.NewReader("img"), PutOptions{ContentType: "image/png"})
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if url != "https://cdn.test/bucket/u/Images/1-a.png" {
		t.Errorf("url = %q", url)
	}

	rc, err := store.Open("u/Images/1-a.png")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	content, _ := io.ReadAll(rc)
	rc.Close()
	if string(content) != "img" {
		t.Errorf("content = %q, want img", content)
	}
}

func TestMemoryStorePutNoOverwrite(t *testing.T) {
	store := NewMemoryStore("https://cdn.test/bucket")
	ctx := context.Background()

	if _, err := store.Put(ctx, "u/a.txt", strings.NewReader("one"), PutOptions{}); err != nil {
		t.Fatalf("first Put failed: %v", err)
	}
	if _, err := store.Put(ctx, "u/a.txt", strings.NewReader("two"), PutOptions{}); !errors.Is(err, ErrExists) {
		t.Errorf("second Put error = %v, want ErrExists", err)
	}
	if _, err := store.Put(ctx, "u/a.txt", strings.NewReader("two"), PutOptions{Overwrite: true}); err != nil {
		t.Errorf("overwriting Put failed: %v", err)
	}

	rc, err := store.Open("u/a.txt")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	content, _ := io.ReadAll(rc)
	rc.Close()
	if string(content) != "two" {
		t.Errorf("content = %q, want two", content)
	}
}

func TestMemoryStoreList(t *testing.T) {
	store := NewMemoryStore("https://cdn.test/bucket")
	ctx := context.Background()

	seed := map[string]string{
		"u/Folders/Docs/placeholder.txt": "",
		"u/Folders/Docs/a.txt":           "a",
		"u/Folders/Docs/sub/b.txt":       "b",
		"u/Folders/Other/c.txt":          "c",
	}
	for p, content := range seed {
		if _, err := store.Put(ctx, p, strings.NewReader(content), PutOptions{}); err != nil {
			t.Fatalf("seed Put %s failed: %v", p, err)
		}
	}

	objects, err := store.List(ctx, "u/Folders/Docs/")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(objects) != 3 {
		t.Fatalf("got %d objects, want 3: %+v", len(objects), objects)
	}
	names := map[string]bool{}
	for _, obj := range objects {
		names[obj.Name] = true
	}
	for _, want := range []string{"placeholder.txt", "a.txt", "sub/b.txt"} {
		if !names[want] {
			t.Errorf("missing object %q in listing %v", want, names)
		}
	}
}

func TestMemoryStoreRemoveIdempotent(t *testing.T) {
	store := NewMemoryStore("https://cdn.test/bucket")
	ctx := context.Background()

	if _, err := store.Put(ctx, "u/x.txt", strings.NewReader("x"), PutOptions{}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := store.Remove(ctx, "u/x.txt"); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if store.Exists("u/x.txt") {
		t.Error("object still present after Remove")
	}
	// Removing again must not error.
	if err := store.Remove(ctx, "u/x.txt"); err != nil {
		t.Errorf("second Remove errored: %v", err)
	}
}

func TestMemoryStoreMove(t *testing.T) {
	store := NewMemoryStore("https://cdn.test/bucket")
	ctx := context.Background()

	if _, err := store.Put(ctx, "u/src.txt", strings.NewReader("payload"), PutOptions{}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := store.Move(ctx, "u/src.txt", "u/Trash/1-src.txt"); err != nil {
		t.Fatalf("Move failed: %v", err)
	}
	if store.Exists("u/src.txt") {
		t.Error("source still present after Move")
	}
	if !store.Exists("u/Trash/1-src.txt") {
		t.Error("destination missing after Move")
	}

	if err := store.Move(ctx, "u/ghost.txt", "u/anywhere.txt"); !errors.Is(err, ErrNotFound) {
		t.Errorf("moving missing object error = %v, want ErrNotFound", err)
	}
}

func TestMemoryStoreCopy(t *testing.T) {
	store := NewMemoryStore("https://cdn.test/bucket")
	ctx := context.Background()

	if _, err := store.Put(ctx, "u/orig.txt", strings.NewReader("payload"), PutOptions{}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := store.Copy(ctx, "u/orig.txt", "u/Folders/Docs/orig.txt"); err != nil {
		t.Fatalf("Copy failed: %v", err)
	}
	if !store.Exists("u/orig.txt") || !store.Exists("u/Folders/Docs/orig.txt") {
		t.Error("both source and destination should exist after Copy")
	}
}
