package documents

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
)

type fakeStore struct {
	uploads  map[string][]byte
	deletes  []string
	failNext bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{uploads: make(map[string][]byte)}
}

func (f *fakeStore) Upload(ctx context.Context, key, contentType string, r io.Reader) (string, int64, error) {
	if f.failNext {
		f.failNext = false
		return "", 0, errors.New("store down")
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", 0, err
	}
	f.uploads[key] = data
	return "local://" + key, int64(len(data)), nil
}

func (f *fakeStore) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	data, ok := f.uploads[key]
	if !ok {
		return nil, errors.New("not found")
	}
	return io.NopCloser(strings.NewReader(string(data))), nil
}

func (f *fakeStore) Delete(ctx context.Context, key string) error {
	f.deletes = append(f.deletes, key)
	delete(f.uploads, key)
	return nil
}

func TestUploadStoresFileAndRecord(t *testing.T) {
	store := newFakeStore()
	repo := NewMemoryRepo()
	svc := NewService(store, repo)

	doc, err := svc.Upload(context.Background(), "user-1", "resume.pdf", strings.NewReader("%PDF-1.4 fake body"))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if doc.Format != "pdf" {
		t.Fatalf("expected pdf format, got %q", doc.Format)
	}
	if doc.SizeBytes == 0 {
		t.Fatal("expected non-zero size")
	}
	if _, ok := store.uploads[doc.StorageKey]; !ok {
		t.Fatalf("object not stored under %q", doc.StorageKey)
	}

	got, err := repo.GetByID(context.Background(), "user-1", doc.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.StorageKey != doc.StorageKey {
		t.Fatalf("record mismatch: %q != %q", got.StorageKey, doc.StorageKey)
	}
}

func TestUploadAcceptsWordFormats(t *testing.T) {
	svc := NewService(newFakeStore(), NewMemoryRepo())

	for _, name := range []string{"resume.doc", "resume.docx", "Resume.DOCX"} {
		doc, err := svc.Upload(context.Background(), "user-1", name, strings.NewReader("body"))
		if err != nil {
			t.Fatalf("Upload(%q): %v", name, err)
		}
		if doc.Format != "doc" && doc.Format != "docx" {
			t.Fatalf("Upload(%q): unexpected format %q", name, doc.Format)
		}
	}
}

func TestUploadRejectsUnsupportedFormat(t *testing.T) {
	svc := NewService(newFakeStore(), NewMemoryRepo())

	cases := []string{"resume.txt", "resume.png", "resume"}
	for _, name := range cases {
		if _, err := svc.Upload(context.Background(), "user-1", name, strings.NewReader("body")); !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("Upload(%q): expected ErrInvalidInput, got %v", name, err)
		}
	}
}

func TestUploadRejectsEmptyFile(t *testing.T) {
	svc := NewService(newFakeStore(), NewMemoryRepo())

	if _, err := svc.Upload(context.Background(), "user-1", "resume.pdf", strings.NewReader("")); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestUploadRejectsTraversalNames(t *testing.T) {
	svc := NewService(newFakeStore(), NewMemoryRepo())

	if _, err := svc.Upload(context.Background(), "user-1", "../../etc/passwd.pdf", strings.NewReader("body")); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestUploadCleansUpObjectOnRepoFailure(t *testing.T) {
	store := newFakeStore()
	svc := NewService(store, failingRepo{})

	if _, err := svc.Upload(context.Background(), "user-1", "resume.pdf", strings.NewReader("body")); err == nil {
		t.Fatal("expected repo error")
	}
	if len(store.deletes) != 1 {
		t.Fatalf("expected stored object to be deleted, deletes=%v", store.deletes)
	}
}

func TestUploadScopesStorageKeysByUser(t *testing.T) {
	store := newFakeStore()
	svc := NewService(store, NewMemoryRepo())

	docA, err := svc.Upload(context.Background(), "user-a", "resume.pdf", strings.NewReader("body"))
	if err != nil {
		t.Fatalf("upload a: %v", err)
	}
	docB, err := svc.Upload(context.Background(), "user-b", "resume.pdf", strings.NewReader("body"))
	if err != nil {
		t.Fatalf("upload b: %v", err)
	}

	prefixA := strings.Split(docA.StorageKey, "/")[0]
	prefixB := strings.Split(docB.StorageKey, "/")[0]
	if prefixA == prefixB {
		t.Fatalf("expected distinct user prefixes, both %q", prefixA)
	}
	if strings.Contains(docA.StorageKey, "user-a") {
		t.Fatalf("raw user id leaked into key %q", docA.StorageKey)
	}
}

type failingRepo struct{}

func (failingRepo) Create(ctx context.Context, doc Document) error { return errors.New("db down") }
func (failingRepo) GetByID(ctx context.Context, userID, documentID string) (Document, error) {
	return Document{}, ErrNotFound
}
func (failingRepo) ListByUser(ctx context.Context, userID string, limit, offset int) ([]Document, error) {
	return nil, nil
}
