package documents

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func newMockRepo(t *testing.T) (*PGRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return &PGRepo{DB: db}, mock
}

func TestPGRepoCreateInsertsDocument(t *testing.T) {
	repo, mock := newMockRepo(t)

	doc := Document{
		ID:         "doc-1",
		UserID:     "user-1",
		FileName:   "resume.pdf",
		Format:     "pdf",
		MimeType:   "application/pdf",
		SizeBytes:  2048,
		StorageKey: "abc123/doc-1_resume.pdf",
		CreatedAt:  time.Now().UTC(),
	}

	mock.ExpectExec("INSERT INTO documents").
		WithArgs(
			doc.ID,
			doc.UserID,
			doc.FileName,
			doc.Format,
			doc.MimeType,
			doc.SizeBytes,
			doc.StorageKey,
			doc.CreatedAt,
		).
		WillReturnResult(sqlmock.NewResult(1, 1))

	if err := repo.Create(context.Background(), doc); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoGetByIDScopesToUser(t *testing.T) {
	repo, mock := newMockRepo(t)

	created := time.Now().UTC()
	rows := sqlmock.NewRows([]string{
		"id", "user_id", "file_name", "format", "mime_type", "size_bytes", "storage_key", "created_at",
	}).AddRow("doc-1", "user-1", "resume.pdf", "pdf", "application/pdf", int64(2048), "abc123/doc-1_resume.pdf", created)

	mock.ExpectQuery("SELECT(.|\n)*FROM documents").
		WithArgs("user-1", "doc-1").
		WillReturnRows(rows)

	got, err := repo.GetByID(context.Background(), "user-1", "doc-1")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.StorageKey != "abc123/doc-1_resume.pdf" {
		t.Fatalf("unexpected storage key %q", got.StorageKey)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoGetByIDMissingRowIsNotFound(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery("SELECT(.|\n)*FROM documents").
		WithArgs("user-1", "missing").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "user_id", "file_name", "format", "mime_type", "size_bytes", "storage_key", "created_at",
		}))

	if _, err := repo.GetByID(context.Background(), "user-1", "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPGRepoListByUserClampsLimit(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery("SELECT(.|\n)*FROM documents").
		WithArgs("user-1", 100, 0).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "user_id", "file_name", "format", "mime_type", "size_bytes", "storage_key", "created_at",
		}))

	if _, err := repo.ListByUser(context.Background(), "user-1", 5000, -3); err != nil {
		t.Fatalf("ListByUser: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}
