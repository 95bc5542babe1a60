package customizations

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"tailor-backend/internal/ai"
	"tailor-backend/internal/convert"
	"tailor-backend/internal/documents"
	"tailor-backend/internal/jobqueue"
	"tailor-backend/internal/render"
)

const testTimeout = 5 * time.Second

type fakeStore struct {
	objects map[string][]byte
}

func newFakeStore() *fakeStore {
	return &fakeStore{objects: make(map[string][]byte)}
}

func (f *fakeStore) Upload(ctx context.Context, key, contentType string, r io.Reader) (string, int64, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", 0, err
	}
	f.objects[key] = data
	return "local://" + key, int64(len(data)), nil
}

func (f *fakeStore) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	data, ok := f.objects[key]
	if !ok {
		return nil, errors.New("object not found")
	}
	return io.NopCloser(strings.NewReader(string(data))), nil
}

func (f *fakeStore) Delete(ctx context.Context, key string) error {
	delete(f.objects, key)
	return nil
}

type fakeConverter struct {
	text  string
	err   error
	calls int
}

func (f *fakeConverter) Convert(ctx context.Context, storageKey, format string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.text, nil
}

type scriptedAI struct {
	errs  []error
	resp  json.RawMessage
	calls int
}

func (s *scriptedAI) Generate(ctx context.Context, input ai.GenerateInput) (json.RawMessage, error) {
	idx := s.calls
	s.calls++
	if idx < len(s.errs) && s.errs[idx] != nil {
		return nil, s.errs[idx]
	}
	return s.resp, nil
}

type fakeQueue struct {
	enqueued []string
	err      error
}

func (f *fakeQueue) Enqueue(ctx context.Context, jobType, payload string, opts ...jobqueue.Option) (jobqueue.JobHandle, error) {
	if f.err != nil {
		return jobqueue.JobHandle{}, f.err
	}
	f.enqueued = append(f.enqueued, payload)
	return jobqueue.JobHandle{ID: "job-" + payload}, nil
}

type renderFunc func(ctx context.Context, doc render.Document) ([]byte, error)

func (f renderFunc) Render(ctx context.Context, doc render.Document) ([]byte, error) {
	return f(ctx, doc)
}

func docxBytes(ctx context.Context, doc render.Document) ([]byte, error) {
	return render.NewDocxEngine().Render(ctx, doc)
}

type fixture struct {
	svc   *Service
	repo  *MemoryRepo
	docs  *documents.MemoryRepo
	store *fakeStore
	queue *fakeQueue
	conv  *fakeConverter
	aiCli *scriptedAI
}

func newFixture() *fixture {
	repo := NewMemoryRepo()
	docs := documents.NewMemoryRepo()
	store := newFakeStore()
	queue := &fakeQueue{}
	conv := &fakeConverter{text: "extracted resume text"}
	aiCli := &scriptedAI{resp: json.RawMessage(`{"content": "# Tailored\n\ntailored resume body"}`)}

	return &fixture{
		svc: &Service{
			Repo:      repo,
			DocRepo:   docs,
			Store:     store,
			Converter: conv,
			AI:        aiCli,
			Renderer:  renderFunc(docxBytes),
			Queue:     queue,
		},
		repo:  repo,
		docs:  docs,
		store: store,
		queue: queue,
		conv:  conv,
		aiCli: aiCli,
	}
}

func (f *fixture) addDocument(t *testing.T, userID, format string) documents.Document {
	t.Helper()
	doc := documents.Document{
		ID:         "doc-" + format,
		UserID:     userID,
		FileName:   "resume." + format,
		Format:     format,
		MimeType:   "application/octet-stream",
		StorageKey: "keys/resume." + format,
		CreatedAt:  time.Now().UTC(),
	}
	if err := f.docs.Create(context.Background(), doc); err != nil {
		t.Fatalf("create document: %v", err)
	}
	return doc
}

func TestCreateEnqueuesPendingRecord(t *testing.T) {
	f := newFixture()
	doc := f.addDocument(t, "user-1", "pdf")

	record, err := f.svc.Create(context.Background(), "user-1", doc.ID, "build Go services", "Backend Engineer", "Acme")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if record.Status != StatusPending {
		t.Fatalf("expected pending, got %s", record.Status)
	}
	if len(f.queue.enqueued) != 1 || f.queue.enqueued[0] != record.ID {
		t.Fatalf("expected one job for %s, got %v", record.ID, f.queue.enqueued)
	}
}

func TestCreateRejectsUnknownDocument(t *testing.T) {
	f := newFixture()

	if _, err := f.svc.Create(context.Background(), "user-1", "missing", "jd", "", ""); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if len(f.queue.enqueued) != 0 {
		t.Fatalf("no job should be enqueued, got %v", f.queue.enqueued)
	}
}

func TestProcessHappyPathCompletesRecord(t *testing.T) {
	f := newFixture()
	doc := f.addDocument(t, "user-1", "pdf")
	record, err := f.svc.Create(context.Background(), "user-1", doc.ID, "jd", "Engineer", "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := f.svc.ProcessCustomization(context.Background(), record.ID); err != nil {
		t.Fatalf("process: %v", err)
	}

	got, err := f.repo.GetByID(context.Background(), record.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != StatusCompleted {
		t.Fatalf("expected completed, got %s (%s)", got.Status, got.ErrorMessage)
	}
	if got.ResultURL == "" || got.ResultKey == "" {
		t.Fatal("expected result key and url to be set")
	}
	if got.ErrorMessage != "" || got.ErrorCode != "" {
		t.Fatalf("expected empty error fields, got %q/%q", got.ErrorCode, got.ErrorMessage)
	}
	if got.CompletedAt == nil || got.StartedAt == nil {
		t.Fatal("expected timestamps to be set")
	}
	if _, ok := f.store.objects[got.ResultKey]; !ok {
		t.Fatalf("rendered result not stored under %q", got.ResultKey)
	}
}

func TestProcessMemoizesConversion(t *testing.T) {
	f := newFixture()
	doc := f.addDocument(t, "user-1", "pdf")
	record, err := f.svc.Create(context.Background(), "user-1", doc.ID, "jd", "", "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := f.svc.ProcessCustomization(context.Background(), record.ID); err != nil {
		t.Fatalf("first run: %v", err)
	}
	if f.conv.calls != 1 {
		t.Fatalf("expected one conversion, got %d", f.conv.calls)
	}

	got, _ := f.repo.GetByID(context.Background(), record.ID)
	if got.CachedText != "extracted resume text" {
		t.Fatalf("cached text not persisted: %q", got.CachedText)
	}

	if err := f.svc.ProcessCustomization(context.Background(), record.ID); err != nil {
		t.Fatalf("second run: %v", err)
	}
	if f.conv.calls != 1 {
		t.Fatalf("conversion ran again despite cached text: %d calls", f.conv.calls)
	}
}

func TestProcessRejectsNonPDFFormat(t *testing.T) {
	f := newFixture()
	f.svc.Converter = convert.NewPDFConverter(f.store)
	doc := f.addDocument(t, "user-1", "docx")
	record, err := f.svc.Create(context.Background(), "user-1", doc.ID, "jd", "", "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := f.svc.ProcessCustomization(context.Background(), record.ID); err == nil {
		t.Fatal("expected conversion error")
	}

	got, _ := f.repo.GetByID(context.Background(), record.ID)
	if got.Status != StatusFailed {
		t.Fatalf("expected failed, got %s", got.Status)
	}
	if got.ErrorCode != ErrorCodeConversion {
		t.Fatalf("expected %s, got %s", ErrorCodeConversion, got.ErrorCode)
	}
	if !strings.Contains(got.ErrorMessage, "not supported") {
		t.Fatalf("error message should mention unsupported format: %q", got.ErrorMessage)
	}
	if f.aiCli.calls != 0 {
		t.Fatal("generation must not run after a conversion failure")
	}
}

func TestProcessMissingRecordReturnsNotFound(t *testing.T) {
	f := newFixture()

	err := f.svc.ProcessCustomization(context.Background(), "no-such-record")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestProcessPersistsFailureBeforeRethrow(t *testing.T) {
	f := newFixture()
	f.aiCli.errs = []error{errors.New("model exploded")}
	doc := f.addDocument(t, "user-1", "pdf")
	record, err := f.svc.Create(context.Background(), "user-1", doc.ID, "jd", "", "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	runErr := f.svc.ProcessCustomization(context.Background(), record.ID)
	if runErr == nil {
		t.Fatal("expected pipeline error")
	}

	got, _ := f.repo.GetByID(context.Background(), record.ID)
	if got.Status != StatusFailed {
		t.Fatalf("expected failed, got %s", got.Status)
	}
	if got.ErrorCode != ErrorCodeAIService {
		t.Fatalf("expected %s, got %s", ErrorCodeAIService, got.ErrorCode)
	}
	if got.ErrorMessage != sanitizeError(runErr) {
		t.Fatalf("persisted message %q does not match returned error %q", got.ErrorMessage, runErr)
	}
}

func TestRetryExhaustionRecordsFinalError(t *testing.T) {
	f := newFixture()
	boom := errors.New("generate always fails")
	f.aiCli.errs = []error{boom, boom, boom}
	doc := f.addDocument(t, "user-1", "pdf")
	record, err := f.svc.Create(context.Background(), "user-1", doc.ID, "jd", "", "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	queue := jobqueue.New(jobqueue.NewMemoryBroker(), jobqueue.Config{
		MaxAttempts: 3,
		BackoffBase: time.Millisecond,
		Concurrency: 1,
	})
	if err := queue.RegisterHandler(JobTypeCustomize, func(ctx context.Context, job jobqueue.Job) error {
		return f.svc.ProcessCustomization(ctx, job.Payload)
	}); err != nil {
		t.Fatalf("register handler: %v", err)
	}

	failed := make(chan jobqueue.Job, 1)
	queue.On(jobqueue.EventFailed, func(job jobqueue.Job, err error) {
		failed <- job
	})
	if err := queue.Start(context.Background()); err != nil {
		t.Fatalf("start queue: %v", err)
	}
	defer queue.Stop(context.Background())

	if _, err := queue.Enqueue(context.Background(), JobTypeCustomize, record.ID); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	select {
	case job := <-failed:
		if job.Attempts != 3 {
			t.Fatalf("expected 3 attempts, got %d", job.Attempts)
		}
	case <-time.After(testTimeout):
		t.Fatal("timed out waiting for job failure")
	}

	if f.aiCli.calls != 3 {
		t.Fatalf("expected 3 generation attempts, got %d", f.aiCli.calls)
	}

	got, _ := f.repo.GetByID(context.Background(), record.ID)
	if got.Status != StatusFailed {
		t.Fatalf("expected failed, got %s", got.Status)
	}
	if !strings.Contains(got.ErrorMessage, "generate always fails") {
		t.Fatalf("record should carry the final error, got %q", got.ErrorMessage)
	}
}

func TestRetrySucceedsAfterTransientFailures(t *testing.T) {
	f := newFixture()
	transient := errors.New("transient outage")
	f.aiCli.errs = []error{transient, transient}
	doc := f.addDocument(t, "user-1", "pdf")
	record, err := f.svc.Create(context.Background(), "user-1", doc.ID, "jd", "", "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	queue := jobqueue.New(jobqueue.NewMemoryBroker(), jobqueue.Config{
		MaxAttempts: 3,
		BackoffBase: time.Millisecond,
		Concurrency: 1,
	})
	if err := queue.RegisterHandler(JobTypeCustomize, func(ctx context.Context, job jobqueue.Job) error {
		return f.svc.ProcessCustomization(ctx, job.Payload)
	}); err != nil {
		t.Fatalf("register handler: %v", err)
	}

	completed := make(chan jobqueue.Job, 2)
	queue.On(jobqueue.EventCompleted, func(job jobqueue.Job, err error) {
		completed <- job
	})
	if err := queue.Start(context.Background()); err != nil {
		t.Fatalf("start queue: %v", err)
	}
	defer queue.Stop(context.Background())

	if _, err := queue.Enqueue(context.Background(), JobTypeCustomize, record.ID); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	select {
	case job := <-completed:
		if job.Attempts != 3 {
			t.Fatalf("expected success on attempt 3, got %d", job.Attempts)
		}
	case <-time.After(testTimeout):
		t.Fatal("timed out waiting for completion")
	}

	got, _ := f.repo.GetByID(context.Background(), record.ID)
	if got.Status != StatusCompleted {
		t.Fatalf("expected completed after retries, got %s (%s)", got.Status, got.ErrorMessage)
	}

	select {
	case job := <-completed:
		t.Fatalf("completed fired more than once: %+v", job)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestResubmitResetsFailedRecord(t *testing.T) {
	f := newFixture()
	doc := f.addDocument(t, "user-1", "pdf")
	record, err := f.svc.Create(context.Background(), "user-1", doc.ID, "jd", "", "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	now := time.Now().UTC()
	if err := f.repo.SetCachedText(context.Background(), record.ID, "memoized text"); err != nil {
		t.Fatalf("cache text: %v", err)
	}
	if err := f.repo.SetFailed(context.Background(), record.ID, ErrorCodeAIService, "boom", now); err != nil {
		t.Fatalf("set failed: %v", err)
	}

	got, err := f.svc.Resubmit(context.Background(), "user-1", record.ID)
	if err != nil {
		t.Fatalf("resubmit: %v", err)
	}
	if got.Status != StatusPending {
		t.Fatalf("expected pending, got %s", got.Status)
	}
	if got.ErrorMessage != "" || got.ErrorCode != "" {
		t.Fatalf("error fields should be cleared, got %q/%q", got.ErrorCode, got.ErrorMessage)
	}
	if got.CachedText != "memoized text" {
		t.Fatalf("cached text must survive a resubmit, got %q", got.CachedText)
	}
	if len(f.queue.enqueued) != 2 {
		t.Fatalf("expected a second job, got %v", f.queue.enqueued)
	}
}

func TestResubmitRejectsNonFailedRecord(t *testing.T) {
	f := newFixture()
	doc := f.addDocument(t, "user-1", "pdf")
	record, err := f.svc.Create(context.Background(), "user-1", doc.ID, "jd", "", "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := f.svc.Resubmit(context.Background(), "user-1", record.ID); !errors.Is(err, ErrNotRetryable) {
		t.Fatalf("expected ErrNotRetryable, got %v", err)
	}
}
