package archive

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"user-admin/internal/domain"
	"user-admin/internal/repository"
	"user-admin/internal/repository/memory"
	"user-admin/internal/service"
	"user-admin/internal/storage"
)

type fakeStorage struct {
	mu   sync.Mutex
	puts []storage.Object
	body [][]byte
	err  error
}

func (f *fakeStorage) PutObject(ctx context.Context, obj storage.Object) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	b, err := io.ReadAll(obj.Body)
	if err != nil {
		return "", err
	}
	f.puts = append(f.puts, obj)
	f.body = append(f.body, b)
	return "s3://" + obj.Bucket + "/" + obj.Key, nil
}

func (f *fakeStorage) ListObjects(ctx context.Context, bucket, prefix string) ([]storage.ObjectInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []storage.ObjectInfo
	for _, p := range f.puts {
		out = append(out, storage.ObjectInfo{Key: p.Key})
	}
	return out, nil
}

func (f *fakeStorage) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.puts)
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func seededLogs(t *testing.T) service.LogService {
	t.Helper()
	logs := service.NewLogService(memory.NewLogRepository(repository.NewClock(nil)))
	uid := int64(3)
	for _, action := range []string{domain.ActionCreated, domain.ActionUpdated} {
		if _, err := logs.AddLog(context.Background(), action, "details", &uid); err != nil {
			t.Fatalf("AddLog error = %v", err)
		}
	}
	return logs
}

func TestArchiveUploadsTrail(t *testing.T) {
	store := &fakeStorage{}
	at := time.Date(2025, 8, 19, 12, 30, 45, 0, time.UTC)
	m := NewManager(Config{
		Bucket:    "audit",
		KeyPrefix: "/user-admin/",
		Logger:    quietLogger(),
		Now:       func() time.Time { return at },
	}, seededLogs(t), store)

	res, err := m.Archive(context.Background())
	if err != nil {
		t.Fatalf("Archive error = %v", err)
	}
	if res.Entries != 2 || !res.At.Equal(at) {
		t.Fatalf("result = %+v", res)
	}

	keyPattern := regexp.MustCompile(`^user-admin/audit-20250819T123045Z-[0-9a-f-]{36}\.json$`)
	if len(store.puts) != 1 || !keyPattern.MatchString(store.puts[0].Key) {
		t.Fatalf("puts = %+v", store.puts)
	}
	if res.Location != "s3://audit/"+store.puts[0].Key {
		t.Errorf("location = %q", res.Location)
	}
	if store.puts[0].ContentType != "application/json" {
		t.Errorf("content type = %q", store.puts[0].ContentType)
	}

	var doc exportDocument
	if err := json.Unmarshal(store.body[0], &doc); err != nil {
		t.Fatalf("decode export: %v", err)
	}
	if doc.Count != 2 || len(doc.Entries) != 2 {
		t.Fatalf("doc = %+v", doc)
	}
	if doc.Entries[0].ID != 2 || doc.Entries[0].Action != domain.ActionUpdated {
		t.Errorf("first entry = %+v, want newest", doc.Entries[0])
	}
	if doc.Entries[1].UserID == nil || *doc.Entries[1].UserID != 3 {
		t.Errorf("user id not exported: %+v", doc.Entries[1])
	}

	objs, err := m.List(context.Background())
	if err != nil || len(objs) != 1 {
		t.Fatalf("List = %+v, %v", objs, err)
	}
}

func TestArchiveDisabledWithoutBucket(t *testing.T) {
	m := NewManager(Config{Logger: quietLogger()}, seededLogs(t), &fakeStorage{})
	if _, err := m.Archive(context.Background()); !errors.Is(err, ErrDisabled) {
		t.Fatalf("Archive error = %v, want ErrDisabled", err)
	}
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start error = %v", err)
	}
	m.Shutdown()
}

func TestArchiveStorageFailure(t *testing.T) {
	store := &fakeStorage{err: errors.New("access denied")}
	m := NewManager(Config{Bucket: "audit", Logger: quietLogger()}, seededLogs(t), store)
	_, err := m.Archive(context.Background())
	if !errors.Is(err, domain.ErrStorageFault) || !errors.Is(err, store.err) {
		t.Fatalf("Archive error = %v", err)
	}
}

func TestPeriodicArchive(t *testing.T) {
	store := &fakeStorage{}
	m := NewManager(Config{
		Bucket:   "audit",
		Interval: 10 * time.Millisecond,
		Logger:   quietLogger(),
	}, seededLogs(t), store)

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start error = %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for store.count() < 2 {
		if time.Now().After(deadline) {
			m.Shutdown()
			t.Fatalf("only %d periodic exports before deadline", store.count())
		}
		time.Sleep(5 * time.Millisecond)
	}
	m.Shutdown()

	n := store.count()
	time.Sleep(30 * time.Millisecond)
	if store.count() != n {
		t.Fatal("exports continued after Shutdown")
	}
}
