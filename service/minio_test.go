package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/berthwatch/backend/config"
)

type fakeS3 struct {
	mu          sync.Mutex
	bucketFound bool
	requests    []string
	contentType string
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, r.Method+" "+r.URL.Path)

	switch r.Method {
	case http.MethodHead:
		if !f.bucketFound {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	case http.MethodPut:
		f.contentType = r.Header.Get("Content-Type")
		w.Header().Set("ETag", `"d41d8cd98f00b204e9800998ecf8427e"`)
		w.WriteHeader(http.StatusOK)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (f *fakeS3) seen() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.requests...)
}

func (f *fakeS3) lastContentType() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.contentType
}

func newTestArchive(t *testing.T, fake *fakeS3) *ArchiveService {
	t.Helper()
	server := httptest.NewServer(fake)
	t.Cleanup(server.Close)

	svc, err := NewArchiveService(&config.MinioConfig{
		Endpoint:  strings.TrimPrefix(server.URL, "http://"),
		AccessKey: "test",
		SecretKey: "test",
		Bucket:    "archive",
		Region:    "us-east-1",
		Prefix:    "schedules",
	})
	if err != nil {
		t.Fatalf("Failed to create archive service: %v", err)
	}
	return svc
}

func TestNewArchiveService(t *testing.T) {
	cfg := &config.MinioConfig{
		Endpoint:  "invalid-endpoint:9000",
		AccessKey: "test",
		SecretKey: "test",
		Bucket:    "test",
	}

	svc, err := NewArchiveService(cfg)
	// The client connects lazily
	if err != nil {
		t.Logf("NewArchiveService returned error: %v", err)
	} else if svc == nil {
		t.Error("Expected non-nil service")
	}
}

func TestArchiveObjectName(t *testing.T) {
	tests := []struct {
		name     string
		prefix   string
		filename string
		expected string
	}{
		{"plain file", "schedules", "CQYB.pdf", "schedules/batch-1/CQYB.pdf"},
		{"path traversal", "schedules", "../../etc/CQYB.pdf", "schedules/batch-1/CQYB.pdf"},
		{"no prefix", "", "CQYB.pdf", "batch-1/CQYB.pdf"},
		{"empty filename", "schedules", "", "schedules/batch-1/schedule.pdf"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &ArchiveService{prefix: tt.prefix}
			result := svc.ObjectName("batch-1", tt.filename)
			if result != tt.expected {
				t.Errorf("Expected '%s', got '%s'", tt.expected, result)
			}
		})
	}
}

func TestArchiveServiceEnsureBucket(t *testing.T) {
	t.Run("existing bucket", func(t *testing.T) {
		fake := &fakeS3{bucketFound: true}
		svc := newTestArchive(t, fake)

		if err := svc.EnsureBucket(context.Background()); err != nil {
			t.Fatalf("EnsureBucket failed: %v", err)
		}
		for _, req := range fake.seen() {
			if strings.HasPrefix(req, http.MethodPut) {
				t.Errorf("Expected no bucket creation, got %s", req)
			}
		}
	})

	t.Run("missing bucket", func(t *testing.T) {
		fake := &fakeS3{}
		svc := newTestArchive(t, fake)

		if err := svc.EnsureBucket(context.Background()); err != nil {
			t.Fatalf("EnsureBucket failed: %v", err)
		}
		found := false
		for _, req := range fake.seen() {
			if req == "PUT /archive/" || req == "PUT /archive" {
				found = true
			}
		}
		if !found {
			t.Errorf("Expected bucket creation request, got %v", fake.seen())
		}
	})
}

func TestArchiveServiceArchive(t *testing.T) {
	fake := &fakeS3{bucketFound: true}
	svc := newTestArchive(t, fake)

	name, err := svc.Archive(context.Background(), "batch-1", "CQYB.pdf", []byte("%PDF-1.4"))
	if err != nil {
		t.Fatalf("Archive failed: %v", err)
	}
	if name != "schedules/batch-1/CQYB.pdf" {
		t.Errorf("Expected object name 'schedules/batch-1/CQYB.pdf', got '%s'", name)
	}

	found := false
	for _, req := range fake.seen() {
		if req == "PUT /archive/schedules/batch-1/CQYB.pdf" {
			found = true
		}
	}
	if !found {
		t.Errorf("Expected object upload request, got %v", fake.seen())
	}
	if ct := fake.lastContentType(); ct != "application/pdf" {
		t.Errorf("Expected content type 'application/pdf', got '%s'", ct)
	}
}

func TestArchiveServiceWithCancelledContext(t *testing.T) {
	svc := newTestArchive(t, &fakeS3{bucketFound: true})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := svc.Archive(ctx, "batch-1", "CQYB.pdf", []byte("%PDF")); err == nil {
		t.Error("Expected error with cancelled context")
	}
}
