package ocr

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"pdf-rag/internal/apperr"
)

type fakeMistral struct {
	mu        sync.Mutex
	calls     []string
	ocrStatus int
	deleteErr bool
	uploaded  string
	ocrBody   ocrRequest
}

func (f *fakeMistral) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/files", func(w http.ResponseWriter, r *http.Request) {
		f.record("upload")
		if r.Header.Get("Authorization") != "Bearer secret" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		if r.FormValue("purpose") != "ocr" {
			t.Errorf("purpose = %q", r.FormValue("purpose"))
		}
		file, hdr, err := r.FormFile("file")
		if err != nil {
			t.Errorf("form file: %v", err)
			return
		}
		defer file.Close()
		data, _ := io.ReadAll(file)
		f.mu.Lock()
		f.uploaded = hdr.Filename + ":" + string(data)
		f.mu.Unlock()
		_ = json.NewEncoder(w).Encode(map[string]string{"id": "file-1"})
	})
	mux.HandleFunc("GET /v1/files/file-1/url", func(w http.ResponseWriter, r *http.Request) {
		f.record("url")
		if r.URL.Query().Get("expiry") != "1" {
			t.Errorf("expiry = %q", r.URL.Query().Get("expiry"))
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"url": "https://signed.example/file-1"})
	})
	mux.HandleFunc("POST /v1/ocr", func(w http.ResponseWriter, r *http.Request) {
		f.record("ocr")
		f.mu.Lock()
		_ = json.NewDecoder(r.Body).Decode(&f.ocrBody)
		status := f.ocrStatus
		f.mu.Unlock()
		if status != 0 {
			http.Error(w, "model overloaded", status)
			return
		}
		_, _ = io.WriteString(w, `{"model":"mistral-ocr-latest","pages":[
			{"index":0,"markdown":"# Manual\n\nIntro","images":[]},
			{"index":1,"markdown":"## Safety","images":[]}]}`)
	})
	mux.HandleFunc("DELETE /v1/files/file-1", func(w http.ResponseWriter, r *http.Request) {
		f.record("delete")
		if f.deleteErr {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, `{"id":"file-1","deleted":true}`)
	})
	return mux
}

func (f *fakeMistral) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func writePDF(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "manual.pdf")
	if err := os.WriteFile(path, []byte("%PDF-1.4 fake"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestExtract(t *testing.T) {
	fake := &fakeMistral{}
	srv := httptest.NewServer(fake.handler(t))
	defer srv.Close()

	doc, err := NewClient(srv.URL, "secret", "").Extract(context.Background(), writePDF(t))
	if err != nil {
		t.Fatal(err)
	}
	if doc.Filename != "manual.pdf" || len(doc.Pages) != 2 {
		t.Fatalf("unexpected document %+v", doc)
	}
	if doc.Pages[1].Index != 1 || doc.Pages[1].Markdown != "## Safety" {
		t.Errorf("page 1 = %+v", doc.Pages[1])
	}
	if got := strings.Join(fake.calls, ","); got != "upload,url,ocr,delete" {
		t.Errorf("calls = %s", got)
	}
	if fake.uploaded != "manual.pdf:%PDF-1.4 fake" {
		t.Errorf("uploaded = %q", fake.uploaded)
	}
	if fake.ocrBody.Model != DefaultModel || fake.ocrBody.Document.DocumentURL != "https://signed.example/file-1" {
		t.Errorf("ocr request = %+v", fake.ocrBody)
	}
}

func TestExtract_upstreamFailureStillCleansUp(t *testing.T) {
	fake := &fakeMistral{ocrStatus: http.StatusServiceUnavailable, deleteErr: true}
	srv := httptest.NewServer(fake.handler(t))
	defer srv.Close()

	_, err := NewClient(srv.URL, "secret", "").Extract(context.Background(), writePDF(t))
	if !apperr.Is(err, apperr.Upstream) {
		t.Fatalf("expected upstream error, got %v", err)
	}
	if !strings.Contains(err.Error(), "503") || !strings.Contains(err.Error(), "model overloaded") {
		t.Errorf("error should carry status and body: %v", err)
	}
	if got := strings.Join(fake.calls, ","); got != "upload,url,ocr,delete" {
		t.Errorf("calls = %s", got)
	}
}

func TestExtract_unauthorized(t *testing.T) {
	fake := &fakeMistral{}
	srv := httptest.NewServer(fake.handler(t))
	defer srv.Close()

	_, err := NewClient(srv.URL, "wrong", "").Extract(context.Background(), writePDF(t))
	if !apperr.Is(err, apperr.Upstream) || !strings.Contains(err.Error(), "401") {
		t.Fatalf("expected upstream 401, got %v", err)
	}
	if len(fake.calls) != 1 {
		t.Errorf("nothing to clean up after a failed upload, calls = %v", fake.calls)
	}
}

func TestExtract_missingFile(t *testing.T) {
	_, err := NewClient("http://127.0.0.1:0", "secret", "").Extract(context.Background(), filepath.Join(t.TempDir(), "nope.pdf"))
	if !apperr.Is(err, apperr.Input) {
		t.Errorf("expected input error, got %v", err)
	}
}
