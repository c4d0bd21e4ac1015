package objectstore

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bookyo/client/internal/errors"
)

func newTestClient(handler http.HandlerFunc) (*Client, *httptest.Server) {
	srv := httptest.NewServer(handler)
	c := New(&Config{
		Endpoint:       srv.URL,
		Bucket:         "bookyo-images",
		Region:         "us-east-1",
		AccessKey:      "AKIATEST",
		SecretKey:      "secret",
		ForcePathStyle: true,
	})
	return c, srv
}

func TestUploadSendsObjectToBucketPath(t *testing.T) {
	var gotPath, gotAuth string
	var gotBody []byte
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	})
	defer srv.Close()

	err := c.Upload(context.Background(), "images/listing-1.jpg", []byte("jpeg-bytes"))
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}

	if gotPath != "/bookyo-images/images/listing-1.jpg" {
		t.Errorf("request path = %q, want /bookyo-images/images/listing-1.jpg", gotPath)
	}
	if string(gotBody) != "jpeg-bytes" {
		t.Errorf("request body = %q, want the object bytes", gotBody)
	}
	if !strings.HasPrefix(gotAuth, "AWS4-HMAC-SHA256 Credential=AKIATEST/") {
		t.Errorf("Authorization = %q, want a sigv4 header", gotAuth)
	}
}

func TestUploadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cover.jpg")
	if err := os.WriteFile(path, []byte("cover-bytes"), 0644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	var gotBody []byte
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	})
	defer srv.Close()

	if err := c.UploadFile(context.Background(), "images/k.jpg", path); err != nil {
		t.Fatalf("UploadFile() error = %v", err)
	}
	if string(gotBody) != "cover-bytes" {
		t.Errorf("uploaded %q, want the file contents", gotBody)
	}
}

func TestUploadFileMissingLocalFile(t *testing.T) {
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		t.Error("request reached the server for a missing local file")
	})
	defer srv.Close()

	err := c.UploadFile(context.Background(), "images/k.jpg",
		filepath.Join(t.TempDir(), "missing.jpg"))
	if errors.Code(err) != errors.ErrStorage {
		t.Errorf("error code = %q, want %q", errors.Code(err), errors.ErrStorage)
	}
}

func TestDownload(t *testing.T) {
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("method = %q, want GET", r.Method)
		}
		w.Write([]byte("object-bytes"))
	})
	defer srv.Close()

	data, err := c.Download(context.Background(), "images/k.jpg")
	if err != nil {
		t.Fatalf("Download() error = %v", err)
	}
	if string(data) != "object-bytes" {
		t.Errorf("Download() = %q, want object-bytes", data)
	}
}

func TestDownloadNotFound(t *testing.T) {
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	defer srv.Close()

	_, err := c.Download(context.Background(), "images/missing.jpg")
	if errors.Code(err) != errors.ErrNotFound {
		t.Errorf("error code = %q, want %q", errors.Code(err), errors.ErrNotFound)
	}
}

func TestUploadConnectionRefusedIsNetworkError(t *testing.T) {
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {})
	srv.Close() // nothing listens here anymore

	err := c.Upload(context.Background(), "images/k.jpg", []byte("x"))
	if err == nil {
		t.Fatal("Upload() against a closed endpoint succeeded")
	}
	if !errors.IsNetwork(err) {
		t.Errorf("error classified as %q, want %q", errors.Code(err), errors.ErrNetwork)
	}
}

func TestUploadServerRejectionIsUploadError(t *testing.T) {
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "access denied", http.StatusForbidden)
	})
	defer srv.Close()

	err := c.Upload(context.Background(), "images/k.jpg", []byte("x"))
	if errors.Code(err) != errors.ErrUploadFailed {
		t.Errorf("error code = %q, want %q", errors.Code(err), errors.ErrUploadFailed)
	}
}

func TestDelete(t *testing.T) {
	var gotMethod string
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		w.WriteHeader(http.StatusNoContent)
	})
	defer srv.Close()

	if err := c.Delete(context.Background(), "images/k.jpg"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if gotMethod != http.MethodDelete {
		t.Errorf("method = %q, want DELETE", gotMethod)
	}
}
