package runstore

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestAttachAdminRoutes(t *testing.T) {
	s := openTestStore(t)

	mux := http.NewServeMux()
	s.AttachAdminRoutes(mux)

	// The debug index should be registered (auth may reject, 404 means
	// the route never mounted).
	req := httptest.NewRequest(http.MethodGet, "/debug/", nil)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	if w.Code == http.StatusNotFound {
		t.Error("expected /debug/ route to be registered")
	}
}

func TestAttachAdminRoutes_BackupDownload(t *testing.T) {
	s := openTestStore(t)
	if _, err := s.BeginRun("src", 6, 6, 82, 1); err != nil {
		t.Fatalf("BeginRun: %v", err)
	}

	mux := http.NewServeMux()
	s.AttachAdminRoutes(mux)

	req := httptest.NewRequest(http.MethodGet, "/debug/backup", nil)
	req.RemoteAddr = "127.0.0.1:12345"
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	// Auth may reject the request depending on environment; only a 404
	// or 500 means the handler itself is broken.
	if w.Code == http.StatusNotFound {
		t.Fatal("backup endpoint not registered")
	}
	if w.Code == http.StatusInternalServerError {
		t.Fatalf("backup failed: %s", w.Body.String())
	}
	if w.Code == http.StatusOK {
		// SQLite main database files begin with this header string.
		if w.Body.Len() < 15 || string(w.Body.Bytes()[:15]) != "SQLite format 3" {
			t.Errorf("backup header = %q", w.Body.String())
		}
	}
}
