package importer

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestCheckAll_Statuses(t *testing.T) {
	srvOK := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodHead {
			t.Errorf("method = %s, want HEAD", r.Method)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srvOK.Close()
	srvGone := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusGone)
	}))
	defer srvGone.Close()
	srvMoved := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Location", "https://example.com/new")
		w.WriteHeader(http.StatusMovedPermanently)
	}))
	defer srvMoved.Close()

	sdb := tempSourceDB(t)
	err := sdb.Seed([]Adapter{
		&fakeAdapter{"ok", "cs1", "ok", srvOK.URL, "CC0-1.0"},
		&fakeAdapter{"gone", "cs2", "gone", srvGone.URL, "CC0-1.0"},
		&fakeAdapter{"moved", "cs3", "moved", srvMoved.URL, "CC0-1.0"},
	})
	if err != nil {
		t.Fatalf("Seed: %v", err)
	}

	ok, failed := NewChecker(sdb, quietLogger(), time.Hour).CheckAll(context.Background())
	if ok != 2 || failed != 1 {
		t.Errorf("ok=%d failed=%d, want 2 and 1", ok, failed)
	}

	sources, _ := sdb.ListSources()
	status := make(map[string]int)
	for _, src := range sources {
		if src.LastStatus != nil {
			status[src.AdapterID] = *src.LastStatus
		}
	}
	want := map[string]int{"ok": 200, "gone": 410, "moved": 301}
	for id, code := range want {
		if status[id] != code {
			t.Errorf("%s: status = %d, want %d", id, status[id], code)
		}
	}
}

func TestCheckAll_NetworkError(t *testing.T) {
	sdb := tempSourceDB(t)
	if err := sdb.Seed([]Adapter{&fakeAdapter{"dead", "cs1", "dead", "http://127.0.0.1:1", "CC0-1.0"}}); err != nil {
		t.Fatalf("Seed: %v", err)
	}

	_, failed := NewChecker(sdb, quietLogger(), time.Hour).CheckAll(context.Background())
	if failed != 1 {
		t.Errorf("failed = %d, want 1", failed)
	}

	sources, _ := sdb.ListSources()
	src := sources[0]
	if src.LastStatus == nil || *src.LastStatus != 0 {
		t.Errorf("status = %v, want 0 for network error", src.LastStatus)
	}
	if src.LastError == nil || *src.LastError == "" {
		t.Error("expected last_error for network error")
	}
}

func TestCheckAll_EmptyDB(t *testing.T) {
	sdb := tempSourceDB(t)
	ok, failed := NewChecker(sdb, nil, time.Hour).CheckAll(context.Background())
	if ok != 0 || failed != 0 {
		t.Errorf("ok=%d failed=%d on empty db", ok, failed)
	}
}

func TestStart_StopsOnCancel(t *testing.T) {
	sdb := tempSourceDB(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		NewChecker(sdb, quietLogger(), 10*time.Millisecond).Start(ctx)
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not return after cancel")
	}
}
