package telegram

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func TestGetUpdates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/bottest-token/getUpdates" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("offset"); got != "5" {
			t.Errorf("expected offset 5, got %s", got)
		}
		w.Write([]byte(`{"ok":true,"result":[
			{"update_id":5,"message":{"message_id":1,"from":{"id":7},"chat":{"id":7},"text":"/help"}},
			{"update_id":6,"message":{"message_id":2,"from":{"id":7},"chat":{"id":7},
				"document":{"file_id":"H1","file_name":"report.pdf","file_size":123}}}
		]}`))
	}))
	defer srv.Close()

	c := NewClient("test-token", srv.URL)
	updates, err := c.GetUpdates(context.Background(), 5, 30)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(updates) != 2 {
		t.Fatalf("expected 2 updates, got %d", len(updates))
	}
	if updates[0].Message.Text != "/help" {
		t.Errorf("unexpected text %q", updates[0].Message.Text)
	}
	doc := updates[1].Message.Document
	if doc == nil || doc.FileID != "H1" || doc.FileName != "report.pdf" {
		t.Errorf("unexpected document %+v", doc)
	}
}

func TestGetUpdatesConflict(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusConflict)
		w.Write([]byte(`{"ok":false,"error_code":409,"description":"terminated by other getUpdates request"}`))
	}))
	defer srv.Close()

	c := NewClient("test-token", srv.URL)
	_, err := c.GetUpdates(context.Background(), 0, 30)
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestSendMessage(t *testing.T) {
	var gotChatID, gotText string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/bottest-token/sendMessage" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		gotChatID = r.URL.Query().Get("chat_id")
		gotText = r.URL.Query().Get("text")
		w.Write([]byte(`{"ok":true,"result":{}}`))
	}))
	defer srv.Close()

	c := NewClient("test-token", srv.URL)
	if err := c.SendMessage(context.Background(), 7, "hello"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if gotChatID != "7" || gotText != "hello" {
		t.Errorf("unexpected params chat_id=%s text=%s", gotChatID, gotText)
	}
}

func TestSendMessageAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"ok":false,"error_code":400,"description":"chat not found"}`))
	}))
	defer srv.Close()

	c := NewClient("test-token", srv.URL)
	err := c.SendMessage(context.Background(), 7, "hello")
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestDownloadFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/bottest-token/getFile":
			if got := r.URL.Query().Get("file_id"); got != "H1" {
				t.Errorf("expected file_id H1, got %s", got)
			}
			w.Write([]byte(`{"ok":true,"result":{"file_id":"H1","file_path":"documents/file_0.pdf"}}`))
		case "/file/bottest-token/documents/file_0.pdf":
			w.Write([]byte("document bytes"))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "staged")
	c := NewClient("test-token", srv.URL)
	if err := c.DownloadFile(context.Background(), "H1", dest); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	data, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("reading downloaded file: %v", err)
	}
	if string(data) != "document bytes" {
		t.Errorf("unexpected content %q", data)
	}
}

func TestDownloadFileNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/bottest-token/getFile" {
			w.Write([]byte(`{"ok":true,"result":{"file_id":"H1","file_path":"documents/gone.pdf"}}`))
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "staged")
	c := NewClient("test-token", srv.URL)
	if err := c.DownloadFile(context.Background(), "H1", dest); err == nil {
		t.Fatal("expected error on missing file")
	}
}
