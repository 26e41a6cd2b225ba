package file

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/telepost-io/telepost/internal/models"
)

func storePath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "user_data.json")
}

func TestOpenMissingFileStartsEmpty(t *testing.T) {
	s, err := Open(storePath(t))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	bag, err := s.GetUserSettings(context.Background(), "1")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if bag.SenderAddress != "" || len(bag.Receivers) != 0 {
		t.Errorf("expected empty bag, got %+v", bag)
	}
}

func TestOpenCorruptFileStartsEmpty(t *testing.T) {
	path := storePath(t)
	if err := os.WriteFile(path, []byte("{not json"), 0o640); err != nil {
		t.Fatal(err)
	}

	s, err := Open(path)
	if err != nil {
		t.Fatalf("expected corrupt file to be tolerated, got %v", err)
	}

	bag, err := s.GetUserSettings(context.Background(), "1")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(bag.Receivers) != 0 {
		t.Errorf("expected empty bag, got %+v", bag)
	}
}

func TestPutSurvivesReopen(t *testing.T) {
	path := storePath(t)
	ctx := context.Background()

	s, err := Open(path)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	err = s.PutUserSettings(ctx, "42", &models.UserSettings{
		SenderAddress: "a@x.com",
		Receivers:     map[string]string{"home": "b@y.com"},
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	bag, err := reopened.GetUserSettings(ctx, "42")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if bag.SenderAddress != "a@x.com" {
		t.Errorf("expected a@x.com, got %s", bag.SenderAddress)
	}
	if bag.Receivers["home"] != "b@y.com" {
		t.Errorf("expected receivers restored, got %v", bag.Receivers)
	}
}

func TestPutLeavesNoTempFile(t *testing.T) {
	path := storePath(t)
	ctx := context.Background()

	s, err := Open(path)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if err := s.PutUserSettings(ctx, "1", &models.UserSettings{SenderAddress: "a@x.com"}); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Errorf("expected temp file to be renamed away, stat err = %v", err)
	}
}

func TestGetReturnsCopy(t *testing.T) {
	path := storePath(t)
	ctx := context.Background()

	s, err := Open(path)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if err := s.PutUserSettings(ctx, "1", &models.UserSettings{
		Receivers: map[string]string{"home": "b@y.com"},
	}); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	bag, _ := s.GetUserSettings(ctx, "1")
	bag.Receivers["home"] = "tampered@y.com"

	fresh, _ := s.GetUserSettings(ctx, "1")
	if fresh.Receivers["home"] != "b@y.com" {
		t.Error("mutating a returned bag must not affect stored state")
	}
}

func TestUsersIsolated(t *testing.T) {
	path := storePath(t)
	ctx := context.Background()

	s, err := Open(path)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if err := s.PutUserSettings(ctx, "1", &models.UserSettings{SenderAddress: "one@x.com"}); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if err := s.PutUserSettings(ctx, "2", &models.UserSettings{SenderAddress: "two@x.com"}); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	one, _ := s.GetUserSettings(ctx, "1")
	two, _ := s.GetUserSettings(ctx, "2")
	if one.SenderAddress != "one@x.com" || two.SenderAddress != "two@x.com" {
		t.Errorf("expected isolated users, got %q and %q", one.SenderAddress, two.SenderAddress)
	}
}
