package client

import (
	"os"
	"path/filepath"
	"testing"
)

func TestFileTokenStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "planboard", "token")
	store := FileTokenStore{Path: path}

	token, err := store.Load()
	if err != nil || token != "" {
		t.Fatalf("Load() on missing file = %q, %v", token, err)
	}

	session, err := NewSession(store)
	if err != nil {
		t.Fatalf("NewSession() error = %v", err)
	}
	if err := session.Init("abc.def.ghi", &User{ID: "u1"}); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat() error = %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("token file mode = %o, want 600", perm)
	}

	restored, err := NewSession(store)
	if err != nil {
		t.Fatalf("NewSession() error = %v", err)
	}
	if restored.Token() != "abc.def.ghi" || restored.User() != nil {
		t.Errorf("restored session = %q, %+v", restored.Token(), restored.User())
	}

	if err := restored.Clear(); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("token file still exists: %v", err)
	}
	if err := store.Clear(); err != nil {
		t.Errorf("second Clear() error = %v", err)
	}
}

func TestTaskUpdateBody(t *testing.T) {
	empty := ""
	assignee := "64b7f0c2e4b0a1a2b3c4d5e6"
	hours := 2.5

	tests := []struct {
		name   string
		update TaskUpdate
		want   map[string]any
	}{
		{name: "nothing set", update: TaskUpdate{}, want: map[string]any{}},
		{name: "unassign", update: TaskUpdate{AssignedTo: &empty}, want: map[string]any{"assignedTo": nil}},
		{name: "assign", update: TaskUpdate{AssignedTo: &assignee}, want: map[string]any{"assignedTo": assignee}},
		{name: "estimate", update: TaskUpdate{EstimatedHours: &hours}, want: map[string]any{"estimatedHours": hours}},
		{name: "clear estimate wins", update: TaskUpdate{EstimatedHours: &hours, ClearEstimate: true}, want: map[string]any{"estimatedHours": nil}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.update.body()
			if len(got) != len(tt.want) {
				t.Fatalf("body = %v, want %v", got, tt.want)
			}
			for k, v := range tt.want {
				gv, ok := got[k]
				if !ok || gv != v {
					t.Errorf("body[%s] = %v, want %v", k, gv, v)
				}
			}
		})
	}
}
