package state

import (
	"reflect"
	"testing"
)

type item struct {
	ID    string
	Title string
}

func (i item) Key() string { return i.ID }

func keys(items []item) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, it.ID)
	}
	return out
}

func TestApply(t *testing.T) {
	base := []item{{ID: "a", Title: "A"}, {ID: "b", Title: "B"}}

	tests := []struct {
		name      string
		event     Event[item]
		wantKeys  []string
		wantTitle map[string]string
	}{
		{
			name:     "added goes first",
			event:    Added[item]{Item: item{ID: "c", Title: "C"}},
			wantKeys: []string{"c", "a", "b"},
		},
		{
			name:      "replaced by key",
			event:     Replaced[item]{Item: item{ID: "b", Title: "B2"}},
			wantKeys:  []string{"a", "b"},
			wantTitle: map[string]string{"b": "B2"},
		},
		{
			name:     "replace of unknown key is a no-op",
			event:    Replaced[item]{Item: item{ID: "z", Title: "Z"}},
			wantKeys: []string{"a", "b"},
		},
		{
			name:     "removed",
			event:    Removed[item]{ID: "a"},
			wantKeys: []string{"b"},
		},
		{
			name:     "list replaced",
			event:    ListReplaced[item]{Items: []item{{ID: "x"}}},
			wantKeys: []string{"x"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Apply(base, tt.event)

			if !reflect.DeepEqual(keys(got), tt.wantKeys) {
				t.Errorf("keys = %v, want %v", keys(got), tt.wantKeys)
			}
			for _, it := range got {
				if want, ok := tt.wantTitle[it.ID]; ok && it.Title != want {
					t.Errorf("title of %s = %q, want %q", it.ID, it.Title, want)
				}
			}
			if base[0].ID != "a" || base[1].Title != "B" || len(base) != 2 {
				t.Errorf("input was modified: %+v", base)
			}
		})
	}
}

func TestApplyCurrent(t *testing.T) {
	current := &item{ID: "a", Title: "A"}

	if got := ApplyCurrent(current, Event[item](Replaced[item]{Item: item{ID: "a", Title: "A2"}})); got == nil || got.Title != "A2" {
		t.Errorf("replace current = %+v", got)
	}
	if got := ApplyCurrent(current, Event[item](Replaced[item]{Item: item{ID: "b"}})); got != current {
		t.Errorf("replace other changed current: %+v", got)
	}
	if got := ApplyCurrent(current, Event[item](Removed[item]{ID: "a"})); got != nil {
		t.Errorf("remove current = %+v, want nil", got)
	}
	if got := ApplyCurrent(nil, Event[item](Removed[item]{ID: "a"})); got != nil {
		t.Errorf("nil current = %+v", got)
	}
}
