package action

import (
	"slices"
	"testing"
)

func keys(ks ...SubKey) []SubKey { return ks }

func TestParseSubKey(t *testing.T) {
	cases := []struct {
		in      string
		want    SubKey
		wantErr bool
	}{
		{"0.1.2", SubKey{0, 1, 2}, false},
		{" 3 ", SubKey{Track: 3}, false},
		{"1.2", SubKey{}, true},
		{"a.b.c", SubKey{}, true},
		{"0.-1.0", SubKey{}, true},
		{"", SubKey{}, true},
	}
	for _, tc := range cases {
		got, err := ParseSubKey(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("ParseSubKey(%q) expected error, got %v", tc.in, got)
			}
			continue
		}
		if err != nil {
			t.Fatalf("ParseSubKey(%q) error: %v", tc.in, err)
		}
		if got != tc.want {
			t.Fatalf("ParseSubKey(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestParseSubKeysSortsAndDedups(t *testing.T) {
	got, err := ParseSubKeys([]string{"0.1.0,0.0.2", "0.0.2", "1"})
	if err != nil {
		t.Fatalf("ParseSubKeys error: %v", err)
	}
	want := keys(SubKey{0, 0, 1}, SubKey{0, 0, 2}, SubKey{0, 1, 0})
	if !slices.Equal(got, want) {
		t.Fatalf("ParseSubKeys = %v, want %v", got, want)
	}
}

func TestMergeUnion(t *testing.T) {
	a := NewAdd("hls", 1, "content", keys(SubKey{Track: 1}), nil)
	b := NewAdd("hls", 1, "content", keys(SubKey{Track: 2}), []byte("title"))
	merged, err := a.Merge(b)
	if err != nil {
		t.Fatalf("Merge error: %v", err)
	}
	want := keys(SubKey{Track: 1}, SubKey{Track: 2})
	if !slices.Equal(merged.SubKeys, want) {
		t.Fatalf("merged keys = %v, want %v", merged.SubKeys, want)
	}
	if string(merged.CustomData) != "title" {
		t.Fatalf("merged custom data = %q, want title", merged.CustomData)
	}
	if len(a.SubKeys) != 1 {
		t.Fatalf("merge mutated receiver: %v", a.SubKeys)
	}
}

func TestMergeIdempotent(t *testing.T) {
	a := NewAdd("hls", 1, "content", keys(SubKey{Track: 1}, SubKey{Track: 2}), []byte("x"))
	merged, err := a.Merge(a)
	if err != nil {
		t.Fatalf("Merge error: %v", err)
	}
	if !merged.Equal(a) {
		t.Fatalf("merge of identical actions changed it: %v vs %v", merged, a)
	}
}

func TestMergeAllKeysAbsorbs(t *testing.T) {
	all := NewAdd("hls", 1, "content", nil, nil)
	some := NewAdd("hls", 2, "content", keys(SubKey{Track: 4}), nil)
	merged, err := some.Merge(all)
	if err != nil {
		t.Fatalf("Merge error: %v", err)
	}
	if !merged.AllKeys() {
		t.Fatalf("merge with all-keys action should target all keys, got %v", merged.SubKeys)
	}
	if merged.Version != 2 {
		t.Fatalf("merged version = %d, want 2", merged.Version)
	}
}

func TestMergeRejectsRemoveAndOtherContent(t *testing.T) {
	a := NewAdd("hls", 1, "a", nil, nil)
	if _, err := a.Merge(NewAdd("hls", 1, "b", nil, nil)); err == nil {
		t.Fatalf("expected error merging different content")
	}
	if _, err := a.Merge(NewRemove("hls", 1, "a", nil)); err == nil {
		t.Fatalf("expected error merging a remove action")
	}
}

func TestCovers(t *testing.T) {
	ab := NewAdd("hls", 1, "c", keys(SubKey{Track: 1}, SubKey{Track: 2}), nil)
	a := NewAdd("hls", 1, "c", keys(SubKey{Track: 1}), nil)
	all := NewAdd("hls", 1, "c", nil, nil)
	if !ab.Covers(a) {
		t.Fatalf("{1,2} should cover {1}")
	}
	if a.Covers(ab) {
		t.Fatalf("{1} should not cover {1,2}")
	}
	if ab.Covers(all) {
		t.Fatalf("explicit keys should not cover all keys")
	}
	if !all.Covers(ab) {
		t.Fatalf("all keys should cover any set")
	}
}
