package misc

import (
	"testing"
	"time"
)

func TestLookup_DistinguishesEmpty(t *testing.T) {
	t.Setenv("PGPROBE_X_EMPTY", "")
	if v, ok := Lookup("PGPROBE_X_EMPTY"); !ok || v != "" {
		t.Fatalf("Lookup empty=(%q,%v) want (\"\",true)", v, ok)
	}
	if _, ok := Lookup("PGPROBE_X_SURELY_UNSET_42"); ok {
		t.Fatal("Lookup unset reported set")
	}
}

func TestParseSeconds(t *testing.T) {
	tests := []struct {
		name   string
		val    string
		want   time.Duration
		wantOK bool
	}{
		{"seconds", "5", 5 * time.Second, true},
		{"go syntax", " 1m30s ", 90 * time.Second, true},
		{"negative clamps", "-3", 0, true},
		{"negative duration clamps", "-1s", 0, true},
		{"bad format", "oops", 0, false},
		{"empty", "", 0, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := ParseSeconds(tc.val)
			if got != tc.want || ok != tc.wantOK {
				t.Fatalf("ParseSeconds(%q)=(%v,%v) want (%v,%v)", tc.val, got, ok, tc.want, tc.wantOK)
			}
		})
	}
}

func TestGetBool(t *testing.T) {
	tests := []struct {
		val  string
		def  bool
		want bool
	}{
		{"yes", false, true},
		{"0", true, false},
		{"maybe", true, true},
		{"", false, false},
	}
	for _, tc := range tests {
		t.Setenv("PGPROBE_X_BOOL", tc.val)
		if got := GetBool("PGPROBE_X_BOOL", tc.def); got != tc.want {
			t.Errorf("GetBool(%q)=%v want %v", tc.val, got, tc.want)
		}
	}
}
