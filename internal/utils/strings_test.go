package utils

import "testing"

func TestHasFullName(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"Madonna", false},
		{"", false},
		{"   ", false},
		{"Jane Doe", true},
		{"  Jane   Q   Doe ", true},
		{"Jane\tDoe", true},
	}

	for _, tt := range tests {
		if got := HasFullName(tt.name); got != tt.want {
			t.Errorf("HasFullName(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestNormalizeOptional(t *testing.T) {
	blank := "   "
	if NormalizeOptional(&blank) != nil {
		t.Error("expected blank optional to collapse to nil")
	}
	if NormalizeOptional(nil) != nil {
		t.Error("expected nil to stay nil")
	}

	v := "  Black tie "
	got := NormalizeOptional(&v)
	if got == nil || *got != "Black tie" {
		t.Errorf("unexpected normalized value %v", got)
	}
	if StringValue(got) != "Black tie" || StringValue(nil) != "" {
		t.Error("StringValue mismatch")
	}
}

func TestNormalizeEmail(t *testing.T) {
	if got := NormalizeEmail("  Guest@Example.COM "); got != "guest@example.com" {
		t.Errorf("got %q", got)
	}
}
