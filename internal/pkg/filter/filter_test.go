package filter

import "testing"

func TestNew(t *testing.T) {
	f := New()

	tests := []struct {
		text string
		want bool
	}{
		{"hello there", false},
		{"", false},
		{"I need to assess the class", false},
		{"hello world 4 55 $$", false},
		{"can you assist me", false},
		{"what the fuck", true},
		{"SHIT", true},
	}
	for _, tt := range tests {
		if got := f.IsProfane(tt.text); got != tt.want {
			t.Errorf("IsProfane(%q) = %v, want %v", tt.text, got, tt.want)
		}
	}
}

func TestNop(t *testing.T) {
	if Nop.IsProfane("what the fuck") {
		t.Error("Nop should accept everything")
	}
}

func TestFunc(t *testing.T) {
	f := Func(func(s string) bool { return s == "bad" })
	if !f.IsProfane("bad") || f.IsProfane("good") {
		t.Error("Func should delegate to the wrapped function")
	}
}
