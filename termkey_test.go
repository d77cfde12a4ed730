package lexicache

import "testing"

func TestTermKey(t *testing.T) {
	tests := []struct {
		name     string
		term     string
		language string
		flavor   Flavor
		expected string
	}{
		{"simple", "hello", "en", FlavorMonolingual, "hello|en|mono"},
		{"case folded", "Hello", "EN", FlavorMonolingual, "hello|en|mono"},
		{"whitespace collapsed", "  ice   cream ", "en", FlavorBilingual, "ice cream|en|bi"},
		{"region kept", "color", "en-US", FlavorMonolingual, "color|en_us|mono"},
		{"default flavor", "hello", "en", "", "hello|en|mono"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := TermKey(tt.term, tt.language, tt.flavor)
			if result != tt.expected {
				t.Errorf("TermKey(%q, %q, %q) = %q, want %q", tt.term, tt.language, tt.flavor, result, tt.expected)
			}
		})
	}
}

func TestTermKey_Collides(t *testing.T) {
	a := TermKey("Hello", "en", FlavorMonolingual)
	b := TermKey("hello ", "EN", "mono")
	if a != b {
		t.Errorf("same lookup produced different keys: %q vs %q", a, b)
	}
}

func TestSplitTermKey(t *testing.T) {
	term, lang, flavor, ok := SplitTermKey("hello|en|mono")
	if !ok {
		t.Fatal("expected ok")
	}
	if term != "hello" || lang != "en" || flavor != FlavorMonolingual {
		t.Errorf("unexpected parts: %q %q %q", term, lang, flavor)
	}

	if _, _, _, ok := SplitTermKey("broken"); ok {
		t.Error("expected malformed key to fail")
	}
}

func TestTermKey_SeparatorInParts(t *testing.T) {
	tests := []struct {
		name string
		a, b [3]string
	}{
		{"separator in term vs language", [3]string{"a|b", "c", "d"}, [3]string{"a", "b|c", "d"}},
		{"separator in language vs flavor", [3]string{"a", "b|c", "d"}, [3]string{"a", "b", "c|d"}},
		{"escape text vs separator", [3]string{"a%7Cb", "en", "mono"}, [3]string{"a|b", "en", "mono"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ka := TermKey(tt.a[0], tt.a[1], Flavor(tt.a[2]))
			kb := TermKey(tt.b[0], tt.b[1], Flavor(tt.b[2]))
			if ka == kb {
				t.Errorf("distinct lookups share key %q", ka)
			}
		})
	}
}

func TestSplitTermKey_RoundTrip(t *testing.T) {
	tests := []struct {
		term     string
		language string
		flavor   Flavor
	}{
		{"ac|dc", "en", FlavorMonolingual},
		{"100%", "en", FlavorKids},
		{"50%7c", "x|y", FlavorBilingual},
	}

	for _, tt := range tests {
		t.Run(tt.term, func(t *testing.T) {
			term, lang, flavor, ok := SplitTermKey(TermKey(tt.term, tt.language, tt.flavor))
			if !ok {
				t.Fatal("expected ok")
			}
			if term != tt.term || lang != tt.language || flavor != tt.flavor {
				t.Errorf("got %q %q %q, want %q %q %q", term, lang, flavor, tt.term, tt.language, tt.flavor)
			}
		})
	}
}
