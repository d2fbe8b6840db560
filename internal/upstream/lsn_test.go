package upstream

import "testing"

func TestParseAndFormatLSN(t *testing.T) {
	cases := []struct {
		text string
		lsn  uint64
	}{
		{"0/0", 0},
		{"0/16B3748", 0x16B3748},
		{"16/B374000", 0x16B374000},
	}
	for _, c := range cases {
		var got uint64
		if err := parseLSN(c.text, &got); err != nil {
			t.Fatalf("parseLSN(%q): %v", c.text, err)
		}
		if got != c.lsn {
			t.Errorf("parseLSN(%q) = %#x, want %#x", c.text, got, c.lsn)
		}
		if formatted := formatLSN(c.lsn); formatted == "" {
			t.Errorf("formatLSN(%#x) returned empty string", c.lsn)
		}
	}
}

func TestFormatLSNRoundTrip(t *testing.T) {
	lsn := uint64(0x2AABBCCDD)
	text := formatLSN(lsn)
	var back uint64
	if err := parseLSN(text, &back); err != nil {
		t.Fatalf("parseLSN(%q): %v", text, err)
	}
	if back != lsn {
		t.Errorf("round trip: got %#x, want %#x", back, lsn)
	}
}
