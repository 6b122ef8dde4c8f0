package amount

import "testing"

func TestAccept(t *testing.T) {
	cases := []struct {
		prev, next, want string
	}{
		{"", "1", "1"},
		{"1", "12", "12"},
		{"12", "12.", "12."},
		{"12.", "12.5", "12.5"},
		{"12.5", "12.5.", "12.5"},
		{"12", "12a", "12"},
		{"12", "-12", "12"},
		{"12", "", ""},
		{"", ".", "."},
	}
	for _, c := range cases {
		if got := Accept(c.prev, c.next); got != c.want {
			t.Errorf("Accept(%q, %q) = %q, want %q", c.prev, c.next, got, c.want)
		}
	}
}

func TestParse(t *testing.T) {
	if d, err := Parse(" 250.00 "); err != nil || d.StringFixed(2) != "250.00" {
		t.Fatalf("Parse(250.00) = %s, %v", d, err)
	}
	if d, err := Parse(".5"); err != nil || d.String() != "0.5" {
		t.Fatalf("Parse(.5) = %s, %v", d, err)
	}
	for _, bad := range []string{"", ".", "abc", "1e5", "1,000"} {
		if _, err := Parse(bad); err != ErrInvalid {
			t.Errorf("Parse(%q) err = %v, want ErrInvalid", bad, err)
		}
	}
	for _, zero := range []string{"0", "0.00", "00."} {
		if _, err := Parse(zero); err != ErrNotPositive {
			t.Errorf("Parse(%q) err = %v, want ErrNotPositive", zero, err)
		}
	}
}
