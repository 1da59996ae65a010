package ids

import (
	"regexp"
	"strings"
	"testing"
	"time"
)

func TestReferenceFormat(t *testing.T) {
	at := time.UnixMilli(1700000000123)
	ref := ReferenceAt(PrefixTransfer, at)
	if !strings.HasPrefix(ref, "TRF1700000000123") {
		t.Fatalf("unexpected reference prefix: %s", ref)
	}
	if len(ref) != len("TRF1700000000123")+4 {
		t.Fatalf("unexpected reference length: %s", ref)
	}
	if !regexp.MustCompile(`^TRF\d{17}$`).MatchString(ref) {
		t.Fatalf("reference is not prefix+digits: %s", ref)
	}
}

func TestAccountNumber(t *testing.T) {
	re := regexp.MustCompile(`^[1-9]\d{9}$`)
	for i := 0; i < 100; i++ {
		n := AccountNumber()
		if !re.MatchString(n) {
			t.Fatalf("invalid account number %q", n)
		}
	}
}

func TestNewIsSortable(t *testing.T) {
	a := New()
	b := New()
	if a >= b {
		t.Fatalf("expected monotonic ids, got %s then %s", a, b)
	}
}
