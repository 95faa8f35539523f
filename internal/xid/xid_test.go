package xid

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestNewReturnsUUID(t *testing.T) {
	id := New()
	if _, err := uuid.Parse(id); err != nil {
		t.Fatalf("expected uuid, got %q: %v", id, err)
	}
	if id == New() {
		t.Fatalf("expected distinct ids")
	}
}

func TestInvoiceNumberFormat(t *testing.T) {
	at := time.Date(2026, time.April, 17, 10, 0, 0, 0, time.UTC)
	got := InvoiceNumber(at)
	if !strings.HasPrefix(got, "INV-20260417-") {
		t.Fatalf("unexpected invoice number %q", got)
	}
	if len(got) != len("INV-20260417-")+8 {
		t.Fatalf("unexpected invoice number length %q", got)
	}
}
