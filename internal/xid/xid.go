package xid

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// New returns an opaque primary key.
func New() string {
	return uuid.NewString()
}

// InvoiceNumber builds a human readable, globally unique invoice number
// such as INV-20260417-9F2C61A0.
func InvoiceNumber(at time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))[:8]
	return fmt.Sprintf("INV-%s-%s", at.UTC().Format("20060102"), suffix)
}
