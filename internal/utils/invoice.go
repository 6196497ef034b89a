package utils

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"
)

const invoiceAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789" // omit easily confused chars

// GenerateInvoiceNumber builds a display invoice number like INV-2026-08-7XK2QD.
func GenerateInvoiceNumber(now time.Time) (string, error) {
	b := make([]byte, 6)
	for i := range b {
		idx, err := rand.Int(rand.Reader, big.NewInt(int64(len(invoiceAlphabet))))
		if err != nil {
			return "", err
		}
		b[i] = invoiceAlphabet[idx.Int64()]
	}
	return fmt.Sprintf("INV-%s-%s", now.Format("2006-01"), string(b)), nil
}
