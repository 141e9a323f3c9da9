package common

import (
	"math/rand"
	"strings"
)

const referenceDigits = 10

// GenerateReference builds a ledger reference of the form PREFIX-0123456789X:
// ten random digits followed by one uppercase letter.
func GenerateReference(prefix string) string {
	var b strings.Builder
	b.Grow(len(prefix) + referenceDigits + 2)
	b.WriteString(prefix)
	b.WriteByte('-')
	for i := 0; i < referenceDigits; i++ {
		b.WriteByte(byte('0' + rand.Intn(10)))
	}
	b.WriteByte(byte('A' + rand.Intn(26)))
	return b.String()
}

// GenerateCode returns n random characters from A-Z0-9. Used for referral codes.
func GenerateCode(n int) string {
	const characters = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	result := make([]byte, n)
	for i := range result {
		result[i] = characters[rand.Intn(len(characters))]
	}
	return string(result)
}
