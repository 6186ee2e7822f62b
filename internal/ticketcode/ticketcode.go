// Package ticketcode generates the two identifiers every ticket carries: a
// short human-facing code printed on the ticket and an opaque validation
// hash embedded in the QR artifact. Generation is contention-free; the
// database unique constraints remain the backstop against the (negligible)
// collision probability.
package ticketcode

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// codeBytes yields an 8-character uppercase hex code, short enough to read
// out at the door.
const codeBytes = 4

type Generator struct{}

func NewGenerator() *Generator {
	return &Generator{}
}

// Code returns a fresh human-readable ticket code.
func (Generator) Code() (string, error) {
	b := make([]byte, codeBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("ticketcode: %w", err)
	}

	return strings.ToUpper(hex.EncodeToString(b)), nil
}

// ValidationHash returns a fixed-length digest of a freshly generated UUID.
// It is not derivable from the ticket code.
func (Generator) ValidationHash() (string, error) {
	u, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("ticketcode: %w", err)
	}

	sum := sha256.Sum256([]byte(u.String()))
	return hex.EncodeToString(sum[:]), nil
}
