package testutil

import (
	"vertebrae-go/internal/encryption"
	"vertebrae-go/internal/vertebrae"
)

// NewTestEncryptor creates a new test encryptor for testing.
func NewTestEncryptor() vertebrae.Encryptor {
	return encryption.NewTestEncryptor()
}
