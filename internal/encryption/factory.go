package encryption

import (
	"fmt"

	"vertebrae-go/internal/config"
	"vertebrae-go/internal/vertebrae"
)

// NewEncryptorFromConfig creates an Encryptor based on the configuration
// type. A "none" type returns nil; callers treat a nil encryptor as
// plaintext mirroring.
func NewEncryptorFromConfig(cfg config.EncryptionConfig) (vertebrae.Encryptor, error) {
	switch cfg.Type {
	case "none", "":
		return nil, nil
	case "age":
		return NewAgeEncryptor(cfg), nil
	case "test":
		return NewTestEncryptor(), nil
	default:
		return nil, fmt.Errorf("unknown encryption type: %q", cfg.Type)
	}
}
