// Package protector implements the opaque, purpose-scoped symmetric
// encryptor/decryptor of spec.md §6: Protect/Unprotect round-trip values
// (the SMTP password at rest) without the caller ever seeing key material.
//
// The spec abstracts the implementation entirely; no example repo in the
// corpus imports a third-party AEAD library, so this is built directly on
// stdlib crypto/aes + crypto/cipher (AES-256-GCM), the same preference the
// teacher shows elsewhere for stdlib over an added dependency when the
// standard library already covers the concern squarely.
package protector

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

const keyFileName = "protector.key"

// ErrUnprotectFailed indicates the opaque value could not be decrypted or
// authenticated — wrong key, purpose mismatch, or corruption.
var ErrUnprotectFailed = errors.New("protector: unprotect failed")

// Protector encrypts/decrypts small secrets at rest, scoped by a purpose
// string so a value protected for one purpose cannot be unprotected under
// another (the purpose is folded in as AEAD additional data).
type Protector struct {
	gcm cipher.AEAD
}

// Open loads the AES-256 key material from dataRoot, generating and
// persisting a fresh random key on first run (mode 0600, alongside the
// store's own database file).
func Open(dataRoot string) (*Protector, error) {
	if err := os.MkdirAll(dataRoot, 0o755); err != nil {
		return nil, fmt.Errorf("protector: create data root: %w", err)
	}

	path := filepath.Join(dataRoot, keyFileName)
	key, err := loadOrCreateKey(path)
	if err != nil {
		return nil, err
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("protector: init cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("protector: init gcm: %w", err)
	}
	return &Protector{gcm: gcm}, nil
}

func loadOrCreateKey(path string) ([]byte, error) {
	raw, err := os.ReadFile(path)
	if err == nil {
		key, decErr := hex.DecodeString(string(raw))
		if decErr != nil || len(key) != 32 {
			return nil, fmt.Errorf("protector: key file %s is corrupt", path)
		}
		return key, nil
	}
	if !os.IsNotExist(err) {
		return nil, fmt.Errorf("protector: read key file: %w", err)
	}

	key := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, fmt.Errorf("protector: generate key: %w", err)
	}
	if err := os.WriteFile(path, []byte(hex.EncodeToString(key)), 0o600); err != nil {
		return nil, fmt.Errorf("protector: persist key: %w", err)
	}
	return key, nil
}

// Protect encrypts plain under purpose, returning a base64 opaque string
// safe to store in the database.
func (p *Protector) Protect(purpose, plain string) (string, error) {
	nonce := make([]byte, p.gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("protector: generate nonce: %w", err)
	}
	sealed := p.gcm.Seal(nonce, nonce, []byte(plain), []byte(purpose))
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Unprotect reverses Protect. A purpose mismatch, wrong key, or corrupted
// input all surface as ErrUnprotectFailed.
func (p *Protector) Unprotect(purpose, opaque string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(opaque)
	if err != nil {
		return "", ErrUnprotectFailed
	}
	nonceSize := p.gcm.NonceSize()
	if len(raw) < nonceSize {
		return "", ErrUnprotectFailed
	}
	nonce, ciphertext := raw[:nonceSize], raw[nonceSize:]
	plain, err := p.gcm.Open(nil, nonce, ciphertext, []byte(purpose))
	if err != nil {
		return "", ErrUnprotectFailed
	}
	return string(plain), nil
}

// SmtpPasswordPurpose is the constant purpose string spec.md §6 names for
// scoping the SMTP password at rest.
const SmtpPasswordPurpose = "ITWebsiteMonitor.SmtpPassword.v1"
