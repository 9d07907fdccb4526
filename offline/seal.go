package offline

import (
	"crypto/rand"
	"encoding/json"
	"errors"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
)

// seal encrypts the bundle envelope. The random nonce is prefixed to
// the ciphertext.
func (m *Manager) seal(b Bundle) ([]byte, error) {
	plain, err := json.Marshal(b)
	if err != nil {
		return nil, err
	}
	aead, err := chacha20poly1305.NewX(m.key)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return aead.Seal(nonce, nonce, plain, nil), nil
}

// open decrypts and decodes a sealed bundle.
func (m *Manager) open(sealed []byte) (Bundle, error) {
	aead, err := chacha20poly1305.NewX(m.key)
	if err != nil {
		return Bundle{}, err
	}
	if len(sealed) < aead.NonceSize() {
		return Bundle{}, errors.New("sealed bundle truncated")
	}
	nonce, ct := sealed[:aead.NonceSize()], sealed[aead.NonceSize():]
	plain, err := aead.Open(nil, nonce, ct, nil)
	if err != nil {
		return Bundle{}, err
	}
	var b Bundle
	if err := json.Unmarshal(plain, &b); err != nil {
		return Bundle{}, err
	}
	return b, nil
}
