package fieldcrypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Formato del blob persistido (hex): SALT(64) || NONCE(16) || TAG(16) || CIPHERTEXT.
// Cambiar el orden o los tamaños rompe los datos ya almacenados.
const (
	saltLength  = 64
	nonceLength = 16
	tagLength   = 16
)

var (
	ErrSecretRequired = errors.New("fieldcrypto: encryption secret is required")
	ErrMalformedBlob  = errors.New("fieldcrypto: malformed blob")
	ErrDecryptFailed  = errors.New("fieldcrypto: decrypt failed")
)

// Cipher cifra/descifra campos sensibles individuales con AES-256-GCM.
// No guarda estado mutable; es seguro para uso concurrente.
type Cipher struct {
	key []byte
}

// New deriva la clave de 32 bytes con SHA-256 sobre el secreto configurado.
// Así absorbemos secretos de cualquier longitud sin usarlos directo como clave.
func New(secret string) (*Cipher, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, ErrSecretRequired
	}
	key := sha256.Sum256([]byte(secret))
	return &Cipher{key: key[:]}, nil
}

// Encrypt cifra un valor de texto. Vacío se mantiene vacío (ausente queda ausente).
func (c *Cipher) Encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}

	gcm, err := c.gcm()
	if err != nil {
		return "", err
	}

	salt := make([]byte, saltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", fmt.Errorf("fieldcrypto: salt generation failed: %w", err)
	}
	nonce := make([]byte, nonceLength)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("fieldcrypto: nonce generation failed: %w", err)
	}

	// Seal devuelve ciphertext||tag; el formato almacenado lleva el tag antes
	// del ciphertext, así que lo reordenamos aquí.
	sealed := gcm.Seal(nil, nonce, []byte(plaintext), nil)
	ciphertext := sealed[:len(sealed)-tagLength]
	tag := sealed[len(sealed)-tagLength:]

	blob := make([]byte, 0, saltLength+nonceLength+tagLength+len(ciphertext))
	blob = append(blob, salt...)
	blob = append(blob, nonce...)
	blob = append(blob, tag...)
	blob = append(blob, ciphertext...)

	return hex.EncodeToString(blob), nil
}

// Decrypt descifra un blob producido por Encrypt. Vacío devuelve vacío.
// Cualquier blob corrupto o manipulado devuelve error; el caller decide
// si lo degrada a campo ausente (ver el codec de records).
func (c *Cipher) Decrypt(blob string) (string, error) {
	if blob == "" {
		return "", nil
	}

	raw, err := hex.DecodeString(blob)
	if err != nil {
		return "", ErrMalformedBlob
	}
	if len(raw) < saltLength+nonceLength+tagLength {
		return "", ErrMalformedBlob
	}

	// El salt se guarda por compatibilidad de formato; la clave sale del
	// secreto configurado, no del salt.
	nonce := raw[saltLength : saltLength+nonceLength]
	tag := raw[saltLength+nonceLength : saltLength+nonceLength+tagLength]
	ciphertext := raw[saltLength+nonceLength+tagLength:]

	gcm, err := c.gcm()
	if err != nil {
		return "", err
	}

	sealed := make([]byte, 0, len(ciphertext)+tagLength)
	sealed = append(sealed, ciphertext...)
	sealed = append(sealed, tag...)

	plaintext, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", ErrDecryptFailed
	}
	return string(plaintext), nil
}

func (c *Cipher) gcm() (cipher.AEAD, error) {
	block, err := aes.NewCipher(c.key)
	if err != nil {
		return nil, fmt.Errorf("fieldcrypto: failed to create cipher: %w", err)
	}
	// Nonce de 16 bytes para mantener el layout del blob persistido.
	gcm, err := cipher.NewGCMWithNonceSize(block, nonceLength)
	if err != nil {
		return nil, fmt.Errorf("fieldcrypto: failed to create GCM: %w", err)
	}
	return gcm, nil
}

// Hash calcula el hash SHA-256 en hex de un valor (one-way, para tokens).
func Hash(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}
