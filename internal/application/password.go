package application

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

var (
	ErrInvalidPasswordHash         = errors.New("application: malformed credential")
	ErrIncompatiblePasswordVersion = errors.New("application: unsupported argon2 version")
)

// Argon2idParams tunes credential hashing. Memory is in KiB.
type Argon2idParams struct {
	Memory      uint32
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

var DefaultArgon2idParams = Argon2idParams{
	Memory:      64 * 1024,
	Iterations:  3,
	Parallelism: 2,
	SaltLength:  16,
	KeyLength:   32,
}

// storedCredential is a decoded PHC string:
// $argon2id$v=19$m=<memory>,t=<iterations>,p=<parallelism>$<salt>$<key>
type storedCredential struct {
	params Argon2idParams
	salt   []byte
	key    []byte
}

func (c storedCredential) encode() string {
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		c.params.Memory, c.params.Iterations, c.params.Parallelism,
		base64.RawStdEncoding.EncodeToString(c.salt),
		base64.RawStdEncoding.EncodeToString(c.key),
	)
}

func decodeCredential(encoded string) (storedCredential, error) {
	fields := strings.Split(encoded, "$")
	if len(fields) != 6 || fields[0] != "" || fields[1] != "argon2id" {
		return storedCredential{}, ErrInvalidPasswordHash
	}

	var version int
	if _, err := fmt.Sscanf(fields[2], "v=%d", &version); err != nil {
		return storedCredential{}, fmt.Errorf("%w: %v", ErrInvalidPasswordHash, err)
	}
	if version != argon2.Version {
		return storedCredential{}, ErrIncompatiblePasswordVersion
	}

	var c storedCredential
	if _, err := fmt.Sscanf(fields[3], "m=%d,t=%d,p=%d", &c.params.Memory, &c.params.Iterations, &c.params.Parallelism); err != nil {
		return storedCredential{}, fmt.Errorf("%w: %v", ErrInvalidPasswordHash, err)
	}

	var err error
	if c.salt, err = base64.RawStdEncoding.DecodeString(fields[4]); err != nil {
		return storedCredential{}, fmt.Errorf("%w: salt: %v", ErrInvalidPasswordHash, err)
	}
	if c.key, err = base64.RawStdEncoding.DecodeString(fields[5]); err != nil {
		return storedCredential{}, fmt.Errorf("%w: key: %v", ErrInvalidPasswordHash, err)
	}
	if len(c.salt) == 0 || len(c.key) == 0 {
		return storedCredential{}, ErrInvalidPasswordHash
	}
	c.params.SaltLength = uint32(len(c.salt))
	c.params.KeyLength = uint32(len(c.key))
	return c, nil
}

// CreatePasswordHash derives an argon2id credential for password.
func CreatePasswordHash(password string, params Argon2idParams) (string, error) {
	c := storedCredential{params: params, salt: make([]byte, params.SaltLength)}
	if _, err := rand.Read(c.salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}
	c.key = argon2.IDKey([]byte(password), c.salt, params.Iterations, params.Memory, params.Parallelism, params.KeyLength)
	return c.encode(), nil
}

// VerifyPassword checks password against a stored credential. A mismatch
// yields ErrInvalidCredentials; an unreadable credential yields
// ErrInvalidPasswordHash or ErrIncompatiblePasswordVersion.
func VerifyPassword(encoded, password string) error {
	c, err := decodeCredential(encoded)
	if err != nil {
		return err
	}
	candidate := argon2.IDKey([]byte(password), c.salt, c.params.Iterations, c.params.Memory, c.params.Parallelism, c.params.KeyLength)
	if subtle.ConstantTimeCompare(c.key, candidate) != 1 {
		return ErrInvalidCredentials
	}
	return nil
}

// NeedsRehash reports whether encoded was derived with weaker or different
// parameters than params.
func NeedsRehash(encoded string, params Argon2idParams) bool {
	c, err := decodeCredential(encoded)
	if err != nil {
		return true
	}
	return c.params != params
}
