package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"
)

const (
	algorithmID = "argon2id"

	minMemoryKB    uint32 = 8 * 1024
	minTimeCost    uint32 = 1
	minParallelism uint8  = 1
	minSaltLength  uint32 = 16
	minKeyLength   uint32 = 16
	minPassBytes          = 8
)

// ErrUnsupportedHash is returned when a stored hash is not a well-formed
// argon2id PHC string this package can verify.
var ErrUnsupportedHash = errors.New("password: unsupported hash format")

// Params are the Argon2id cost parameters. Zero values are rejected by
// [NewHasher]; use [DefaultParams] as a starting point.
type Params struct {
	MemoryKB    uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// DefaultParams follows the RFC 9106 second recommended option: 64 MiB of
// memory, three passes, degree of parallelism four.
func DefaultParams() Params {
	return Params{
		MemoryKB:    64 * 1024,
		Time:        3,
		Parallelism: 4,
		SaltLength:  16,
		KeyLength:   32,
	}
}

// Hasher hashes and verifies passwords. Safe for concurrent use.
type Hasher struct {
	params Params
}

func NewHasher(p Params) (*Hasher, error) {
	switch {
	case p.MemoryKB < minMemoryKB:
		return nil, errors.New("password: memory must be >= 8192 KB")
	case p.Time < minTimeCost:
		return nil, errors.New("password: time cost must be >= 1")
	case p.Parallelism < minParallelism:
		return nil, errors.New("password: parallelism must be >= 1")
	case p.SaltLength < minSaltLength:
		return nil, errors.New("password: salt length must be >= 16")
	case p.KeyLength < minKeyLength:
		return nil, errors.New("password: key length must be >= 16")
	}
	return &Hasher{params: p}, nil
}

// Hash derives an Argon2id hash over the raw password bytes (no Unicode
// normalization) and returns it as a PHC string.
func (h *Hasher) Hash(plaintext string) (string, error) {
	if len(plaintext) < minPassBytes {
		return "", fmt.Errorf("password: must be at least %d bytes", minPassBytes)
	}

	salt := make([]byte, h.params.SaltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", err
	}

	key := argon2.IDKey([]byte(plaintext), salt,
		h.params.Time, h.params.MemoryKB, h.params.Parallelism, h.params.KeyLength)

	return fmt.Sprintf("$%s$v=%d$m=%d,t=%d,p=%d$%s$%s",
		algorithmID,
		argon2.Version,
		h.params.MemoryKB,
		h.params.Time,
		h.params.Parallelism,
		base64.StdEncoding.EncodeToString(salt),
		base64.StdEncoding.EncodeToString(key),
	), nil
}

// Verify recomputes the hash with the parameters embedded in encoded and
// compares in constant time. A malformed stored hash is an error, not a
// mismatch, so callers can distinguish corrupt data from a wrong password.
func (h *Hasher) Verify(plaintext, encoded string) (bool, error) {
	parsed, err := parsePHC(encoded)
	if err != nil {
		return false, err
	}

	computed := argon2.IDKey([]byte(plaintext), parsed.salt,
		parsed.time, parsed.memoryKB, parsed.parallelism, uint32(len(parsed.key)))

	return subtle.ConstantTimeCompare(computed, parsed.key) == 1, nil
}

// NeedsRehash reports whether encoded was produced with parameters weaker
// than the Hasher's current configuration.
func (h *Hasher) NeedsRehash(encoded string) (bool, error) {
	parsed, err := parsePHC(encoded)
	if err != nil {
		return false, err
	}
	weaker := h.params.MemoryKB > parsed.memoryKB ||
		h.params.Time > parsed.time ||
		h.params.Parallelism > parsed.parallelism ||
		h.params.KeyLength != uint32(len(parsed.key))
	return weaker, nil
}

type phcFields struct {
	memoryKB    uint32
	time        uint32
	parallelism uint8
	salt        []byte
	key         []byte
}

func parsePHC(encoded string) (*phcFields, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != algorithmID {
		return nil, ErrUnsupportedHash
	}

	version, err := strconv.Atoi(strings.TrimPrefix(parts[2], "v="))
	if err != nil || !strings.HasPrefix(parts[2], "v=") || version != argon2.Version {
		return nil, ErrUnsupportedHash
	}

	fields := &phcFields{}
	if err := parseCosts(parts[3], fields); err != nil {
		return nil, err
	}

	if fields.salt, err = base64.StdEncoding.DecodeString(parts[4]); err != nil {
		return nil, ErrUnsupportedHash
	}
	if len(fields.salt) < int(minSaltLength) {
		return nil, ErrUnsupportedHash
	}
	if fields.key, err = base64.StdEncoding.DecodeString(parts[5]); err != nil {
		return nil, ErrUnsupportedHash
	}
	if len(fields.key) == 0 {
		return nil, ErrUnsupportedHash
	}
	return fields, nil
}

func parseCosts(part string, out *phcFields) error {
	pairs := strings.Split(part, ",")
	if len(pairs) != 3 {
		return ErrUnsupportedHash
	}
	var haveM, haveT, haveP bool
	for _, pair := range pairs {
		k, v, ok := strings.Cut(pair, "=")
		if !ok {
			return ErrUnsupportedHash
		}
		switch k {
		case "m":
			n, err := strconv.ParseUint(v, 10, 32)
			if err != nil || n < uint64(minMemoryKB) {
				return ErrUnsupportedHash
			}
			out.memoryKB, haveM = uint32(n), true
		case "t":
			n, err := strconv.ParseUint(v, 10, 32)
			if err != nil || n < uint64(minTimeCost) {
				return ErrUnsupportedHash
			}
			out.time, haveT = uint32(n), true
		case "p":
			n, err := strconv.ParseUint(v, 10, 8)
			if err != nil || n < uint64(minParallelism) {
				return ErrUnsupportedHash
			}
			out.parallelism, haveP = uint8(n), true
		default:
			return ErrUnsupportedHash
		}
	}
	if !haveM || !haveT || !haveP {
		return ErrUnsupportedHash
	}
	return nil
}
