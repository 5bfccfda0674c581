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
	minMemoryKB    uint32 = 8 * 1024
	minTimeCost    uint32 = 1
	minParallelism uint8  = 1
	minSaltLength  uint32 = 16
	argon2Prefix          = "$argon2id$"
	algorithmID           = "argon2id"
)

// Argon2Params are the cost parameters of an argon2id hash.
type Argon2Params struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// Argon2 verifies hashes written by earlier deployments. It can still produce
// hashes so that imports and tests can seed legacy records.
type Argon2 struct {
	params Argon2Params
}

type parsedPHC struct {
	memory      uint32
	time        uint32
	parallelism uint8
	salt        []byte
	hash        []byte
}

// NewArgon2 validates params and returns a legacy codec.
func NewArgon2(params Argon2Params) (*Argon2, error) {
	if params.Memory < minMemoryKB {
		return nil, errors.New("argon2 memory must be >= 8192 KB")
	}
	if params.Time < minTimeCost {
		return nil, errors.New("argon2 time must be >= 1")
	}
	if params.Parallelism < minParallelism {
		return nil, errors.New("argon2 parallelism must be >= 1")
	}
	if params.SaltLength < minSaltLength {
		return nil, errors.New("argon2 salt length must be >= 16")
	}
	if params.KeyLength < 16 {
		return nil, errors.New("argon2 key length must be >= 16")
	}
	return &Argon2{params: params}, nil
}

// IsArgon2Hash reports whether encoded looks like a PHC argon2id string.
func IsArgon2Hash(encoded string) bool {
	return strings.HasPrefix(encoded, argon2Prefix)
}

// Hash encodes password in PHC format.
func (a *Argon2) Hash(password string) (string, error) {
	salt := make([]byte, a.params.SaltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", err
	}

	key := argon2.IDKey([]byte(password), salt, a.params.Time, a.params.Memory, a.params.Parallelism, a.params.KeyLength)

	return fmt.Sprintf(
		"$%s$v=%d$m=%d,t=%d,p=%d$%s$%s",
		algorithmID,
		argon2.Version,
		a.params.Memory,
		a.params.Time,
		a.params.Parallelism,
		base64.StdEncoding.EncodeToString(salt),
		base64.StdEncoding.EncodeToString(key),
	), nil
}

// verifyArgon2 recomputes the key with the parameters embedded in encoded and
// compares in constant time.
func verifyArgon2(password, encoded string) (bool, error) {
	parsed, err := parsePHC(encoded)
	if err != nil {
		return false, err
	}

	computed := argon2.IDKey(
		[]byte(password),
		parsed.salt,
		parsed.time,
		parsed.memory,
		parsed.parallelism,
		uint32(len(parsed.hash)),
	)

	return subtle.ConstantTimeCompare(computed, parsed.hash) == 1, nil
}

// Verify checks password against a PHC argon2id hash.
func (a *Argon2) Verify(password, encoded string) (bool, error) {
	return verifyArgon2(password, encoded)
}

func parsePHC(encoded string) (*parsedPHC, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" {
		return nil, ErrMalformedHash
	}
	if parts[1] != algorithmID {
		return nil, ErrUnsupportedHash
	}

	version, err := strconv.Atoi(strings.TrimPrefix(parts[2], "v="))
	if err != nil || !strings.HasPrefix(parts[2], "v=") {
		return nil, ErrMalformedHash
	}
	if version != argon2.Version {
		return nil, ErrUnsupportedHash
	}

	out := &parsedPHC{}
	var seen int
	for _, pair := range strings.Split(parts[3], ",") {
		k, v, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, ErrMalformedHash
		}
		n, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			return nil, ErrMalformedHash
		}
		switch k {
		case "m":
			if uint32(n) < minMemoryKB {
				return nil, ErrMalformedHash
			}
			out.memory = uint32(n)
		case "t":
			if uint32(n) < minTimeCost {
				return nil, ErrMalformedHash
			}
			out.time = uint32(n)
		case "p":
			if n < uint64(minParallelism) || n > 255 {
				return nil, ErrMalformedHash
			}
			out.parallelism = uint8(n)
		default:
			return nil, ErrMalformedHash
		}
		seen++
	}
	if seen != 3 {
		return nil, ErrMalformedHash
	}

	if out.salt, err = base64.StdEncoding.DecodeString(parts[4]); err != nil || len(out.salt) < int(minSaltLength) {
		return nil, ErrMalformedHash
	}
	if out.hash, err = base64.StdEncoding.DecodeString(parts[5]); err != nil || len(out.hash) == 0 {
		return nil, ErrMalformedHash
	}

	return out, nil
}
