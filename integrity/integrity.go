// Package integrity converts between hex SHA-256 digests and Subresource
// Integrity (SRI) strings of the form "sha256-<base64>", the format Bazel
// uses for the integrity attribute of http_archive and source.json.
package integrity

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
)

// Algorithm is the only hash algorithm produced by this package.
const Algorithm = "sha256"

const prefix = Algorithm + "-"

// sriPattern matches a sha256 SRI string: algorithm-base64hash.
var sriPattern = regexp.MustCompile(`^sha256-[A-Za-z0-9+/]+=*$`)

// MalformedDigestError reports a digest that is not a valid SHA-256 value.
type MalformedDigestError struct {
	Digest string
	Reason string
}

func (e *MalformedDigestError) Error() string {
	return fmt.Sprintf("malformed digest %q: %s", e.Digest, e.Reason)
}

// FromHex converts a hex-encoded SHA-256 digest into an SRI string.
// Upper and lower case hex are both accepted.
func FromHex(hexDigest string) (string, error) {
	if len(hexDigest) != hex.EncodedLen(sha256.Size) {
		return "", &MalformedDigestError{
			Digest: hexDigest,
			Reason: fmt.Sprintf("want %d hex characters, got %d", hex.EncodedLen(sha256.Size), len(hexDigest)),
		}
	}
	sum, err := hex.DecodeString(hexDigest)
	if err != nil {
		return "", &MalformedDigestError{Digest: hexDigest, Reason: err.Error()}
	}
	return FromBytes(sum), nil
}

// ToHex converts an SRI string back into a lowercase hex digest.
func ToHex(sri string) (string, error) {
	sum, err := decode(sri)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(sum), nil
}

// FromBytes returns the SRI string for a raw SHA-256 sum.
func FromBytes(sum []byte) string {
	return prefix + base64.StdEncoding.EncodeToString(sum)
}

// Reader hashes everything read from r and returns its SRI string.
func Reader(r io.Reader) (string, error) {
	h := sha256.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", err
	}
	return FromBytes(h.Sum(nil)), nil
}

// File returns the SRI string for the contents of the file at path.
func File(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	sri, err := Reader(f)
	if err != nil {
		return "", fmt.Errorf("failed to hash %s: %w", path, err)
	}
	return sri, nil
}

// Validate checks that s is a well-formed sha256 SRI string.
func Validate(s string) error {
	_, err := decode(s)
	return err
}

func decode(sri string) ([]byte, error) {
	if !sriPattern.MatchString(sri) {
		return nil, &MalformedDigestError{Digest: sri, Reason: "not a sha256 SRI string"}
	}
	sum, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(sri, prefix))
	if err != nil {
		return nil, &MalformedDigestError{Digest: sri, Reason: err.Error()}
	}
	if len(sum) != sha256.Size {
		return nil, &MalformedDigestError{
			Digest: sri,
			Reason: fmt.Sprintf("want %d digest bytes, got %d", sha256.Size, len(sum)),
		}
	}
	return sum, nil
}
