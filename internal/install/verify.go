package install

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ProtonMail/go-crypto/openpgp" //nolint:staticcheck // Using ProtonMail's maintained fork
)

// Verifier checks downloaded artifacts against their formula.
type Verifier struct {
	keyringPath string
}

// NewVerifier creates a verifier. keyringPath may be empty, in which case
// signatures cannot be checked.
func NewVerifier(keyringPath string) *Verifier {
	return &Verifier{keyringPath: keyringPath}
}

// CanVerifySignatures reports whether a keyring is configured.
func (v *Verifier) CanVerifySignatures() bool {
	return v.keyringPath != ""
}

// VerifySHA256 compares the file's digest with the expected hex digest,
// ignoring case. A mismatch is an *IntegrityError.
func (v *Verifier) VerifySHA256(path, url, expected string) error {
	actual, err := calculateSHA256(path)
	if err != nil {
		return &IOError{Stage: StageVerify, Path: path, Err: err}
	}

	if !strings.EqualFold(actual, expected) {
		return &IntegrityError{URL: url, Expected: strings.ToLower(expected), Actual: actual}
	}
	return nil
}

// VerifySignature checks a detached OpenPGP signature (armored or binary)
// over the file at path.
func (v *Verifier) VerifySignature(path, signaturePath, url string) error {
	keyring, err := v.loadKeyring()
	if err != nil {
		return &IOError{Stage: StageVerify, Path: v.keyringPath, Err: err}
	}

	file, err := os.Open(path)
	if err != nil {
		return &IOError{Stage: StageVerify, Path: path, Err: err}
	}
	defer file.Close()

	sigFile, err := os.Open(signaturePath)
	if err != nil {
		return &IOError{Stage: StageVerify, Path: signaturePath, Err: err}
	}
	defer sigFile.Close()

	// Verify signature (try armored first)
	_, err = openpgp.CheckArmoredDetachedSignature(keyring, file, sigFile, nil)
	if err != nil {
		// Try non-armored signature
		if _, serr := file.Seek(0, io.SeekStart); serr != nil {
			return &IOError{Stage: StageVerify, Path: path, Err: serr}
		}
		if _, serr := sigFile.Seek(0, io.SeekStart); serr != nil {
			return &IOError{Stage: StageVerify, Path: signaturePath, Err: serr}
		}
		_, err = openpgp.CheckDetachedSignature(keyring, file, sigFile, nil)
	}
	if err != nil {
		return &IntegrityError{URL: url, Err: err}
	}
	return nil
}

// loadKeyring loads the configured OpenPGP keyring
func (v *Verifier) loadKeyring() (openpgp.EntityList, error) {
	if v.keyringPath == "" {
		return nil, fmt.Errorf("no keyring configured")
	}

	keyringFile, err := os.Open(v.keyringPath)
	if err != nil {
		return nil, fmt.Errorf("open keyring: %w", err)
	}
	defer keyringFile.Close()

	keyring, err := openpgp.ReadArmoredKeyRing(keyringFile)
	if err != nil {
		// Try reading as non-armored keyring
		if _, err := keyringFile.Seek(0, io.SeekStart); err != nil {
			return nil, fmt.Errorf("rewind keyring: %w", err)
		}
		keyring, err = openpgp.ReadKeyRing(keyringFile)
		if err != nil {
			return nil, fmt.Errorf("read keyring: %w", err)
		}
	}

	if len(keyring) == 0 {
		return nil, fmt.Errorf("keyring is empty")
	}

	return keyring, nil
}

// calculateSHA256 calculates the SHA256 checksum of a file
func calculateSHA256(filePath string) (string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return "", err
	}
	defer file.Close()

	hasher := sha256.New()
	if _, err := io.Copy(hasher, file); err != nil {
		return "", err
	}

	return hex.EncodeToString(hasher.Sum(nil)), nil
}
