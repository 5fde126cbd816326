package install

import (
	"log/slog"
	"net/http"
	"time"
)

// State is a step of the install state machine.
type State string

const (
	StatePending    State = "pending"
	StateDownloaded State = "downloaded"
	StateVerified   State = "verified"
	StateInstalled  State = "installed"
	StateFailed     State = "failed"
)

// Terminal reports whether no further transition can follow s.
func (s State) Terminal() bool {
	return s == StateInstalled || s == StateFailed
}

// Transition is one state change of an install. Err is set when To is
// StateFailed.
type Transition struct {
	From State
	To   State
	Err  error
}

// Observer receives every state transition of an install, in order.
type Observer func(Transition)

// VerificationMethod indicates how an artifact was verified
type VerificationMethod int

const (
	// VerificationSHA256 indicates the checksum alone was checked
	VerificationSHA256 VerificationMethod = iota + 1
	// VerificationSignature indicates the checksum and an OpenPGP signature were checked
	VerificationSignature
)

// String returns the string representation of the verification method
func (v VerificationMethod) String() string {
	switch v {
	case VerificationSHA256:
		return "SHA256"
	case VerificationSignature:
		return "SHA256+OpenPGP"
	default:
		return "None"
	}
}

// Result describes a completed install.
type Result struct {
	// Files are the installed paths, in install step order.
	Files []string
	// Archive is the cached tarball the files came from.
	Archive string
	// Cached is true when the tarball was already in the cache.
	Cached   bool
	Verified VerificationMethod
	// Replaced lists targets that existed before and were overwritten.
	Replaced []string
	Duration time.Duration
}

// Options configures an Installer. Zero values select the defaults.
type Options struct {
	// CacheDir holds downloaded tarballs, keyed by checksum.
	CacheDir string
	// Keyring is an OpenPGP public keyring (armored or binary) used for
	// artifacts that carry a signature URL. Empty disables signature checks.
	Keyring string

	Timeout   time.Duration
	Retries   int
	UserAgent string

	// HTTPClient overrides the client built from Timeout.
	HTTPClient *http.Client
	Logger     *slog.Logger
	Observer   Observer
}
