package install

import "fmt"

// Stage names the install step an IOError happened in.
type Stage string

const (
	StageDownload Stage = "download"
	StageVerify   Stage = "verify"
	StageExtract  Stage = "extract"
	StageCommit   Stage = "commit"
)

// IntegrityError reports a downloaded artifact that does not match its
// formula: wrong SHA-256, or a signature that does not verify.
type IntegrityError struct {
	URL      string
	Expected string
	Actual   string
	// Err is the signature failure, nil for a checksum mismatch.
	Err error
}

func (e *IntegrityError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("integrity check failed for %s: signature: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("integrity check failed for %s: checksum mismatch\nactual:   %s\nexpected: %s",
		e.URL, e.Actual, e.Expected)
}

func (e *IntegrityError) Unwrap() error {
	return e.Err
}

// IOError reports a download, filesystem or archive failure.
type IOError struct {
	Stage Stage
	Path  string
	Err   error
}

func (e *IOError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s %s: %v", e.Stage, e.Path, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}
