// Package install downloads, verifies and installs the artifact a formula
// resolved to.
//
// # Security Model
//
// Nothing reaches the bin directory before it has been verified:
//   - the tarball's SHA-256 must equal the checksum recorded in the formula
//   - when the artifact lists a detached OpenPGP signature and a keyring is
//     configured, the signature must verify against that keyring
//   - archive members are extracted only by their exact path, and are written
//     under their bare install target name
//
// A checksum or signature mismatch is reported as *IntegrityError and the
// cached download is deleted so the next attempt fetches it again.
//
// # Install States
//
//	Pending -> Downloaded -> Verified -> Installed
//	Downloaded -> Failed (IntegrityError)
//	any -> Failed (IOError)
//
// Steps run strictly in order; an Observer sees every transition.
//
// # Atomicity
//
// All install targets are first extracted into a hidden staging directory
// inside the bin directory, so nothing is written outside it. Only then are they moved into the bin directory, backing up any file they
// replace. If a move fails, the moved files are removed and the backups
// restored, so the bin directory ends up either fully updated or unchanged.
//
// # Usage
//
//	inst := install.New(install.Options{CacheDir: cacheDir})
//	res, err := formula.Resolve(release, runtime.GOOS, runtime.GOARCH)
//	if err != nil {
//	    return err
//	}
//	result, err := inst.Install(ctx, res.Artifact, binDir)
package install
