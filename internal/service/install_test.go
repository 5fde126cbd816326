package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/usedatabrew/keg/internal/formula"
	"github.com/usedatabrew/keg/internal/install"
	"github.com/usedatabrew/keg/internal/platform"
	"github.com/usedatabrew/keg/internal/transaction"
)

var testClock = transaction.FixedClock{Time: time.Date(2025, 1, 16, 14, 30, 22, 0, time.UTC)}

func newInstallService(t *testing.T, f *blinkFixture, host *platform.Info) (*InstallService, string) {
	t.Helper()
	stateDir := filepath.Join(t.TempDir(), "state")
	svc := NewInstallService(
		f.installer(t),
		nil,
		nil,
		platform.Static{Info: host},
		testClock,
		stateDir,
		nil,
	)
	return svc, stateDir
}

func TestInstallService_Execute(t *testing.T) {
	f := newBlinkFixture(t)
	svc, stateDir := newInstallService(t, f, &platform.Info{OS: "linux", Arch: "amd64"})
	binDir := filepath.Join(t.TempDir(), "bin")

	result, err := svc.Execute(context.Background(), InstallRequest{Formula: f.formulaPath, BinDir: binDir})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	data, err := os.ReadFile(filepath.Join(binDir, "blink"))
	if err != nil {
		t.Fatalf("blink not installed: %v", err)
	}
	if string(data) != blinkBody {
		t.Errorf("installed content = %q", data)
	}
	if result.Resolution.IsFallback() {
		t.Error("linux/amd64 resolved through a fallback")
	}

	receipt, err := transaction.LoadReceipt(stateDir, "blink")
	if err != nil {
		t.Fatalf("LoadReceipt() error = %v", err)
	}
	if receipt.State != transaction.StateInstalled {
		t.Errorf("receipt state = %s", receipt.State)
	}
	if receipt.FormulaVersion != "1.14.0" || receipt.Platform != "linux/amd64" {
		t.Errorf("receipt = %+v", receipt)
	}
	if len(receipt.Files) != 1 || receipt.Files[0] != filepath.Join(binDir, "blink") {
		t.Errorf("receipt files = %v", receipt.Files)
	}
	if !receipt.StartedAt.Equal(testClock.Time) {
		t.Errorf("StartedAt = %s, want %s", receipt.StartedAt, testClock.Time)
	}

	journals, err := transaction.ListJournals(stateDir)
	if err != nil {
		t.Fatal(err)
	}
	if len(journals) != 0 {
		t.Errorf("journals left after success: %d", len(journals))
	}
}

func TestInstallService_Fallback(t *testing.T) {
	f := newBlinkFixture(t)
	svc, stateDir := newInstallService(t, f, &platform.Info{OS: "darwin", Arch: "arm64"})

	result, err := svc.Execute(context.Background(), InstallRequest{Formula: f.formulaPath, BinDir: filepath.Join(t.TempDir(), "bin")})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !result.Resolution.IsFallback() {
		t.Fatal("darwin/arm64 should resolve through the fallback")
	}
	if result.Resolution.Artifact.Caveat == "" {
		t.Error("fallback install must carry a caveat")
	}

	receipt, err := transaction.LoadReceipt(stateDir, "blink")
	if err != nil {
		t.Fatal(err)
	}
	if receipt.Platform != "darwin/arm64" || receipt.Selected != "darwin/amd64" {
		t.Errorf("receipt platform = %s, selected = %s", receipt.Platform, receipt.Selected)
	}
	if receipt.Caveat != result.Resolution.Artifact.Caveat {
		t.Errorf("receipt caveat = %q", receipt.Caveat)
	}
}

func TestInstallService_PlatformOverride(t *testing.T) {
	f := newBlinkFixture(t)
	svc, _ := newInstallService(t, f, &platform.Info{OS: "windows", Arch: "amd64"})

	result, err := svc.Execute(context.Background(), InstallRequest{
		Formula:  f.formulaPath,
		Platform: "linux/x86_64",
		BinDir:   filepath.Join(t.TempDir(), "bin"),
	})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if result.Resolution.Requested != (formula.Key{OS: "linux", Arch: "amd64"}) {
		t.Errorf("Requested = %s", result.Resolution.Requested)
	}

	if _, err := svc.Execute(context.Background(), InstallRequest{Formula: f.formulaPath, Platform: "linux", BinDir: t.TempDir()}); err == nil {
		t.Error("Execute() expected error for malformed platform")
	}
}

func TestInstallService_NotSupported(t *testing.T) {
	f := newBlinkFixture(t)
	svc, stateDir := newInstallService(t, f, &platform.Info{OS: "windows", Arch: "amd64"})
	binDir := filepath.Join(t.TempDir(), "bin")

	_, err := svc.Execute(context.Background(), InstallRequest{Formula: f.formulaPath, BinDir: binDir})
	var nse *formula.NotSupportedError
	if !errors.As(err, &nse) {
		t.Fatalf("Execute() error = %v, want *NotSupportedError", err)
	}
	if _, err := os.Stat(binDir); !os.IsNotExist(err) {
		t.Error("bin dir created for an unsupported platform")
	}
	if journals, _ := transaction.ListJournals(stateDir); len(journals) != 0 {
		t.Errorf("journals written before resolution: %d", len(journals))
	}
}

func TestInstallService_UnlistedPlatform(t *testing.T) {
	f := newBlinkFixture(t)
	svc, _ := newInstallService(t, f, &platform.Info{OS: "linux", Arch: "riscv64"})

	for _, override := range []string{"", "linux/ppc64le", "freebsd/amd64"} {
		_, err := svc.Execute(context.Background(), InstallRequest{
			Formula:  f.formulaPath,
			Platform: override,
			BinDir:   filepath.Join(t.TempDir(), "bin"),
		})
		var nse *formula.NotSupportedError
		if !errors.As(err, &nse) {
			t.Errorf("Execute(platform %q) error = %v, want *NotSupportedError", override, err)
		}
	}
}

func TestInstallService_IntegrityFailure(t *testing.T) {
	f := newBlinkFixture(t)
	linux := formula.Key{OS: "linux", Arch: "amd64"}
	a := f.release.Platforms[linux]
	a.SHA256 = "0000000000000000000000000000000000000000000000000000000000000000"
	f.release.Platforms[linux] = a
	f.write(t)

	svc, stateDir := newInstallService(t, f, &platform.Info{OS: "linux", Arch: "amd64"})
	binDir := filepath.Join(t.TempDir(), "bin")

	_, err := svc.Execute(context.Background(), InstallRequest{Formula: f.formulaPath, BinDir: binDir})
	var integrity *install.IntegrityError
	if !errors.As(err, &integrity) {
		t.Fatalf("Execute() error = %v, want *IntegrityError", err)
	}
	if _, err := os.Stat(binDir); !os.IsNotExist(err) {
		t.Error("bin dir touched by a failed install")
	}

	journals, err := transaction.ListJournals(stateDir)
	if err != nil {
		t.Fatal(err)
	}
	if len(journals) != 1 {
		t.Fatalf("journals = %d, want the failed one", len(journals))
	}
	if journals[0].State != transaction.StateFailed || journals[0].LastError == "" {
		t.Errorf("journal state = %s, last error = %q", journals[0].State, journals[0].LastError)
	}
	if _, err := transaction.LoadReceipt(stateDir, "blink"); !errors.Is(err, transaction.ErrNoReceipt) {
		t.Errorf("LoadReceipt() error = %v, want ErrNoReceipt", err)
	}
}

func TestInstallService_RetryClearsFailedJournal(t *testing.T) {
	f := newBlinkFixture(t)
	linux := formula.Key{OS: "linux", Arch: "amd64"}
	good := f.release.Platforms[linux]
	bad := good
	bad.SHA256 = "0000000000000000000000000000000000000000000000000000000000000000"
	f.release.Platforms[linux] = bad
	f.write(t)

	svc, stateDir := newInstallService(t, f, &platform.Info{OS: "linux", Arch: "amd64"})
	binDir := filepath.Join(t.TempDir(), "bin")
	if _, err := svc.Execute(context.Background(), InstallRequest{Formula: f.formulaPath, BinDir: binDir}); err == nil {
		t.Fatal("Execute() with a bad checksum succeeded")
	}

	f.release.Platforms[linux] = good
	f.write(t)
	if _, err := svc.Execute(context.Background(), InstallRequest{Formula: f.formulaPath, BinDir: binDir}); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	journals, err := transaction.ListJournals(stateDir)
	if err != nil {
		t.Fatal(err)
	}
	if len(journals) != 0 {
		t.Errorf("journals = %d, want the failed one cleared", len(journals))
	}
}

func TestInstallService_Locked(t *testing.T) {
	f := newBlinkFixture(t)
	svc, stateDir := newInstallService(t, f, &platform.Info{OS: "linux", Arch: "amd64"})

	lock, err := transaction.AcquireLock(context.Background(), stateDir)
	if err != nil {
		t.Fatal(err)
	}
	defer lock.Release()

	_, err = svc.Execute(context.Background(), InstallRequest{Formula: f.formulaPath, BinDir: t.TempDir()})
	if !errors.Is(err, transaction.ErrLockExists) {
		t.Errorf("Execute() error = %v, want ErrLockExists", err)
	}
}

func TestInstallService_UnknownFormula(t *testing.T) {
	f := newBlinkFixture(t)
	svc, _ := newInstallService(t, f, &platform.Info{OS: "linux", Arch: "amd64"})

	if _, err := svc.Execute(context.Background(), InstallRequest{Formula: "missing", BinDir: t.TempDir()}); err == nil {
		t.Error("Execute() expected error for an unknown formula")
	}
}

func TestUninstallService(t *testing.T) {
	f := newBlinkFixture(t)
	svc, stateDir := newInstallService(t, f, &platform.Info{OS: "linux", Arch: "amd64"})
	binDir := filepath.Join(t.TempDir(), "bin")
	ctx := context.Background()

	if _, err := svc.Execute(ctx, InstallRequest{Formula: f.formulaPath, BinDir: binDir}); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	uninstall := NewUninstallService(stateDir)
	installed, err := uninstall.Installed()
	if err != nil || len(installed) != 1 {
		t.Fatalf("Installed() = %v, %v", installed, err)
	}

	receipt, err := uninstall.Execute(ctx, "blink")
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if receipt.FormulaVersion != "1.14.0" {
		t.Errorf("receipt version = %s", receipt.FormulaVersion)
	}
	if _, err := os.Stat(filepath.Join(binDir, "blink")); !os.IsNotExist(err) {
		t.Error("blink still installed")
	}
	if _, err := uninstall.Execute(ctx, "blink"); !errors.Is(err, transaction.ErrNoReceipt) {
		t.Errorf("second Execute() error = %v, want ErrNoReceipt", err)
	}
}
