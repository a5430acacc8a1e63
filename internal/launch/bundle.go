package launch

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"text/template"
)

const (
	// AppName names the container and the binary inside it.
	AppName = "alerter"

	codesignPath = "/usr/bin/codesign"
)

var infoPlist = template.Must(template.New("Info.plist").Funcs(template.FuncMap{
	"xml": xmlEscape,
}).Parse(`<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<dict>
	<key>CFBundleIdentifier</key>
	<string>{{xml .Identity}}</string>
	<key>CFBundleName</key>
	<string>{{xml .Name}}</string>
	<key>CFBundleExecutable</key>
	<string>{{xml .Name}}</string>
	<key>CFBundlePackageType</key>
	<string>APPL</string>
	<key>LSUIElement</key>
	<true/>
</dict>
</plist>
`))

func xmlEscape(s string) (string, error) {
	var buf bytes.Buffer
	if err := xml.EscapeText(&buf, []byte(s)); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// AppBundleProvisioner materializes a macOS .app container under Dir.
type AppBundleProvisioner struct {
	// Dir is the user-writable directory holding the container. It must not
	// be a temporary directory: authorization prompts are refused there.
	Dir string
	// Required reports whether the platform needs the container at all.
	Required bool
	// Codesign is the signing tool; empty disables signing.
	Codesign string
}

// NewAppBundleProvisioner creates a provisioner rooted at dir. The container
// is only required on macOS.
func NewAppBundleProvisioner(dir string) *AppBundleProvisioner {
	return &AppBundleProvisioner{
		Dir:      dir,
		Required: runtime.GOOS == "darwin",
		Codesign: codesignPath,
	}
}

// DefaultAppDir returns the default container directory.
// Location: <user config dir>/alerter (~/Library/Application Support/alerter on macOS)
func DefaultAppDir() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("getting config directory: %w", err)
	}
	return filepath.Join(configDir, AppName), nil
}

// Satisfied reports whether executable already runs from inside an app container.
func (p *AppBundleProvisioner) Satisfied(executable string) bool {
	if !p.Required {
		return true
	}
	return strings.Contains(filepath.ToSlash(executable), ".app/Contents/MacOS/")
}

// Materialize rebuilds the container for identity. The Info.plist and the
// binary copy are rewritten on every call so the embedded identity follows
// the current sender.
func (p *AppBundleProvisioner) Materialize(identity, executable string) (Bundle, error) {
	root := filepath.Join(p.Dir, AppName+".app")
	contents := filepath.Join(root, "Contents")
	macos := filepath.Join(contents, "MacOS")
	b := Bundle{Root: root, Executable: filepath.Join(macos, AppName)}

	if err := os.MkdirAll(macos, 0o755); err != nil {
		return Bundle{}, fmt.Errorf("creating container directory: %w", err)
	}

	var plist bytes.Buffer
	data := struct{ Identity, Name string }{Identity: identity, Name: AppName}
	if err := infoPlist.Execute(&plist, data); err != nil {
		return Bundle{}, fmt.Errorf("rendering Info.plist: %w", err)
	}
	if err := writeFileAtomic(filepath.Join(contents, "Info.plist"), plist.Bytes(), 0o644); err != nil {
		return Bundle{}, err
	}

	if err := copyExecutable(executable, b.Executable); err != nil {
		return Bundle{}, err
	}
	return b, nil
}

// Sign ad-hoc signs the container. Callers treat failure as non-fatal.
func (p *AppBundleProvisioner) Sign(ctx context.Context, b Bundle) error {
	if p.Codesign == "" {
		return nil
	}
	if _, err := exec.LookPath(p.Codesign); err != nil {
		return fmt.Errorf("codesign not available: %w", err)
	}
	cmd := exec.CommandContext(ctx, p.Codesign, "--force", "--sign", "-", b.Root)
	cmd.Stdout = io.Discard
	cmd.Stderr = io.Discard
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("codesign: %w", err)
	}
	return nil
}

// copyExecutable copies src over dst. A symlink is not enough: signing and
// authorization look at the real file.
func copyExecutable(src, dst string) error {
	realSrc, err := filepath.EvalSymlinks(src)
	if err != nil {
		realSrc = src
	}

	in, err := os.Open(realSrc)
	if err != nil {
		return fmt.Errorf("opening executable: %w", err)
	}
	defer in.Close()

	tmp := dst + ".new"
	out, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o755)
	if err != nil {
		return fmt.Errorf("creating executable copy: %w", err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(tmp)
		return fmt.Errorf("copying executable: %w", err)
	}
	if err := out.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("closing executable copy: %w", err)
	}
	if err := os.Chmod(tmp, 0o755); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("setting permissions: %w", err)
	}
	if err := os.Rename(tmp, dst); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("installing executable copy: %w", err)
	}
	return nil
}

func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, perm); err != nil {
		return fmt.Errorf("writing %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("renaming %s: %w", filepath.Base(path), err)
	}
	return nil
}
