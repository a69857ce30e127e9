// Package hostinfo identifies the OS a remediation script targets and the OS
// of the host about to run it.
package hostinfo

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"
)

const osReleasePath = "/etc/os-release"

// Fingerprint identifies an OS target: distribution family, major version
// and architecture. A script generated for one fingerprint must never run on
// a host with a different one.
type Fingerprint struct {
	Family  string `json:"family,omitempty"`
	Version string `json:"version,omitempty"`
	Arch    string `json:"arch,omitempty"`
}

func (f Fingerprint) String() string {
	if f.IsZero() {
		return "unknown"
	}
	return fmt.Sprintf("%s:%s:%s", f.Family, MajorVersion(f.Version), f.Arch)
}

func (f Fingerprint) IsZero() bool {
	return f.Family == "" && f.Version == ""
}

// Matches reports whether family, major version and architecture all agree.
func (f Fingerprint) Matches(other Fingerprint) bool {
	if f.IsZero() || other.IsZero() {
		return false
	}
	return strings.EqualFold(f.Family, other.Family) &&
		MajorVersion(f.Version) == MajorVersion(other.Version) &&
		f.Arch == other.Arch
}

// MajorVersion trims a version string down to its major component
// ("9.13" -> "9"). Ubuntu-style YY.MM versions keep both components.
func MajorVersion(v string) string {
	parts := strings.SplitN(v, ".", 3)
	if len(parts) >= 2 && len(parts[0]) == 2 && len(parts[1]) == 2 {
		return parts[0] + "." + parts[1]
	}
	return parts[0]
}

// ParseFingerprint parses the family:version:arch form produced by String.
func ParseFingerprint(s string) (Fingerprint, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return Fingerprint{}, fmt.Errorf("invalid fingerprint %q", s)
	}
	return Fingerprint{Family: parts[0], Version: parts[1], Arch: parts[2]}, nil
}

// Current fingerprints the running host from /etc/os-release.
func Current() (Fingerprint, error) {
	f, err := os.Open(osReleasePath)
	if err != nil {
		return Fingerprint{}, err
	}
	defer f.Close()
	return fromOSRelease(f)
}

func fromOSRelease(r io.Reader) (Fingerprint, error) {
	kv, err := ParseOSRelease(r)
	if err != nil {
		return Fingerprint{}, err
	}
	fp := Fingerprint{
		Family:  kv["ID"],
		Version: kv["VERSION_ID"],
		Arch:    runtime.GOARCH,
	}
	if fp.Family == "" {
		return Fingerprint{}, fmt.Errorf("os-release has no ID field")
	}
	return fp, nil
}

// ParseOSRelease parses the key=value format of /etc/os-release.
func ParseOSRelease(r io.Reader) (map[string]string, error) {
	kv := make(map[string]string)
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		kv[key] = strings.Trim(value, `"'`)
	}
	return kv, scanner.Err()
}

// Releases that no longer receive updates from the standard mirrors. Scripts
// targeting these must point apt at the archive mirror set first.
var eolReleases = map[string][]string{
	"debian": {"6", "7", "8", "9", "10"},
	"ubuntu": {"14.04", "16.04", "17.10", "18.04", "19.10", "21.10"},
}

var debianCodenames = map[string]string{
	"6":  "squeeze",
	"7":  "wheezy",
	"8":  "jessie",
	"9":  "stretch",
	"10": "buster",
	"11": "bullseye",
	"12": "bookworm",
}

// IsEOL reports whether a family/version pair is past end of life for its
// standard package repositories.
func IsEOL(family, version string) bool {
	versions, ok := eolReleases[strings.ToLower(family)]
	if !ok {
		return false
	}
	major := MajorVersion(version)
	for _, v := range versions {
		if v == major {
			return true
		}
	}
	return false
}

// DebianCodename maps a Debian major version to its release codename, used
// when rewriting apt sources to archive.debian.org.
func DebianCodename(version string) string {
	return debianCodenames[MajorVersion(version)]
}
