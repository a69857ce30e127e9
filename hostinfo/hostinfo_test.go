package hostinfo

import (
	"strings"
	"testing"
)

func TestParseOSRelease(t *testing.T) {
	input := `PRETTY_NAME="Debian GNU/Linux 9 (stretch)"
NAME="Debian GNU/Linux"
VERSION_ID="9"
VERSION="9 (stretch)"
ID=debian

# trailing comment
HOME_URL="https://www.debian.org/"`

	kv, err := ParseOSRelease(strings.NewReader(input))
	if err != nil {
		t.Fatalf("ParseOSRelease: %v", err)
	}
	if kv["ID"] != "debian" {
		t.Errorf("ID = %q, want debian", kv["ID"])
	}
	if kv["VERSION_ID"] != "9" {
		t.Errorf("VERSION_ID = %q, want 9", kv["VERSION_ID"])
	}
	if kv["PRETTY_NAME"] != "Debian GNU/Linux 9 (stretch)" {
		t.Errorf("quotes not stripped: %q", kv["PRETTY_NAME"])
	}
}

func TestMajorVersion(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"9.13", "9"},
		{"9", "9"},
		{"12.4", "12"},
		{"22.04", "22.04"},
		{"18.04.6", "18.04"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := MajorVersion(tt.in); got != tt.want {
			t.Errorf("MajorVersion(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFingerprintMatches(t *testing.T) {
	base := Fingerprint{Family: "debian", Version: "9.13", Arch: "amd64"}

	tests := []struct {
		name  string
		other Fingerprint
		want  bool
	}{
		{"same major version", Fingerprint{Family: "debian", Version: "9.2", Arch: "amd64"}, true},
		{"case-insensitive family", Fingerprint{Family: "Debian", Version: "9", Arch: "amd64"}, true},
		{"different family", Fingerprint{Family: "ubuntu", Version: "9.13", Arch: "amd64"}, false},
		{"different major", Fingerprint{Family: "debian", Version: "10.1", Arch: "amd64"}, false},
		{"different arch", Fingerprint{Family: "debian", Version: "9.13", Arch: "arm64"}, false},
		{"zero other", Fingerprint{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := base.Matches(tt.other); got != tt.want {
				t.Errorf("Matches(%v) = %v, want %v", tt.other, got, tt.want)
			}
		})
	}

	if (Fingerprint{}).Matches(Fingerprint{}) {
		t.Error("two zero fingerprints must never match")
	}
}

func TestFingerprintString(t *testing.T) {
	fp := Fingerprint{Family: "debian", Version: "9.13", Arch: "amd64"}
	if got := fp.String(); got != "debian:9:amd64" {
		t.Errorf("String() = %q, want debian:9:amd64", got)
	}
	if got := (Fingerprint{}).String(); got != "unknown" {
		t.Errorf("zero String() = %q, want unknown", got)
	}
}

func TestParseFingerprintRoundTrip(t *testing.T) {
	fp := Fingerprint{Family: "ubuntu", Version: "22.04", Arch: "arm64"}
	parsed, err := ParseFingerprint(fp.String())
	if err != nil {
		t.Fatalf("ParseFingerprint: %v", err)
	}
	if !parsed.Matches(fp) {
		t.Errorf("round-trip lost identity: %v vs %v", parsed, fp)
	}

	if _, err := ParseFingerprint("debian:9"); err == nil {
		t.Error("expected error for two-part fingerprint")
	}
}

func TestIsEOL(t *testing.T) {
	tests := []struct {
		family, version string
		want            bool
	}{
		{"debian", "9.13", true},
		{"debian", "12", false},
		{"Debian", "8", true},
		{"ubuntu", "18.04", true},
		{"ubuntu", "22.04", false},
		{"alpine", "3.12", false},
	}
	for _, tt := range tests {
		if got := IsEOL(tt.family, tt.version); got != tt.want {
			t.Errorf("IsEOL(%q, %q) = %v, want %v", tt.family, tt.version, got, tt.want)
		}
	}
}

func TestDebianCodename(t *testing.T) {
	if got := DebianCodename("9.13"); got != "stretch" {
		t.Errorf("DebianCodename(9.13) = %q, want stretch", got)
	}
	if got := DebianCodename("99"); got != "" {
		t.Errorf("DebianCodename(99) = %q, want empty", got)
	}
}
