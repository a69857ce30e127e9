// Package safety is the static policy every generated script must pass
// before execution. The oracle's output is untrusted input; this gate is the
// deterministic, testable check between generation and the host.
package safety

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/vulnix/vulnix/hostinfo"
	"github.com/vulnix/vulnix/remediation"
)

// Verdict is computed fresh immediately before every execution and never
// cached across sessions; the host may have changed since generation.
type Verdict struct {
	Approved         bool     `json:"approved"`
	FingerprintMatch bool     `json:"fingerprint_match"`
	BlockingReasons  []string `json:"blocking_reasons,omitempty"`
}

// Privileged verbs a remediation script may run: package management and
// signing-key management. Everything else blocks.
var allowedVerbs = map[string]bool{
	"apt":                    true,
	"apt-get":                true,
	"apt-cache":              true,
	"apt-key":                true,
	"apt-mark":               true,
	"dpkg":                   true,
	"dpkg-reconfigure":       true,
	"gpg":                    true,
	"update-ca-certificates": true,
}

// File-manipulation verbs allowed only while every path argument stays under
// /etc/apt/ (repository reconfiguration on EOL targets).
var aptConfinedVerbs = map[string]bool{
	"sed":   true,
	"tee":   true,
	"cp":    true,
	"mv":    true,
	"mkdir": true,
	"rm":    true,
	"ln":    true,
	"chmod": true,
	"touch": true,
	"echo":  true,
}

// root-level paths whose recursive removal is always destructive
var rootPaths = map[string]bool{
	"/": true, "/*": true, "/bin": true, "/boot": true, "/dev": true,
	"/etc": true, "/home": true, "/lib": true, "/lib64": true, "/opt": true,
	"/root": true, "/sbin": true, "/srv": true, "/sys": true, "/usr": true,
	"/var": true,
}

var (
	recursiveRmRe = regexp.MustCompile(`\brm\s+(-\w*r\w*\s+)+`)
	pipeToShellRe = regexp.MustCompile(`\|\s*(sudo\s+)?(ba)?sh\b`)
	writeOpRe     = regexp.MustCompile(`(\bsed\s+-\w*i|\btee\b|>>?|\btruncate\b|\bmv\b|\bcp\b|\brm\b)`)
)

// integrity knobs that are blocking on any target
var integrityKnobs = []string{
	"--allow-unauthenticated",
	"--force-yes",
	"--no-check-certificate",
	"allowunauthenticated",
	"allow-insecure-repositories",
	"allow-downgrades",
	"trusted=yes",
	"--force-all",
	"--nosignature",
}

// Validate checks a script against the current host. All checks run; the
// verdict collects every failure so the operator sees the complete picture
// instead of the first problem only. Approved is true iff nothing blocked.
func Validate(script *remediation.Script, host hostinfo.Fingerprint) Verdict {
	verdict := Verdict{FingerprintMatch: script.TargetFingerprint.Matches(host)}

	// 1. OS fingerprint: family, major version and architecture must all
	// match. Never overridable.
	if !verdict.FingerprintMatch {
		verdict.BlockingReasons = append(verdict.BlockingReasons, fmt.Sprintf(
			"target OS mismatch: script generated for %s, host is %s",
			script.TargetFingerprint.String(), host.String()))
	}

	// 2. forbidden operations, scanned across the full body
	for _, line := range scriptLines(script) {
		verdict.BlockingReasons = append(verdict.BlockingReasons, forbiddenOps(line, script)...)
	}

	// 3. privilege sanity: every command verb must be allow-listed
	for _, cmd := range script.Commands {
		if reason := checkVerb(cmd.Text); reason != "" {
			verdict.BlockingReasons = append(verdict.BlockingReasons, reason)
		}
	}

	// 4. an EOL-targeted script that never repoints apt at the archive
	// mirrors would upgrade against dead repositories
	if script.TargetEOL && !hasEOLReconfiguration(script.Commands) {
		verdict.BlockingReasons = append(verdict.BlockingReasons,
			"script targets an end-of-life release but contains no apt source or archive-keyring reconfiguration step")
	}

	verdict.Approved = len(verdict.BlockingReasons) == 0
	return verdict
}

// hasEOLReconfiguration reports whether any command rewrites the apt sources
// or installs the archive signing keys.
func hasEOLReconfiguration(commands []remediation.Command) bool {
	for _, cmd := range commands {
		lower := strings.ToLower(cmd.Text)
		for _, marker := range []string{"sources.list", "/etc/apt/", "archive-keyring", "apt-key"} {
			if strings.Contains(lower, marker) {
				return true
			}
		}
	}
	return false
}

func scriptLines(script *remediation.Script) []string {
	var lines []string
	for _, raw := range strings.Split(script.Body, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		lines = append(lines, line)
	}
	return lines
}

func forbiddenOps(line string, script *remediation.Script) []string {
	var reasons []string
	lower := strings.ToLower(line)

	if recursiveRmRe.MatchString(line) {
		for _, field := range strings.Fields(line) {
			clean := strings.TrimSuffix(field, "/")
			if rootPaths[clean] || clean == "/*" {
				reasons = append(reasons, fmt.Sprintf("recursive deletion of root-level path in %q", line))
				break
			}
		}
	}
	if pipeToShellRe.MatchString(line) {
		reasons = append(reasons, fmt.Sprintf("download piped into a shell in %q", line))
	}
	for _, knob := range integrityKnobs {
		if strings.Contains(lower, knob) {
			reasons = append(reasons, fmt.Sprintf("package manager integrity check disabled by %q in %q", knob, line))
		}
	}
	// Check-Valid-Until relaxation is only legitimate against archived EOL
	// repositories, whose release files carry expired dates.
	if strings.Contains(lower, "check-valid-until") && !script.TargetEOL {
		reasons = append(reasons, fmt.Sprintf("release-file validity check disabled on a supported target in %q", line))
	}
	for _, protected := range script.ProtectedPaths {
		if protected == "" {
			continue
		}
		if strings.Contains(line, protected) && writeOpRe.MatchString(line) {
			reasons = append(reasons, fmt.Sprintf("write to protected dependency manifest %s in %q", protected, line))
		}
	}
	return reasons
}

// checkVerb validates the leading verb of one command. The script runs
// privileged, so an unknown binary is arbitrary privileged execution.
func checkVerb(text string) string {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return ""
	}
	verb := fields[0]
	// env assignments and an explicit sudo prefix before the real verb
	for len(fields) > 1 && (strings.Contains(verb, "=") || verb == "sudo" || verb == "env") {
		fields = fields[1:]
		verb = fields[0]
	}
	verb = strings.TrimPrefix(verb, "/usr/bin/")
	verb = strings.TrimPrefix(verb, "/usr/sbin/")
	verb = strings.TrimPrefix(verb, "/bin/")
	verb = strings.TrimPrefix(verb, "/sbin/")

	if allowedVerbs[verb] {
		return ""
	}
	if aptConfinedVerbs[verb] {
		if pathsConfinedToApt(fields[1:]) {
			return ""
		}
		return fmt.Sprintf("%s outside /etc/apt in privileged command %q", verb, text)
	}
	return fmt.Sprintf("privileged execution of non-allow-listed binary %q in %q", verb, text)
}

// pathsConfinedToApt reports whether every path-looking argument stays under
// /etc/apt/.
func pathsConfinedToApt(args []string) bool {
	sawPath := false
	for _, arg := range args {
		if !strings.HasPrefix(arg, "/") {
			continue
		}
		sawPath = true
		if !strings.HasPrefix(arg, "/etc/apt/") && arg != "/etc/apt" {
			return false
		}
	}
	return sawPath
}
