package remediation

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/vulnix/vulnix/hostinfo"
)

// Command is one executable line of a remediation script. Critical commands
// are preconditions for everything after them; their failure aborts the run.
type Command struct {
	Text     string `json:"text"`
	Critical bool   `json:"critical,omitempty"`
}

// Script is a generated remediation script plus the metadata needed to gate
// and execute it later, possibly on a different day or host. Immutable;
// persisted to disk before execution.
type Script struct {
	Body              string               `json:"body"`
	TargetFingerprint hostinfo.Fingerprint `json:"target_fingerprint"`
	TargetEOL         bool                 `json:"target_eol,omitempty"`
	GeneratedAt       time.Time            `json:"generated_at"`
	PlanRef           string               `json:"plan_ref"`
	ProtectedPaths    []string             `json:"protected_paths,omitempty"`
	Commands          []Command            `json:"commands"`
}

// Metadata is embedded in the artifact as comment lines so a script file is
// self-describing at apply time.
const (
	headerTarget    = "# vulnix:target="
	headerGenerated = "# vulnix:generated="
	headerPlan      = "# vulnix:plan="
	headerEOL       = "# vulnix:eol="
	headerProtected = "# vulnix:protected="
)

// Render produces the artifact content: shebang, metadata header, body.
func (s *Script) Render() string {
	var b strings.Builder
	b.WriteString("#!/bin/bash\n")
	b.WriteString(headerTarget + s.TargetFingerprint.String() + "\n")
	b.WriteString(headerGenerated + s.GeneratedAt.UTC().Format(time.RFC3339) + "\n")
	b.WriteString(headerPlan + s.PlanRef + "\n")
	if s.TargetEOL {
		b.WriteString(headerEOL + "true\n")
	}
	if len(s.ProtectedPaths) > 0 {
		b.WriteString(headerProtected + strings.Join(s.ProtectedPaths, ",") + "\n")
	}
	b.WriteString("\n")
	b.WriteString(strings.TrimLeft(s.Body, "\n"))
	if !strings.HasSuffix(s.Body, "\n") {
		b.WriteString("\n")
	}
	return b.String()
}

// Save persists the script artifact, executable, before anything runs.
func (s *Script) Save(path string) error {
	if err := os.WriteFile(path, []byte(s.Render()), 0o755); err != nil {
		return errors.Wrap(err, "failed to persist remediation script")
	}
	return nil
}

// Load reads a persisted script artifact back, metadata included.
func Load(path string) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read script artifact")
	}
	script := &Script{}
	var body []string
	for _, line := range strings.Split(string(data), "\n") {
		switch {
		case strings.HasPrefix(line, "#!"):
			continue
		case strings.HasPrefix(line, headerTarget):
			fp, err := hostinfo.ParseFingerprint(strings.TrimPrefix(line, headerTarget))
			if err == nil {
				script.TargetFingerprint = fp
			}
		case strings.HasPrefix(line, headerGenerated):
			ts, err := time.Parse(time.RFC3339, strings.TrimPrefix(line, headerGenerated))
			if err == nil {
				script.GeneratedAt = ts
			}
		case strings.HasPrefix(line, headerPlan):
			script.PlanRef = strings.TrimPrefix(line, headerPlan)
		case strings.HasPrefix(line, headerEOL):
			script.TargetEOL, _ = strconv.ParseBool(strings.TrimPrefix(line, headerEOL))
		case strings.HasPrefix(line, headerProtected):
			script.ProtectedPaths = strings.Split(strings.TrimPrefix(line, headerProtected), ",")
		default:
			body = append(body, line)
		}
	}
	script.Body = strings.TrimLeft(strings.Join(body, "\n"), "\n")
	if script.PlanRef == "" {
		return nil, fmt.Errorf("script artifact %s carries no plan reference", path)
	}
	script.Commands = ExtractCommands(script.Body)
	return script, nil
}

// shell words that are not actionable commands on their own
var controlWords = map[string]bool{
	"if": true, "then": true, "else": true, "elif": true, "fi": true,
	"for": true, "while": true, "until": true, "do": true, "done": true,
	"case": true, "esac": true, "function": true, "{": true, "}": true,
	"read": true, "exit": true, "set": true,
}

// ExtractCommands pulls the executable lines out of a script body. The
// generation prompt demands one command per line with no control flow, so
// anything left after dropping blanks, comments and shell noise is a command.
func ExtractCommands(body string) []Command {
	var commands []Command
	for _, raw := range strings.Split(body, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		first, rest, _ := strings.Cut(line, " ")
		if controlWords[first] {
			continue
		}
		// progress chatter; echo writing a file is a real command
		if first == "echo" && !strings.Contains(line, ">") {
			continue
		}
		// a bare variable assignment; an assignment prefixing a command stays
		if name, _, ok := strings.Cut(first, "="); ok && rest == "" && name != "" && !strings.ContainsAny(name, "/$") {
			continue
		}
		commands = append(commands, Command{Text: line, Critical: isCriticalPath(line)})
	}
	return commands
}

// isCriticalPath marks repository and key reconfiguration steps: later
// upgrade commands depend on them, so their failure invalidates the rest of
// the script.
func isCriticalPath(line string) bool {
	for _, marker := range []string{
		"/etc/apt/",
		"sources.list",
		"apt-key",
		"archive-keyring",
		"apt-get update",
		"apt update",
	} {
		if strings.Contains(line, marker) {
			return true
		}
	}
	return false
}
