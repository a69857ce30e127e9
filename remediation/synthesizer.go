// Package remediation builds the structured request sent across the oracle
// boundary and wraps the generated text into an executable script artifact.
package remediation

import (
	"context"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vulnix/vulnix/classifier"
	"github.com/vulnix/vulnix/hostinfo"
)

// Oracle is the external reasoning service. Implementations live behind a
// network boundary; tests stub it out.
type Oracle interface {
	GenerateScript(ctx context.Context, prompt string) (string, error)
}

type Synthesizer struct {
	oracle Oracle
}

func NewSynthesizer(o Oracle) *Synthesizer {
	return &Synthesizer{oracle: o}
}

// Synthesize obtains a remediation script for the plan's UPGRADE entries.
// The script is stamped with the fingerprint of the scanned target taken
// from the plan, never with the host invoking synthesis - generation may
// happen on a different machine than execution.
func (s *Synthesizer) Synthesize(ctx context.Context, plan classifier.Plan) (*Script, error) {
	target := hostinfo.Fingerprint{Family: plan.OS.Family, Version: plan.OS.Version, Arch: plan.Arch}
	if target.IsZero() {
		return nil, fmt.Errorf("cannot synthesize host-level remediation without a target OS fingerprint")
	}
	upgrades := plan.Upgrades()
	if len(upgrades) == 0 {
		return nil, fmt.Errorf("plan %s has no upgradable entries", plan.ScanID)
	}

	prompt := BuildPrompt(plan, target)
	log.Debugf("synthesis prompt: %d bytes, %d upgrade entries", len(prompt), len(upgrades))

	text, err := s.oracle.GenerateScript(ctx, prompt)
	if err != nil {
		return nil, err
	}

	body := StripFences(text)
	// Render adds its own shebang ahead of the metadata header.
	if strings.HasPrefix(body, "#!") {
		if _, rest, ok := strings.Cut(body, "\n"); ok {
			body = strings.TrimLeft(rest, "\n")
		} else {
			body = ""
		}
	}
	script := &Script{
		Body:              body,
		TargetFingerprint: target,
		TargetEOL:         plan.OS.EOL,
		GeneratedAt:       time.Now().UTC(),
		PlanRef:           plan.ScanID,
		ProtectedPaths:    plan.ProtectedPaths(),
	}
	script.Commands = ExtractCommands(body)
	if len(script.Commands) == 0 {
		return nil, fmt.Errorf("oracle produced a script with no executable commands")
	}
	return script, nil
}

// BuildPrompt constructs the fixed instruction template plus the plan
// serialization. The template is a content contract: the safety gate later
// verifies the rules it states, so the two must stay aligned.
func BuildPrompt(plan classifier.Plan, target hostinfo.Fingerprint) string {
	var b strings.Builder
	b.WriteString("You are an expert senior Linux system administrator.\n")
	b.WriteString("Generate a Bash remediation script that upgrades the vulnerable packages listed below.\n\n")

	b.WriteString("RULES:\n")
	b.WriteString("1. The script runs as root on " + target.String() + ". Do not use sudo.\n")
	b.WriteString("2. Use only apt package management and signing-key management commands.\n")
	b.WriteString("3. One command per line. No conditionals, loops, functions, heredocs or prompts for input. Comments are allowed.\n")
	b.WriteString("4. Never disable package signature verification. Never use --allow-unauthenticated or --force-yes.\n")
	b.WriteString("5. No destructive filesystem operations. Never delete or recursively remove directories.\n")
	if len(plan.ProtectedPaths()) > 0 {
		b.WriteString("6. Never modify these application dependency files: " +
			strings.Join(plan.ProtectedPaths(), ", ") + ". They are handled manually.\n")
	}
	b.WriteString("\n")

	if plan.OS.EOL {
		b.WriteString("The target release is end-of-life. Before any upgrade the script MUST:\n")
		codename := hostinfo.DebianCodename(plan.OS.Version)
		if strings.EqualFold(plan.OS.Family, "debian") && codename != "" {
			b.WriteString(fmt.Sprintf("- rewrite /etc/apt/sources.list to use http://archive.debian.org/debian %s main\n", codename))
		} else {
			b.WriteString("- rewrite the apt sources to the vendor's archived/EOL mirror set\n")
		}
		b.WriteString("- install the archive signing keyring so signature checks keep working\n")
		b.WriteString("- run apt-get -o Acquire::Check-Valid-Until=false update (archived release files carry expired dates)\n")
		b.WriteString("\n")
	}

	b.WriteString("TARGET OS: " + target.String() + "\n\n")
	b.WriteString("PACKAGES TO UPGRADE:\n")
	for _, entry := range plan.Upgrades() {
		b.WriteString(fmt.Sprintf("- %s installed=%s fixed=%s severity=%s cves=%s\n",
			entry.Package, entry.InstalledVersion, entry.FixedVersion, entry.Severity,
			strings.Join(entry.Vulnerabilities, ",")))
	}
	b.WriteString("\nReturn ONLY the raw Bash script, starting with #!/bin/bash.\n")
	return b.String()
}

// StripFences removes a wrapping markdown code fence, which models add
// despite instructions.
func StripFences(text string) string {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	lines := strings.Split(trimmed, "\n")
	if strings.HasPrefix(lines[0], "```") {
		lines = lines[1:]
	}
	if len(lines) > 0 && strings.HasPrefix(strings.TrimSpace(lines[len(lines)-1]), "```") {
		lines = lines[:len(lines)-1]
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
