package executor

import (
	"context"
	"strings"
	"testing"

	"github.com/vulnix/vulnix/remediation"
	"github.com/vulnix/vulnix/safety"
	"github.com/vulnix/vulnix/utils"
)

type stubConfirmer struct {
	script  bool
	command func(cmd remediation.Command) bool
}

func (s stubConfirmer) ConfirmScript(*remediation.Script) bool { return s.script }
func (s stubConfirmer) ConfirmCommand(cmd remediation.Command) bool {
	if s.command == nil {
		return true
	}
	return s.command(cmd)
}

func testScript(commands ...remediation.Command) *remediation.Script {
	return &remediation.Script{PlanRef: "t", Commands: commands}
}

func approved() safety.Verdict {
	return safety.Verdict{Approved: true, FingerprintMatch: true}
}

func TestRunRejectsUnapprovedVerdict(t *testing.T) {
	script := testScript(remediation.Command{Text: "true"})
	verdict := safety.Verdict{Approved: false, BlockingReasons: []string{"target OS mismatch"}}

	for _, policy := range []string{utils.ConfirmAuto, utils.ConfirmDryRun, utils.ConfirmInteractive} {
		c := &Controller{Policy: policy, Confirmer: stubConfirmer{script: true}}
		result := c.Run(context.Background(), script, verdict)
		if result.State != StateRejected {
			t.Errorf("policy %s: state = %s, want REJECTED", policy, result.State)
		}
		if len(result.Records) != 0 {
			t.Errorf("policy %s: rejected run must execute nothing", policy)
		}
	}
}

func TestRunUnknownPolicyRejected(t *testing.T) {
	script := testScript(remediation.Command{Text: "echo never"})
	for _, policy := range []string{"interactiv", "yes", ""} {
		c := &Controller{Policy: policy, Confirmer: stubConfirmer{script: false}}
		result := c.Run(context.Background(), script, approved())
		if result.State != StateRejected {
			t.Errorf("policy %q: state = %s, want REJECTED", policy, result.State)
		}
		if len(result.Records) != 0 {
			t.Errorf("policy %q: nothing may execute under an unknown policy", policy)
		}
	}
}

func TestRunAutoPolicy(t *testing.T) {
	script := testScript(
		remediation.Command{Text: "echo first"},
		remediation.Command{Text: "echo second"},
	)
	var states []State
	c := &Controller{
		Policy:       utils.ConfirmAuto,
		OnTransition: func(s State) { states = append(states, s) },
	}
	result := c.Run(context.Background(), script, approved())

	if result.State != StateCompleted {
		t.Fatalf("state = %s, want COMPLETED", result.State)
	}
	if len(result.Records) != 2 {
		t.Fatalf("records = %d, want 2", len(result.Records))
	}
	for _, record := range result.Records {
		if record.Status != RecordCompleted || record.ExitCode != 0 {
			t.Errorf("record = %+v", record)
		}
	}
	if !strings.Contains(result.Records[0].Output, "first") {
		t.Errorf("output not captured: %q", result.Records[0].Output)
	}
	// auto never passes through AWAITING_CONFIRMATION
	for _, s := range states {
		if s == StateAwaitingConfirmation {
			t.Error("auto policy must not await confirmation")
		}
	}
}

func TestRunDryRunDeclinedCommandIsSkipped(t *testing.T) {
	script := testScript(
		remediation.Command{Text: "echo one"},
		remediation.Command{Text: "echo two"},
		remediation.Command{Text: "echo three"},
	)
	c := &Controller{
		Policy: utils.ConfirmDryRun,
		Confirmer: stubConfirmer{command: func(cmd remediation.Command) bool {
			return cmd.Text != "echo two"
		}},
	}
	result := c.Run(context.Background(), script, approved())

	if result.State != StateCompleted {
		t.Fatalf("state = %s, want COMPLETED; skips are not failures", result.State)
	}
	if len(result.Records) != 3 {
		t.Fatalf("records = %d, want 3", len(result.Records))
	}
	if result.Records[1].Status != RecordSkipped {
		t.Errorf("declined command status = %s, want SKIPPED", result.Records[1].Status)
	}
	if result.Records[2].Status != RecordCompleted {
		t.Error("execution must continue past a skipped command")
	}
}

func TestRunInteractiveDeclinedAbortsBeforeAnything(t *testing.T) {
	script := testScript(remediation.Command{Text: "echo never"})
	c := &Controller{Policy: utils.ConfirmInteractive, Confirmer: stubConfirmer{script: false}}
	result := c.Run(context.Background(), script, approved())

	if result.State != StateAborted {
		t.Fatalf("state = %s, want ABORTED", result.State)
	}
	if len(result.Records) != 0 {
		t.Error("declined script must produce no records")
	}
}

func TestRunNonCriticalFailureContinues(t *testing.T) {
	script := testScript(
		remediation.Command{Text: "false"},
		remediation.Command{Text: "echo after"},
	)
	c := &Controller{Policy: utils.ConfirmAuto}
	result := c.Run(context.Background(), script, approved())

	if result.State != StatePartiallyFailed {
		t.Fatalf("state = %s, want PARTIALLY_FAILED", result.State)
	}
	if len(result.Records) != 2 {
		t.Fatalf("records = %d, want 2", len(result.Records))
	}
	if result.Records[0].Status != RecordFailed || result.Records[0].ExitCode != 1 {
		t.Errorf("failed record = %+v", result.Records[0])
	}
	if result.Records[1].Status != RecordCompleted {
		t.Error("non-critical failure must not stop the run")
	}
}

func TestRunCriticalFailureAborts(t *testing.T) {
	script := testScript(
		remediation.Command{Text: "false", Critical: true},
		remediation.Command{Text: "echo unreachable"},
	)
	c := &Controller{Policy: utils.ConfirmAuto}
	result := c.Run(context.Background(), script, approved())

	if result.State != StateAborted {
		t.Fatalf("state = %s, want ABORTED", result.State)
	}
	if len(result.Records) != 1 {
		t.Fatalf("records = %d, want 1; nothing runs after a critical failure", len(result.Records))
	}
	if result.Records[0].Status != RecordFailed {
		t.Errorf("record = %+v", result.Records[0])
	}
}

func TestRunCancelledBetweenCommands(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	script := testScript(remediation.Command{Text: "echo never"})
	c := &Controller{Policy: utils.ConfirmAuto}
	result := c.Run(ctx, script, approved())

	if result.State != StateAborted {
		t.Fatalf("state = %s, want ABORTED", result.State)
	}
	if len(result.Records) != 0 {
		t.Error("cancelled run must not start new commands")
	}
}
