// Package executor runs an approved remediation script under a confirmation
// policy and records every command outcome.
package executor

import (
	"context"
	"os/exec"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vulnix/vulnix/remediation"
	"github.com/vulnix/vulnix/safety"
	"github.com/vulnix/vulnix/utils"
)

type State string

const (
	StatePending              State = "PENDING"
	StateRejected             State = "REJECTED"
	StateAwaitingConfirmation State = "AWAITING_CONFIRMATION"
	StateRunning              State = "RUNNING"
	StateCompleted            State = "COMPLETED"
	StatePartiallyFailed      State = "PARTIALLY_FAILED"
	StateAborted              State = "ABORTED"
)

// per-command outcome
const (
	RecordCompleted = "COMPLETED"
	RecordFailed    = "FAILED"
	RecordSkipped   = "SKIPPED"
)

const outputExcerptLimit = 2000

// Record is the write-once outcome of one command. The record list is
// append-only and forms the execution part of the session report.
type Record struct {
	Command   string    `json:"command"`
	Status    string    `json:"status"`
	ExitCode  int       `json:"exit_code"`
	Output    string    `json:"output,omitempty"`
	Critical  bool      `json:"critical,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Confirmer answers the confirmation prompts. The terminal layer implements
// it; tests use stubs.
type Confirmer interface {
	ConfirmScript(script *remediation.Script) bool
	ConfirmCommand(cmd remediation.Command) bool
}

// confirmAll is used for the auto policy.
type confirmAll struct{}

func (confirmAll) ConfirmScript(*remediation.Script) bool  { return true }
func (confirmAll) ConfirmCommand(remediation.Command) bool { return true }

type Controller struct {
	Policy         string
	Confirmer      Confirmer
	Shell          string
	CommandTimeout time.Duration
	// OnTransition is notified of every state change; the terminal layer
	// observes it. May be nil.
	OnTransition func(State)
}

type Result struct {
	State   State    `json:"state"`
	Records []Record `json:"records"`
}

func (c *Controller) transition(state State) State {
	log.Debugf("execution state: %s", state)
	if c.OnTransition != nil {
		c.OnTransition(state)
	}
	return state
}

// Run drives PENDING through to a terminal state. An unapproved verdict
// rejects unconditionally, whatever the confirmation policy. Cancellation is
// honored only between commands, never mid-command.
func (c *Controller) Run(ctx context.Context, script *remediation.Script, verdict safety.Verdict) Result {
	result := Result{State: c.transition(StatePending)}

	if !verdict.Approved {
		result.State = c.transition(StateRejected)
		return result
	}

	// an unrecognized policy must never degrade into unconfirmed execution
	switch c.Policy {
	case utils.ConfirmAuto, utils.ConfirmDryRun, utils.ConfirmInteractive:
	default:
		log.Errorf("unknown confirmation policy %q", c.Policy)
		result.State = c.transition(StateRejected)
		return result
	}

	confirmer := c.Confirmer
	if c.Policy == utils.ConfirmAuto || confirmer == nil {
		confirmer = confirmAll{}
	}

	// interactive asks once for the whole script; dry-run asks per command
	// while running; auto skips confirmation entirely
	if c.Policy != utils.ConfirmAuto {
		result.State = c.transition(StateAwaitingConfirmation)
		if c.Policy == utils.ConfirmInteractive && !confirmer.ConfirmScript(script) {
			result.State = c.transition(StateAborted)
			return result
		}
	}

	result.State = c.transition(StateRunning)
	failed := false
	for _, cmd := range script.Commands {
		if ctx.Err() != nil {
			log.Warn("session cancelled, stopping between commands")
			result.State = c.transition(StateAborted)
			return result
		}
		if c.Policy == utils.ConfirmDryRun && !confirmer.ConfirmCommand(cmd) {
			result.Records = append(result.Records, Record{
				Command:   cmd.Text,
				Status:    RecordSkipped,
				Critical:  cmd.Critical,
				Timestamp: time.Now().UTC(),
			})
			continue
		}

		record := c.runCommand(cmd)
		result.Records = append(result.Records, record)

		if record.Status == RecordFailed {
			if cmd.Critical {
				log.Errorf("critical-path command failed, aborting: %s", cmd.Text)
				result.State = c.transition(StateAborted)
				return result
			}
			failed = true
		}
	}

	if failed {
		result.State = c.transition(StatePartiallyFailed)
	} else {
		result.State = c.transition(StateCompleted)
	}
	return result
}

func (c *Controller) runCommand(cmd remediation.Command) Record {
	shell := c.Shell
	if shell == "" {
		shell = "/bin/bash"
	}
	record := Record{Command: cmd.Text, Critical: cmd.Critical, Timestamp: time.Now().UTC()}

	// Per-command timeout only; the surrounding context is checked between
	// commands so a cancel never kills a command midway.
	runCtx := context.Background()
	if c.CommandTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(runCtx, c.CommandTimeout)
		defer cancel()
	}

	log.Infof("executing: %s", cmd.Text)
	ecmd := exec.CommandContext(runCtx, shell, "-c", cmd.Text)
	out, err := ecmd.CombinedOutput()
	record.Output = excerpt(out)
	if err != nil {
		record.Status = RecordFailed
		record.ExitCode = -1
		if exitErr, ok := err.(*exec.ExitError); ok {
			record.ExitCode = exitErr.ExitCode()
		}
		log.Errorf("command failed (exit %d): %s", record.ExitCode, cmd.Text)
		return record
	}
	record.Status = RecordCompleted
	return record
}

func excerpt(out []byte) string {
	s := string(out)
	if len(s) > outputExcerptLimit {
		return s[:outputExcerptLimit]
	}
	return s
}
