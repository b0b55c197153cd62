package verifier

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/tordrt/socialgraph/internal/apperr"
	"github.com/tordrt/socialgraph/internal/console"
	"github.com/tordrt/socialgraph/internal/schema"
)

// State is the position of a connection in its startup lifecycle
type State string

const (
	StateDisconnected State = "DISCONNECTED"
	StateChecking     State = "CHECKING"
	StateDrifted      State = "DRIFTED"
	StateProvisioning State = "PROVISIONING"
	StateConnected    State = "CONNECTED"
)

// Operator prompts
const (
	PromptInitialize   = "The database looks empty. Initialize tables?"
	PromptReinitialize = "Some tables are missing. Re-initialize?"
	PromptDropExisting = "Delete the existing tables?"
	PromptRebuild      = "Database table name conflict or corruption. Delete and re-initialize?"
)

// Lifecycle drives a connection from DISCONNECTED to CONNECTED, asking the
// operator before any table is created or dropped. A declined remediation
// leaves it DISCONNECTED for good.
type Lifecycle struct {
	verifier *Verifier
	ui       console.UI
	desc     schema.Description
	prefix   string

	state  State
	report *Report
}

// NewLifecycle creates a lifecycle for the tables in desc
func NewLifecycle(v *Verifier, ui console.UI, desc schema.Description, prefix string) *Lifecycle {
	return &Lifecycle{
		verifier: v,
		ui:       ui,
		desc:     desc,
		prefix:   prefix,
		state:    StateDisconnected,
	}
}

// State returns the current state
func (l *Lifecycle) State() State {
	return l.state
}

// Report returns the latest check result, nil before the first check
func (l *Lifecycle) Report() *Report {
	return l.report
}

// Connect checks the database and, with the operator's consent, provisions
// it until the check passes. The returned error is fatal for the session.
func (l *Lifecycle) Connect(ctx context.Context) error {
	if l.state == StateConnected {
		return nil
	}

	report, err := l.check(ctx)
	if err != nil {
		return err
	}
	if report.Status == StatusOK {
		l.state = StateConnected
		return nil
	}

	l.state = StateDrifted
	drop, ok := l.decide(report.Status)
	if !ok {
		l.state = StateDisconnected
		msg := fmt.Sprintf("Database was %s and user rejected re-initialization request!", describe(report.Status))
		l.ui.Severe(msg)
		return apperr.Wrap(report.Err(), apperr.CodeSchemaDrift, msg)
	}

	l.state = StateProvisioning
	l.ui.Info("Provisioning tables", zap.Bool("drop_existing", drop), zap.String("prefix", l.prefix))
	if err := l.verifier.Provision(ctx, l.desc, l.prefix, drop); err != nil {
		l.state = StateDisconnected
		l.ui.Severe("Table provisioning failed", zap.Error(err))
		return fmt.Errorf("failed to provision tables: %w", err)
	}

	report, err = l.check(ctx)
	if err != nil {
		return err
	}
	if report.Status != StatusOK {
		l.state = StateDisconnected
		l.ui.Severe("Database still does not match the schema after provisioning",
			zap.String("status", string(report.Status)))
		return report.Err()
	}

	l.state = StateConnected
	l.ui.Info("Tables ready")
	return nil
}

func (l *Lifecycle) check(ctx context.Context) (*Report, error) {
	l.state = StateChecking
	report, err := l.verifier.Check(ctx, l.desc, l.prefix)
	if err != nil {
		l.state = StateDisconnected
		l.ui.Severe("Table check failed", zap.Error(err))
		return nil, fmt.Errorf("failed to check tables: %w", err)
	}
	l.report = report

	for _, t := range report.Tables {
		for _, p := range t.Problems {
			if p.Kind == ProblemMissingTable {
				l.ui.Warn("Missing table in table check", zap.String("table", t.Name))
				continue
			}
			l.ui.Severe("Schema problem in table check",
				zap.String("table", t.Name),
				zap.String("problem", p.String()))
		}
	}
	return report, nil
}

// decide asks the operator how to remediate status. ok is false when the
// operator declined.
func (l *Lifecycle) decide(status Status) (drop bool, ok bool) {
	switch status {
	case StatusEmpty:
		return false, l.ui.Confirm(PromptInitialize, false)
	case StatusPartial:
		if !l.ui.Confirm(PromptReinitialize, false) {
			return false, false
		}
		return l.ui.Confirm(PromptDropExisting, false), true
	case StatusCorrupt:
		return true, l.ui.Confirm(PromptRebuild, false)
	default:
		return false, true
	}
}

func describe(s Status) string {
	switch s {
	case StatusEmpty:
		return "empty"
	case StatusPartial:
		return "incomplete"
	case StatusCorrupt:
		return "corrupt"
	default:
		return "unusable"
	}
}
