package sync

import (
	"time"
)

// Outcome classifies what happened to a single entry during a sync.
type Outcome string

const (
	OutcomeCreated     Outcome = "created"
	OutcomeOverwritten Outcome = "overwritten"
	OutcomePreserved   Outcome = "preserved"
	OutcomeBackedUp    Outcome = "backed_up"
	OutcomeSkipped     Outcome = "skipped"
	OutcomeFailed      Outcome = "failed"
)

// Action records the outcome for one path. Failed actions carry the
// error text so a caller can retry without re-running the whole sync.
type Action struct {
	Path    string  `json:"path" yaml:"path"`
	Type    string  `json:"type" yaml:"type"` // "file" or "dir"
	Outcome Outcome `json:"outcome" yaml:"outcome"`
	Error   string  `json:"error,omitempty" yaml:"error,omitempty"`
}

// Report enumerates everything a sync did. It accumulates per-entry
// outcomes instead of raising them individually, so one failure never
// hides what else succeeded.
type Report struct {
	Template   string    `json:"template" yaml:"template"`
	Target     string    `json:"target" yaml:"target"`
	StartedAt  time.Time `json:"started_at" yaml:"started_at"`
	FinishedAt time.Time `json:"finished_at" yaml:"finished_at"`

	Created     int `json:"created" yaml:"created"`
	Overwritten int `json:"overwritten" yaml:"overwritten"`
	Preserved   int `json:"preserved" yaml:"preserved"`
	BackedUp    int `json:"backed_up" yaml:"backed_up"`
	Skipped     int `json:"skipped" yaml:"skipped"`
	Failed      int `json:"failed" yaml:"failed"`

	Actions []Action `json:"actions" yaml:"actions"`

	// UnresolvedVars lists template variables that had no mapping.
	// Affected files are still written with their tokens intact.
	UnresolvedVars []string `json:"unresolved_vars,omitempty" yaml:"unresolved_vars,omitempty"`

	// BackupDir is set when any file was backed up before overwrite.
	BackupDir string `json:"backup_dir,omitempty" yaml:"backup_dir,omitempty"`
}

// Ok reports whether every entry succeeded.
func (r *Report) Ok() bool {
	return r.Failed == 0
}

func (r *Report) record(a Action) {
	r.Actions = append(r.Actions, a)
	switch a.Outcome {
	case OutcomeCreated:
		r.Created++
	case OutcomeOverwritten:
		r.Overwritten++
	case OutcomePreserved:
		r.Preserved++
	case OutcomeBackedUp:
		r.BackedUp++
	case OutcomeSkipped:
		r.Skipped++
	case OutcomeFailed:
		r.Failed++
	}
}
