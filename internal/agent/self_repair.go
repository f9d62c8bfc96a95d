package agent

// ToolBatchStats summarizes the most recent tool-call batch, handed to
// the self-repair collaborator after each batch completes (spec.md
// §4.6 step h, §9 open question 3).
type ToolBatchStats struct {
	CallCount       int
	ErrorCount      int
	ConsecutiveErrs int
	EstimatedTokens int
	ContextLimit    int
}

// SelfRepairAction is the closed set of actions a self-repair
// collaborator may request. "compact" is the only mandated action
// (SPEC_FULL.md §4.6): it invokes mid-turn context compaction and logs
// context_compacted. Unrecognized or empty actions are no-ops.
type SelfRepairAction string

const (
	SelfRepairNone    SelfRepairAction = ""
	SelfRepairCompact SelfRepairAction = "compact"
)

// SelfRepair is consulted after each tool-call batch with recent
// call/error statistics; it may request a mid-turn recovery action.
// It generalizes the teacher's transcript_repair.go, which only fixed
// malformed tool-call/result pairing after a crash, into a pluggable
// hook the turn loop consults proactively.
type SelfRepair interface {
	Consult(stats ToolBatchStats) SelfRepairAction
}

// DefaultSelfRepair requests compaction once the estimated token count
// crosses a fraction of the context limit, or once a run of
// consecutive tool errors suggests the model has lost track of state
// and would benefit from a fresh, compacted view of the conversation.
type DefaultSelfRepair struct {
	// ConsecutiveErrThreshold is the run length of consecutive tool
	// errors that triggers a compaction request. Zero disables this
	// trigger.
	ConsecutiveErrThreshold int
	// ContextFraction is the fraction of ContextLimit (0,1] at which
	// compaction is requested based on estimated token usage. Zero
	// disables this trigger.
	ContextFraction float64
}

// NewDefaultSelfRepair returns a DefaultSelfRepair with the teacher's
// conservative defaults: three consecutive tool errors, or 80% of the
// reported context limit.
func NewDefaultSelfRepair() *DefaultSelfRepair {
	return &DefaultSelfRepair{ConsecutiveErrThreshold: 3, ContextFraction: 0.8}
}

func (d *DefaultSelfRepair) Consult(stats ToolBatchStats) SelfRepairAction {
	if d.ConsecutiveErrThreshold > 0 && stats.ConsecutiveErrs >= d.ConsecutiveErrThreshold {
		return SelfRepairCompact
	}
	if d.ContextFraction > 0 && stats.ContextLimit > 0 {
		if float64(stats.EstimatedTokens) >= d.ContextFraction*float64(stats.ContextLimit) {
			return SelfRepairCompact
		}
	}
	return SelfRepairNone
}
