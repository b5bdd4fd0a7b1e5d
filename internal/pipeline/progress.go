package pipeline

// Phase identifies a step of the scan lifecycle.
type Phase string

const (
	PhaseInit          Phase = "init"
	PhasePrimaryScan   Phase = "primary-scan"
	PhaseSecondaryScan Phase = "secondary-scan"
	PhaseExtract       Phase = "extract"
	PhaseEnrich        Phase = "enrich"
	PhaseScore         Phase = "score"
	PhaseCorrelate     Phase = "correlate"
	PhaseAnalyze       Phase = "analysis"
)

// phaseOrder is the canonical execution order. Only primary-scan is
// fatal; every later phase degrades to a recorded error.
var phaseOrder = []Phase{
	PhaseInit,
	PhasePrimaryScan,
	PhaseSecondaryScan,
	PhaseExtract,
	PhaseEnrich,
	PhaseScore,
	PhaseCorrelate,
	PhaseAnalyze,
}

// Ordinal returns the 1-based position of p in the execution order,
// or 0 for an unknown phase.
func (p Phase) Ordinal() int {
	for i, phase := range phaseOrder {
		if phase == p {
			return i + 1
		}
	}
	return 0
}

// PhaseCount returns the total number of pipeline phases.
func PhaseCount() int {
	return len(phaseOrder)
}

// ProgressEvent is a point-in-time update emitted while a phase runs.
// Percent is -1 when the underlying tool reported something other than
// a percentage (an ETC line, a per-target count).
type ProgressEvent struct {
	Phase   Phase
	Tool    string
	Percent float64
	ETC     string
	Message string
}

// ProgressFunc receives progress events. It is called from the
// orchestrator goroutine and from scanner callbacks, so it must be
// safe for concurrent use.
type ProgressFunc func(ProgressEvent)
