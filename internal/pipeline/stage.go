package pipeline

// Stage is a step of the per-request state machine. Stages only advance;
// Errored is absorbing.
type Stage int

const (
	StageReceived Stage = iota
	StageValidated
	StageNormalized
	StageInferred
	StageComposed
	StageEncoded
	StageResponded
	StageErrored
)

var stageNames = [...]string{
	StageReceived:   "received",
	StageValidated:  "validated",
	StageNormalized: "normalized",
	StageInferred:   "inferred",
	StageComposed:   "composed",
	StageEncoded:    "encoded",
	StageResponded:  "responded",
	StageErrored:    "errored",
}

func (s Stage) String() string {
	if s < 0 || int(s) >= len(stageNames) {
		return "unknown"
	}
	return stageNames[s]
}

// flow tracks the stage of one request.
type flow struct {
	stage Stage
	// failedAt is the last stage reached before Errored.
	failedAt Stage
}

func (f *flow) advance(to Stage) {
	if f.stage == StageErrored || to <= f.stage {
		return
	}
	f.stage = to
}

// fail moves the flow to Errored and stamps e with the stage it failed in.
func (f *flow) fail(e *Error) *Error {
	if f.stage != StageErrored {
		f.failedAt = f.stage
		f.stage = StageErrored
	}
	e.Stage = f.failedAt
	return e
}
