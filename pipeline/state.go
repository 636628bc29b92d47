package pipeline

// State is a stage of a pipeline run.
type State int

const (
	Idle State = iota
	Ingesting
	Preparing
	Training
	Evaluating
	Completed
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Ingesting:
		return "ingesting"
	case Preparing:
		return "preparing"
	case Training:
		return "training"
	case Evaluating:
		return "evaluating"
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	}
	return "unknown"
}

// Terminal reports whether no further transition can follow s.
func (s State) Terminal() bool { return s == Completed || s == Failed }
