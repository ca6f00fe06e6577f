package orchestrator

// Phase is a step of intention processing.
type Phase string

const (
	PhaseIdle           Phase = "idle"
	PhaseAnalyzing      Phase = "analyzing"
	PhaseRequesting     Phase = "requesting"
	PhaseTaskGeneration Phase = "task_generation"
	PhaseMaterializing  Phase = "materializing"
	PhaseComplete       Phase = "complete"
)

// phaseInfo is the progress and step text shown when a phase is entered.
var phaseInfo = map[Phase]struct {
	progress int
	step     string
}{
	PhaseIdle:           {0, ""},
	PhaseAnalyzing:      {0, "Analyzing your intention..."},
	PhaseRequesting:     {25, "Connecting to AI..."},
	PhaseTaskGeneration: {60, "Generating tasks..."},
	PhaseMaterializing:  {80, "Creating task cards..."},
	PhaseComplete:       {100, "Complete!"},
}

// ProcessingState is the observable state of intention processing.
type ProcessingState struct {
	IsProcessing bool
	Progress     int
	CurrentStep  string
	Phase        Phase
	// Error is the message of the last failure not absorbed by the model
	// client. Cleared by ClearError and by the next run.
	Error string
}

// Idle reports whether no run is in progress and no error is pending.
func (s ProcessingState) Idle() bool {
	return !s.IsProcessing && s.Error == "" && (s.Phase == PhaseIdle || s.Phase == "")
}

func stateFor(p Phase) ProcessingState {
	info := phaseInfo[p]
	return ProcessingState{
		IsProcessing: p != PhaseIdle,
		Progress:     info.progress,
		CurrentStep:  info.step,
		Phase:        p,
	}
}

// StateObserver is called synchronously on every ProcessingState change.
type StateObserver func(ProcessingState)
