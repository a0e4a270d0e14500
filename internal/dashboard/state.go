// Package dashboard renders the station picker page and the two analysis views.
//
// The page follows a small state machine: the user selects a station on the map,
// asks for the analysis, and sees either both charts or the failure message.
package dashboard

import "fmt"

// State is the dashboard's current step
type State int

const (
	Idle State = iota
	StationSelected
	AnalysisRunning
	AnalysisComplete
	AnalysisFailed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case StationSelected:
		return "station-selected"
	case AnalysisRunning:
		return "analysis-running"
	case AnalysisComplete:
		return "analysis-complete"
	case AnalysisFailed:
		return "analysis-failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Event is a user action or an analysis outcome
type Event int

const (
	SelectStation Event = iota
	RunAnalysis
	AnalysisSucceeded
	AnalysisErrored
)

func (e Event) String() string {
	switch e {
	case SelectStation:
		return "select-station"
	case RunAnalysis:
		return "run-analysis"
	case AnalysisSucceeded:
		return "analysis-succeeded"
	case AnalysisErrored:
		return "analysis-errored"
	default:
		return fmt.Sprintf("event(%d)", int(e))
	}
}

// TransitionError reports an event that is not allowed in the current state
type TransitionError struct {
	From  State
	Event Event
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("event %s not allowed in state %s", e.Event, e.From)
}

var transitions = map[State]map[Event]State{
	Idle: {
		SelectStation: StationSelected,
	},
	StationSelected: {
		SelectStation: StationSelected,
		RunAnalysis:   AnalysisRunning,
	},
	AnalysisRunning: {
		AnalysisSucceeded: AnalysisComplete,
		AnalysisErrored:   AnalysisFailed,
	},
	AnalysisComplete: {
		SelectStation: StationSelected,
		RunAnalysis:   AnalysisRunning,
	},
	AnalysisFailed: {
		SelectStation: StationSelected,
		RunAnalysis:   AnalysisRunning,
	},
}

// Next returns the state reached from s on e
func Next(s State, e Event) (State, error) {
	next, ok := transitions[s][e]
	if !ok {
		return s, &TransitionError{From: s, Event: e}
	}
	return next, nil
}
