package orchestrator

import "voiceagent/core"

// State is a step of one server-side turn.
type State string

const (
	StateReceived     State = "received"
	StateTranscribing State = "transcribing"
	StateTranscribed  State = "transcribed"
	StateGenerating   State = "generating"
	StateGenerated    State = "generated"
	StateSynthesizing State = "synthesizing"
	StateCompleted    State = "completed"
	StateFailed       State = "failed"
)

// Status is the outcome reported to the client.
type Status string

const (
	StatusSuccess Status = "success"
	StatusPartial Status = "partial"
	StatusError   Status = "error"
)

var transitions = map[State][]State{
	StateReceived:     {StateTranscribing, StateFailed},
	StateTranscribing: {StateTranscribed, StateFailed},
	StateTranscribed:  {StateGenerating, StateFailed},
	StateGenerating:   {StateGenerated, StateFailed},
	StateGenerated:    {StateSynthesizing, StateFailed},
	StateSynthesizing: {StateCompleted, StateFailed},
}

// CanTransition reports whether to may follow from.
func CanTransition(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Terminal reports whether s ends a turn.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

// stageOf names the pipeline stage a state belongs to.
func stageOf(s State) core.Stage {
	switch s {
	case StateTranscribing, StateTranscribed:
		return core.StageTranscribe
	case StateGenerating, StateGenerated:
		return core.StageGenerate
	case StateSynthesizing:
		return core.StageSynthesize
	}
	return core.StageUpload
}
