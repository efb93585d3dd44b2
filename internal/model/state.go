package model

// RecordState is a state of the recording state machine (C4).
type RecordState string

const (
	StateStopped   RecordState = "stopped"
	StateRecording RecordState = "recording"
	StatePaused    RecordState = "paused"
)

// RecordEvent is an event the recording state machine consumes.
type RecordEvent string

const (
	EventStart  RecordEvent = "start"
	EventPause  RecordEvent = "pause"
	EventResume RecordEvent = "resume"
	EventStop   RecordEvent = "stop"
)
