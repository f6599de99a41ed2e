package gateway

import "github.com/harun/mofflow/pkg/workflow"

// WorkflowRequest is the input contract of the front door.
type WorkflowRequest struct {
	Request  string `json:"request"`
	ThreadID string `json:"thread_id,omitempty"`
}

// WorkflowResponse is the output contract of the front door.
type WorkflowResponse struct {
	ID        string                `json:"id"`
	ThreadID  string                `json:"thread_id"`
	Terminal  string                `json:"terminal"`
	Plan      []string              `json:"plan,omitempty"`
	Results   []workflow.StepResult `json:"results"`
	FinalText string                `json:"final_text"`
}

// EventMessage is one frame on the websocket event stream.
type EventMessage struct {
	Type      string      `json:"type"`
	Event     string      `json:"event"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp int64       `json:"timestamp"`
	Seq       uint64      `json:"seq"`
}

// PhaseEvent is the payload broadcast on orchestrator phase transitions.
type PhaseEvent struct {
	Phase    string `json:"phase"`
	Terminal string `json:"terminal,omitempty"`
	Cursor   int    `json:"cursor"`
	Steps    int    `json:"steps"`
	Results  int    `json:"results"`
	LastKey  string `json:"last_result,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}
