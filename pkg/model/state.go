package model

// RequestID orders requests. It increases monotonically for the life of a
// process and is the only thing used to tell a stale reply from a live one.
type RequestID uint64

type Status string

const (
	StatusIdle    Status = "idle"
	StatusLoading Status = "loading"
	StatusReady   Status = "ready"
	StatusError   Status = "error"
)

// PipelineState is what the view layer reads for one lens.
type PipelineState struct {
	Status    Status          `json:"status" yaml:"status"`
	RequestID RequestID       `json:"requestId,omitempty" yaml:"request_id,omitempty"`
	Result    *AnalysisResult `json:"result,omitempty" yaml:"result,omitempty"`
	Audio     *Audio          `json:"audio,omitempty" yaml:"audio,omitempty"`
	Message   string          `json:"message,omitempty" yaml:"message,omitempty"`
}

func IdleState() PipelineState {
	return PipelineState{Status: StatusIdle}
}

func LoadingState(id RequestID) PipelineState {
	return PipelineState{Status: StatusLoading, RequestID: id}
}

func ReadyState(id RequestID, a Analysis) PipelineState {
	result := a.Result
	return PipelineState{Status: StatusReady, RequestID: id, Result: &result, Audio: a.Audio}
}

func ErrorState(id RequestID, message string) PipelineState {
	return PipelineState{Status: StatusError, RequestID: id, Message: message}
}

// Settled reports whether the slot holds a final outcome.
func (s PipelineState) Settled() bool {
	return s.Status == StatusReady || s.Status == StatusError
}
