package entities

// Decision is one model decision: which tool to invoke and with what
// arguments. An empty Tool means the model produced commentary without
// choosing an action.
type Decision struct {
	Tool      string                 `json:"tool"`
	Arguments map[string]interface{} `json:"arguments,omitempty"`
	Reasoning string                 `json:"reasoning,omitempty"`
	Error     string                 `json:"error,omitempty"`
}

// ToolSchema describes one capability exposed to the model, in the shape the
// chat completions tools parameter expects.
type ToolSchema struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Parameters  map[string]interface{} `json:"parameters"`
}
