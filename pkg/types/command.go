package types

// CommandEnvelope names a registered command and the keyword parameters it is
// invoked with.
type CommandEnvelope struct {
	CommandName string         `json:"command_name"`
	Params      map[string]any `json:"params"`
}

// NewCommandEnvelope copies params so later changes by the caller do not leak
// into the envelope.
func NewCommandEnvelope(name string, params map[string]any) CommandEnvelope {
	copied := make(map[string]any, len(params))
	for k, v := range params {
		copied[k] = v
	}
	return CommandEnvelope{CommandName: name, Params: copied}
}

// WorkerCommand is the unit handed to the worker pool.
type WorkerCommand struct {
	TaskIdent string          `json:"task_ident"`
	Command   CommandEnvelope `json:"command"`
}
