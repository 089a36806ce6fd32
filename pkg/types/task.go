package types

// TaskDTO is the externally visible snapshot of a task.
type TaskDTO struct {
	TaskIdent      string          `json:"task_ident"`
	Command        CommandEnvelope `json:"command"`
	Reports        []ReportItem    `json:"reports"`
	State          TaskState       `json:"state"`
	TaskFinishType FinishType      `json:"task_finish_type"`
	Result         any             `json:"result"`
}

// Finished reports whether the snapshot is terminal.
func (d TaskDTO) Finished() bool {
	return d.State == TaskFinished
}
