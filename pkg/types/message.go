package types

import "strconv"

// MessageKind tags the payload carried by a Message.
type MessageKind int

const (
	MessageReport MessageKind = iota + 1
	MessageExecuted
	MessageFinished
)

// String returns the wire name of the kind.
func (k MessageKind) String() string {
	switch k {
	case MessageReport:
		return "REPORT"
	case MessageExecuted:
		return "EXECUTED"
	case MessageFinished:
		return "FINISHED"
	default:
		return "MessageKind(" + strconv.Itoa(int(k)) + ")"
	}
}

// Message is sent from a worker process to the scheduler. Only the fields
// belonging to Kind are meaningful.
type Message struct {
	TaskIdent  string      `json:"task_ident"`
	Kind       MessageKind `json:"kind"`
	Report     *ReportItem `json:"report,omitempty"`
	WorkerPID  int         `json:"worker_pid,omitempty"`
	FinishType FinishType  `json:"finish_type,omitempty"`
	Result     any         `json:"result,omitempty"`
}

// NewReportMessage wraps one report item.
func NewReportMessage(taskIdent string, item ReportItem) Message {
	return Message{TaskIdent: taskIdent, Kind: MessageReport, Report: &item}
}

// NewExecutedMessage announces that a worker process started the task.
func NewExecutedMessage(taskIdent string, pid int) Message {
	return Message{TaskIdent: taskIdent, Kind: MessageExecuted, WorkerPID: pid}
}

// NewFinishedMessage carries the task outcome.
func NewFinishedMessage(taskIdent string, finishType FinishType, result any) Message {
	return Message{TaskIdent: taskIdent, Kind: MessageFinished, FinishType: finishType, Result: result}
}
