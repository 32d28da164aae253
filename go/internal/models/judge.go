package models

// JudgeStatus is the server-side judge state.
type JudgeStatus string

const (
	JudgeQueueing JudgeStatus = "JudgeQueueing"
	JudgeRunning  JudgeStatus = "JudgeRunning"
	JudgePending  JudgeStatus = "Pending"
	JudgeAC       JudgeStatus = "JudgeAC"
	JudgeWA       JudgeStatus = "JudgeWA"
	JudgeError    JudgeStatus = "JudgeError"
	JudgeTimeout  JudgeStatus = "JudgeTimeout"
)

// JudgeResult is the client view of a judge outcome.
type JudgeResult string

const (
	JudgeResultPending  JudgeResult = "Pending"
	JudgeResultAccepted JudgeResult = "Accepted"
	JudgeResultWrong    JudgeResult = "Wrong"
	JudgeResultError    JudgeResult = "Error"
	JudgeResultTimeout  JudgeResult = "Timeout"
)

// Result maps a wire status to a JudgeResult. Unknown statuses are pending.
func (s JudgeStatus) Result() JudgeResult {
	switch s {
	case JudgeAC:
		return JudgeResultAccepted
	case JudgeWA:
		return JudgeResultWrong
	case JudgeError:
		return JudgeResultError
	case JudgeTimeout:
		return JudgeResultTimeout
	default:
		return JudgeResultPending
	}
}

// IsTerminal reports whether polling can stop.
func (r JudgeResult) IsTerminal() bool {
	return r != JudgeResultPending
}

// Submission lives for the duration of one judge workflow run.
type Submission struct {
	JudgeID     string `json:"judge_id"`
	ChallengeID int64  `json:"challenge_id"`
	Flag        string `json:"-"`
}
