package model

type RunState string

const (
	RunStateIdle           RunState = "IDLE"
	RunStateRunning        RunState = "RUNNING"
	RunStateBudgetExceeded RunState = "BUDGET_EXCEEDED"
	RunStateExhausted      RunState = "EXHAUSTED"
	RunStateFailed         RunState = "FAILED"

	// RunStateLimitReached ends a run that handled limit users while more remain.
	RunStateLimitReached RunState = "LIMIT_REACHED"
)

type RunResult struct {
	ProcessedUsers      int      `json:"processedUsers"`
	ProcessedPortfolios int      `json:"processedPortfolios"`
	Done                bool     `json:"done"`
	State               RunState `json:"-"`
	SkippedPortfolios   int      `json:"-"`
	SnapshotsWritten    int      `json:"-"`
}
