package model

// ExecutionMode tags which shape of judge response an ExecutionResult carries,
// so downstream code never branches on ad-hoc object shape.
type ExecutionMode string

const (
	ExecutionModeAdHoc     ExecutionMode = "adhoc"
	ExecutionModeTestCases ExecutionMode = "testcases"
)

// TestCaseResult is the outcome of running submitted code against one
// declared test case. Passed compares trimmed outputs, since judges
// frequently emit trailing newlines.
type TestCaseResult struct {
	Input          string `json:"input"`
	ExpectedOutput string `json:"expected_output"`
	ActualOutput   string `json:"actual_output"`
	Passed         bool   `json:"passed"`
	Error          string `json:"error,omitempty"`
}

// ExecutionResult is the normalized outcome of one judge run. It is
// ephemeral and advisory: only the submitted code is ever persisted.
// TransportError distinguishes "we couldn't reach the judge" from
// "the judge ran your code and it failed".
type ExecutionResult struct {
	Mode           ExecutionMode    `json:"mode"`
	Language       string           `json:"language"`
	Output         string           `json:"output"`
	Succeeded      bool             `json:"succeeded"`
	TransportError bool             `json:"transport_error,omitempty"`
	Status         string           `json:"status,omitempty"`
	Time           string           `json:"time,omitempty"`
	Memory         string           `json:"memory,omitempty"`
	TestResults    []TestCaseResult `json:"test_results,omitempty"`
	PassedCount    int              `json:"passed_count,omitempty"`
	TotalTests     int              `json:"total_tests,omitempty"`
}
