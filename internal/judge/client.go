package judge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/acadex/examroom-backend/internal/model"
	"github.com/rs/zerolog"
)

// ErrUnsupportedLanguage is returned before any network call when the
// requested language is not one the judge can run.
var ErrUnsupportedLanguage = errors.New("unsupported language")

// supportedLanguages mirrors the judge deployment's installed toolchains.
var supportedLanguages = map[string]bool{
	"c":          true,
	"cpp":        true,
	"go":         true,
	"java":       true,
	"javascript": true,
	"python":     true,
}

// Client talks to the external code execution service and normalizes its
// heterogeneous response shapes into one tagged ExecutionResult at the
// boundary. It is stateless and re-entrant: concurrent runs never corrupt
// each other, callers key results by question id.
type Client struct {
	baseURL string
	httpc   *http.Client
	log     zerolog.Logger
}

// NewClient creates a judge client. The timeout bounds the whole round
// trip; a judge that hangs becomes a transport-classified failure, never an
// unbounded wait.
func NewClient(baseURL string, timeout time.Duration, log zerolog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpc:   &http.Client{Timeout: timeout},
		log:     log.With().Str("component", "judge_client").Logger(),
	}
}

// RunRequest describes one execution. TestCases and CustomInput select the
// mode: declared test cases produce per-case results, otherwise the code
// runs once against CustomInput (which may be empty).
type RunRequest struct {
	Code        string
	Language    string
	TestCases   []model.TestCase
	CustomInput string
}

// wireRequest is the judge's request contract.
type wireRequest struct {
	Code        string         `json:"code"`
	Language    string         `json:"language"`
	TestCases   []wireTestCase `json:"testCases,omitempty"`
	CustomInput string         `json:"customInput,omitempty"`
}

type wireTestCase struct {
	Input  string `json:"input"`
	Output string `json:"output"`
}

// wireResponse covers both response shapes the judge emits.
type wireResponse struct {
	Success     bool             `json:"success"`
	Output      string           `json:"output"`
	Status      string           `json:"status,omitempty"`
	Time        string           `json:"time,omitempty"`
	Memory      string           `json:"memory,omitempty"`
	TestResults []wireTestResult `json:"testResults,omitempty"`
	PassedCount int              `json:"passedCount"`
	TotalTests  int              `json:"totalTests"`
}

type wireTestResult struct {
	Passed         bool   `json:"passed"`
	Input          string `json:"input"`
	ExpectedOutput string `json:"expectedOutput"`
	ActualOutput   string `json:"actualOutput"`
	Error          string `json:"error,omitempty"`
}

// Run executes code on the judge. Transport failures (network error,
// timeout, non-2xx) come back as an ExecutionResult with Succeeded=false
// and TransportError=true so callers can tell "your code is wrong" from
// "we couldn't reach the judge". Only a malformed language is an error.
func (c *Client) Run(ctx context.Context, req RunRequest) (*model.ExecutionResult, error) {
	lang := strings.ToLower(strings.TrimSpace(req.Language))
	if !supportedLanguages[lang] {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedLanguage, req.Language)
	}

	mode := model.ExecutionModeAdHoc
	wire := wireRequest{Code: req.Code, Language: lang, CustomInput: req.CustomInput}
	if len(req.TestCases) > 0 {
		mode = model.ExecutionModeTestCases
		wire.CustomInput = ""
		wire.TestCases = make([]wireTestCase, len(req.TestCases))
		for i, tc := range req.TestCases {
			wire.TestCases[i] = wireTestCase{Input: tc.Input, Output: tc.ExpectedOutput}
		}
	}

	body, err := json.Marshal(wire)
	if err != nil {
		return nil, fmt.Errorf("marshal judge request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/run", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build judge request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(httpReq)
	if err != nil {
		c.log.Warn().Err(err).Str("language", lang).Msg("Judge unreachable")
		return transportFailure(mode, lang, "execution service unreachable"), nil
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Never parse a non-2xx body as success.
		c.log.Warn().Int("status", resp.StatusCode).Msg("Judge returned non-2xx")
		return transportFailure(mode, lang, fmt.Sprintf("execution service error (HTTP %d)", resp.StatusCode)), nil
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return transportFailure(mode, lang, "execution service response unreadable"), nil
	}

	var wr wireResponse
	if err := json.Unmarshal(raw, &wr); err != nil {
		return transportFailure(mode, lang, "execution service returned malformed response"), nil
	}

	if mode == model.ExecutionModeTestCases {
		return normalizeTestCases(lang, &wr, len(req.TestCases)), nil
	}
	return normalizeAdHoc(lang, &wr), nil
}

func transportFailure(mode model.ExecutionMode, lang, msg string) *model.ExecutionResult {
	return &model.ExecutionResult{
		Mode:           mode,
		Language:       lang,
		Output:         msg,
		Succeeded:      false,
		TransportError: true,
	}
}

// normalizeAdHoc maps the simple response shape: raw output plus a success
// flag. Compile and runtime errors arrive verbatim in Output.
func normalizeAdHoc(lang string, wr *wireResponse) *model.ExecutionResult {
	return &model.ExecutionResult{
		Mode:      model.ExecutionModeAdHoc,
		Language:  lang,
		Output:    wr.Output,
		Succeeded: wr.Success,
		Status:    wr.Status,
		Time:      wr.Time,
		Memory:    wr.Memory,
	}
}

// normalizeTestCases maps the per-case shape. Passed is recomputed here
// from trimmed outputs rather than trusted from the judge: judges
// frequently emit trailing newlines, and the comparison rule belongs to
// this boundary. The total is anchored to the submitted case count, so a
// judge that silently drops cases fails the aggregate instead of passing
// a partial result set.
func normalizeTestCases(lang string, wr *wireResponse, submitted int) *model.ExecutionResult {
	results := make([]model.TestCaseResult, len(wr.TestResults))
	passed := 0
	for i, tr := range wr.TestResults {
		ok := tr.Error == "" &&
			strings.TrimSpace(tr.ActualOutput) == strings.TrimSpace(tr.ExpectedOutput)
		if ok {
			passed++
		}
		results[i] = model.TestCaseResult{
			Input:          tr.Input,
			ExpectedOutput: tr.ExpectedOutput,
			ActualOutput:   tr.ActualOutput,
			Passed:         ok,
			Error:          tr.Error,
		}
	}

	return &model.ExecutionResult{
		Mode:        model.ExecutionModeTestCases,
		Language:    lang,
		Succeeded:   submitted > 0 && len(results) == submitted && passed == submitted,
		TestResults: results,
		PassedCount: passed,
		TotalTests:  submitted,
	}
}
