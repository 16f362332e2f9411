package judge

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/acadex/examroom-backend/internal/model"
	"github.com/rs/zerolog"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, 2*time.Second, zerolog.Nop()), srv
}

func TestRunRejectsUnsupportedLanguageBeforeNetworkCall(t *testing.T) {
	called := false
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
	})

	_, err := client.Run(context.Background(), RunRequest{Code: "print(1)", Language: "brainfuck"})
	if !errors.Is(err, ErrUnsupportedLanguage) {
		t.Fatalf("err = %v, want ErrUnsupportedLanguage", err)
	}
	if called {
		t.Fatal("judge must not be called for an unsupported language")
	}
}

func TestRunAdHocMode(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		json.NewDecoder(r.Body).Decode(&req)
		if req["customInput"] != "7" {
			t.Errorf("customInput = %v, want 7", req["customInput"])
		}
		json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"output":  "49\n",
			"status":  "Accepted",
			"time":    "0.01",
			"memory":  "3120",
		})
	})

	res, err := client.Run(context.Background(), RunRequest{
		Code:        "n=int(input());print(n*n)",
		Language:    "Python", // case-insensitive
		CustomInput: "7",
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Mode != model.ExecutionModeAdHoc || !res.Succeeded || res.Output != "49\n" {
		t.Fatalf("unexpected result: %+v", res)
	}
	if res.TransportError {
		t.Fatal("successful run must not carry the transport-error marker")
	}
}

func TestRunTestCaseModeTrailingNewlineTolerant(t *testing.T) {
	// Scenario: testCases=[{input:"2 3", output:"5"}], code prints "5\n".
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"testResults": []map[string]any{
				{"passed": false, "input": "2 3", "expectedOutput": "5", "actualOutput": "5\n"},
			},
			"passedCount": 0,
			"totalTests":  1,
		})
	})

	res, err := client.Run(context.Background(), RunRequest{
		Code:     "a,b=map(int,input().split());print(a+b)",
		Language: "python",
		TestCases: []model.TestCase{
			{Input: "2 3", ExpectedOutput: "5"},
		},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.TotalTests != 1 || res.PassedCount != 1 {
		t.Fatalf("passed/total = %d/%d, want 1/1", res.PassedCount, res.TotalTests)
	}
	if !res.TestResults[0].Passed || !res.Succeeded {
		t.Fatalf("trailing newline must not fail the case: %+v", res.TestResults[0])
	}
}

func TestRunTestCaseModeAggregateFailure(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"testResults": []map[string]any{
				{"input": "1", "expectedOutput": "2", "actualOutput": "2"},
				{"input": "2", "expectedOutput": "4", "actualOutput": "5"},
				{"input": "3", "expectedOutput": "6", "actualOutput": "", "error": "runtime error: division by zero"},
			},
			"passedCount": 1,
			"totalTests":  3,
		})
	})

	res, err := client.Run(context.Background(), RunRequest{
		Code:     "...",
		Language: "go",
		TestCases: []model.TestCase{
			{Input: "1", ExpectedOutput: "2"},
			{Input: "2", ExpectedOutput: "4"},
			{Input: "3", ExpectedOutput: "6"},
		},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Succeeded {
		t.Fatal("aggregate must fail when any case fails")
	}
	if res.PassedCount != 1 {
		t.Fatalf("PassedCount = %d, want 1", res.PassedCount)
	}
	if res.TestResults[2].Passed || res.TestResults[2].Error == "" {
		t.Fatalf("errored case must fail with the error surfaced: %+v", res.TestResults[2])
	}
}

func TestRunTestCaseModeMissingResultsFailAggregate(t *testing.T) {
	// The judge answers for only one of the two submitted cases.
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"testResults": []map[string]any{
				{"input": "1", "expectedOutput": "2", "actualOutput": "2"},
			},
			"passedCount": 1,
			"totalTests":  1,
		})
	})

	res, err := client.Run(context.Background(), RunRequest{
		Code:     "...",
		Language: "python",
		TestCases: []model.TestCase{
			{Input: "1", ExpectedOutput: "2"},
			{Input: "2", ExpectedOutput: "4"},
		},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Succeeded {
		t.Fatal("aggregate must fail when the judge returns fewer results than cases submitted")
	}
	if res.TotalTests != 2 {
		t.Fatalf("TotalTests = %d, want the submitted count 2", res.TotalTests)
	}
	if res.PassedCount != 1 {
		t.Fatalf("PassedCount = %d, want 1", res.PassedCount)
	}
}

func TestRunNon2xxIsTransportFailure(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		// A body that would parse as success must still be ignored.
		json.NewEncoder(w).Encode(map[string]any{"success": true, "output": "ok"})
	})

	res, err := client.Run(context.Background(), RunRequest{Code: "x", Language: "c", CustomInput: "in"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Succeeded || !res.TransportError {
		t.Fatalf("non-2xx must be a transport-classified failure: %+v", res)
	}
}

func TestRunNetworkFailureIsTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // connection refused from here on
	client := NewClient(srv.URL, time.Second, zerolog.Nop())

	res, err := client.Run(context.Background(), RunRequest{Code: "x", Language: "cpp"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Succeeded || !res.TransportError {
		t.Fatalf("network failure must be a transport-classified failure: %+v", res)
	}
	if res.Output == "" {
		t.Fatal("transport failure must not be silently empty output")
	}
}

func TestRunTimeoutIsTransportFailure(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
	})
	client.httpc.Timeout = 50 * time.Millisecond

	res, err := client.Run(context.Background(), RunRequest{Code: "x", Language: "java"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Succeeded || !res.TransportError {
		t.Fatalf("timeout must be a transport-classified failure: %+v", res)
	}
}
