// Package tokens provides best-effort token-usage estimation for
// preview/execute payloads, adapted from the teacher's token_estimator.go
// but scoped to a reusable Estimator type rather than package globals.
package tokens

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sync"

	tiktoken "github.com/pkoukk/tiktoken-go"
)

// Estimator counts tokens for a given text.
type Estimator interface {
	Model() string
	Count(text string) (int, error)
}

type tiktokenEstimator struct {
	model string
	mu    sync.Mutex
	enc   *tiktoken.Tiktoken
}

func (e *tiktokenEstimator) Model() string { return e.model }

func (e *tiktokenEstimator) Count(text string) (int, error) {
	// tiktoken-go encoders are not documented as goroutine-safe; protect just in case.
	e.mu.Lock()
	defer e.mu.Unlock()

	toks := e.enc.Encode(text, nil, nil)
	return len(toks), nil
}

// NewEstimator constructs a tiktoken-backed Estimator for model, defaulting
// to cl100k_base when model is empty.
func NewEstimator(model string) (Estimator, error) {
	if model == "" {
		model = "cl100k_base"
	}
	enc, err := tiktoken.GetEncoding(model)
	if err != nil {
		return nil, fmt.Errorf("tokens: get encoding %q: %w", model, err)
	}
	return &tiktokenEstimator{model: model, enc: enc}, nil
}

// Usage annotates a preview/execute payload with estimated token cost.
type Usage struct {
	InputEstimated  int    `json:"input_estimated"`
	OutputEstimated int    `json:"output_estimated"`
	TotalEstimated  int    `json:"total_estimated"`
	Model           string `json:"model,omitempty"`
}

// Efficiency holds derived token-efficiency metrics for a completed query.
type Efficiency struct {
	TokensPerRow    float64 `json:"tokens_per_row,omitempty"`
	IOEfficiency    float64 `json:"io_efficiency,omitempty"`
	CostEstimateUSD float64 `json:"cost_estimate_usd,omitempty"`
}

// Pricing per 1M tokens (GPT-4o as reference).
const (
	costPerMillionInputTokens  = 2.50
	costPerMillionOutputTokens = 10.00
)

// CalculateEfficiency computes token-efficiency metrics. Returns nil if
// there is no meaningful data (zero rows and zero input tokens).
func CalculateEfficiency(inputTokens, outputTokens, rowCount int) *Efficiency {
	if rowCount == 0 && inputTokens == 0 {
		return nil
	}

	eff := &Efficiency{}

	if rowCount > 0 {
		eff.TokensPerRow = math.Round(float64(outputTokens)/float64(rowCount)*100) / 100
	}
	if inputTokens > 0 {
		eff.IOEfficiency = math.Round(float64(outputTokens)/float64(inputTokens)*100) / 100
	}

	inputCost := float64(inputTokens) / 1_000_000 * costPerMillionInputTokens
	outputCost := float64(outputTokens) / 1_000_000 * costPerMillionOutputTokens
	eff.CostEstimateUSD = math.Round((inputCost+outputCost)*1_000_000) / 1_000_000

	return eff
}

// Keep estimation bounded so a huge payload doesn't balloon memory use.
// This only affects *estimation* accuracy, never tool behavior.
const maxEstimationBytes = 1 << 20 // 1 MiB

var errLimitExceeded = errors.New("tokens: size limit exceeded during estimation")

type limitedWriter struct {
	buf   *bytes.Buffer
	limit int
}

func (w *limitedWriter) Write(p []byte) (int, error) {
	if w.buf.Len()+len(p) > w.limit {
		remaining := w.limit - w.buf.Len()
		if remaining > 0 {
			w.buf.Write(p[:remaining])
		}
		return len(p), errLimitExceeded
	}
	return w.buf.Write(p)
}

// EstimateValue JSON-encodes v (bounded) and counts tokens in the result
// using est. A nil Estimator disables estimation and always returns 0.
func EstimateValue(est Estimator, v any) (int, error) {
	if est == nil {
		return 0, nil
	}

	buf := &bytes.Buffer{}
	lw := &limitedWriter{buf: buf, limit: maxEstimationBytes}
	enc := json.NewEncoder(lw)

	err := enc.Encode(v)
	if errors.Is(err, errLimitExceeded) {
		return maxEstimationBytes / 4, nil
	}
	if err != nil {
		return 0, err
	}

	return est.Count(buf.String())
}
