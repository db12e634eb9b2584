// Package intent turns free-form chat messages into structured bundle
// requests, using an LLM extractor with a deterministic regex fallback.
package intent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/tripdeck/concierge/internal/schema"
)

const defaultBudget = 2000

// Intent is the structured reading of one chat message. Zero values mean
// the message did not specify the field.
type Intent struct {
	Destination   string     `json:"destination"`
	Origin        string     `json:"origin"`
	Budget        float64    `json:"budget"`
	DepartureDate *time.Time `json:"departure_date"`
	ReturnDate    *time.Time `json:"return_date"`
	Keywords      []string   `json:"keywords"`
}

// Extractor calls the local model server, falling back to regex parsing
// when the model is unreachable or returns garbage.
type Extractor struct {
	client  *http.Client
	baseURL string
	model   string
	now     func() time.Time
}

// NewExtractor builds an extractor against an Ollama-compatible endpoint.
func NewExtractor(baseURL, model string, timeout time.Duration) *Extractor {
	return &Extractor{
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
		model:   model,
		now:     time.Now,
	}
}

// WithClock overrides the clock, used by tests.
func (e *Extractor) WithClock(now func() time.Time) *Extractor {
	e.now = now
	return e
}

// Extract reads the message's travel intent. Model fields win; anything the
// model leaves empty is filled from the regex pass over the same message.
func (e *Extractor) Extract(ctx context.Context, message string) Intent {
	fallback := ParseMessage(message, e.now())

	extracted, err := e.generate(ctx, message)
	if err != nil {
		log.Warn().Err(err).Msg("intent extractor unavailable, using fallback parse")
		return fallback
	}

	if extracted.Destination == "" {
		extracted.Destination = fallback.Destination
	}
	if extracted.Origin == "" {
		extracted.Origin = fallback.Origin
	}
	if extracted.Budget <= 0 {
		extracted.Budget = fallback.Budget
	}
	if extracted.DepartureDate == nil {
		extracted.DepartureDate = fallback.DepartureDate
	}
	if extracted.ReturnDate == nil {
		extracted.ReturnDate = fallback.ReturnDate
	}
	if len(extracted.Keywords) == 0 {
		extracted.Keywords = fallback.Keywords
	}
	return extracted
}

type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Format string `json:"format"`
	Stream bool   `json:"stream"`
}

type generateResponse struct {
	Response string `json:"response"`
}

const promptTemplate = `Extract travel intent from this message as JSON with keys
destination (IATA code), origin (IATA code), budget (number),
departure_date (RFC3339), return_date (RFC3339), keywords (array of strings).
Use null for anything the message does not state.

Message: %s`

func (e *Extractor) generate(ctx context.Context, message string) (Intent, error) {
	body, err := json.Marshal(generateRequest{
		Model:  e.model,
		Prompt: fmt.Sprintf(promptTemplate, message),
		Format: "json",
		Stream: false,
	})
	if err != nil {
		return Intent{}, fmt.Errorf("failed to marshal generate request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return Intent{}, fmt.Errorf("failed to build generate request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return Intent{}, fmt.Errorf("generate call failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Intent{}, fmt.Errorf("generate call returned %d", resp.StatusCode)
	}

	var envelope generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return Intent{}, fmt.Errorf("failed to decode generate response: %w", err)
	}

	var intent Intent
	if err := json.Unmarshal([]byte(envelope.Response), &intent); err != nil {
		return Intent{}, fmt.Errorf("model returned non-JSON intent: %w", err)
	}
	return intent, nil
}

// ToRequest reconstructs a bundle request from the intent. Both a
// destination and a future departure date are required; the extractor's
// return date is preferred when present, and a missing one lets the
// request default to a three-day trip.
func (i Intent) ToRequest(now time.Time) (schema.BundleRequest, error) {
	if i.Destination == "" {
		return schema.BundleRequest{}, errors.New("message does not name a destination")
	}
	if i.DepartureDate == nil || !i.DepartureDate.After(now) {
		return schema.BundleRequest{}, errors.New("message does not give a departure date")
	}
	departure := *i.DepartureDate

	var ret *time.Time
	if i.ReturnDate != nil && i.ReturnDate.After(departure) {
		ret = i.ReturnDate
	}

	budget := i.Budget
	if budget <= 0 {
		budget = defaultBudget
	}

	req := schema.BundleRequest{
		Origin:        i.Origin,
		Destination:   i.Destination,
		DepartureDate: departure,
		ReturnDate:    ret,
		Budget:        budget,
		Preferences:   keywordPreferences(i.Keywords),
	}
	if err := req.Validate(); err != nil {
		return schema.BundleRequest{}, err
	}
	return req, nil
}
