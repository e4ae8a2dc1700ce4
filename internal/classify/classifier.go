// Package classify wraps the external artifact classifier used to verify
// submitted work. The classifier itself is opaque; this package only models
// the call and its failure mode.
package classify

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ErrUnavailable marks network or timeout failures talking to the
// classifier. Callers must not mutate any state when they see it.
var ErrUnavailable = errors.New("classifier unavailable")

// Artifact is the submitted work product.
type Artifact struct {
	Bytes    []byte
	MimeType string
}

// MatchContext carries what the work was supposed to be.
type MatchContext struct {
	Title       string
	Description string
}

// Verdict is the classifier's judgement.
type Verdict struct {
	IsMatch    bool    `json:"is_match"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason"`
}

type Classifier interface {
	Classify(ctx context.Context, artifact Artifact, mc MatchContext) (Verdict, error)
}

// HTTPClassifier posts artifacts to a remote classification endpoint.
type HTTPClassifier struct {
	Endpoint string
	Client   *http.Client
}

func NewHTTP(endpoint string, timeout time.Duration) *HTTPClassifier {
	return &HTTPClassifier{
		Endpoint: endpoint,
		Client:   &http.Client{Timeout: timeout},
	}
}

type classifyRequest struct {
	DataBase64  string `json:"data_base64"`
	MimeType    string `json:"mime_type"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

func (c *HTTPClassifier) Classify(ctx context.Context, artifact Artifact, mc MatchContext) (Verdict, error) {
	if c.Endpoint == "" {
		return Verdict{}, fmt.Errorf("no endpoint configured: %w", ErrUnavailable)
	}
	payload, err := json.Marshal(classifyRequest{
		DataBase64:  base64.StdEncoding.EncodeToString(artifact.Bytes),
		MimeType:    artifact.MimeType,
		Title:       mc.Title,
		Description: mc.Description,
	})
	if err != nil {
		return Verdict{}, fmt.Errorf("marshal classify request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return Verdict{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	client := c.Client
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	res, err := client.Do(req)
	if err != nil {
		return Verdict{}, fmt.Errorf("classify call failed: %w", ErrUnavailable)
	}
	defer res.Body.Close()
	if res.StatusCode >= 500 {
		return Verdict{}, fmt.Errorf("classifier returned %d: %w", res.StatusCode, ErrUnavailable)
	}
	if res.StatusCode != http.StatusOK {
		return Verdict{}, fmt.Errorf("classifier rejected request with status %d", res.StatusCode)
	}
	var v Verdict
	if err := json.NewDecoder(res.Body).Decode(&v); err != nil {
		return Verdict{}, fmt.Errorf("decode classifier response: %w", err)
	}
	return v, nil
}
