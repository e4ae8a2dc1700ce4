// Package giglinesdk is a minimal Gigline HTTP API client.
package giglinesdk

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

type Client struct {
	BaseURL     string
	APIKey      string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
	}
}

// Mission represents the API mission model (partial).
type Mission struct {
	ID           string   `json:"id"`
	Title        string   `json:"title"`
	CreatorID    string   `json:"creator_id"`
	Category     string   `json:"category"`
	Description  string   `json:"description,omitempty"`
	Tags         []string `json:"tags,omitempty"`
	RewardAmount int64    `json:"reward_amount"`
	Deadline     *string  `json:"deadline,omitempty"`
	Status       string   `json:"status"`
	AgreedPrice  *int64   `json:"agreed_price,omitempty"`
	Offers       []Offer  `json:"offers,omitempty"`
	Urgency      *Urgency `json:"urgency,omitempty"`
}

type Urgency struct {
	Tier            string  `json:"tier"`
	Label           string  `json:"label"`
	ProgressPercent float64 `json:"progress_percent"`
	Segments        int     `json:"segments"`
}

type Offer struct {
	ID         string  `json:"id"`
	MissionID  string  `json:"mission_id"`
	BidderID   string  `json:"bidder_id"`
	Reputation float64 `json:"reputation"`
	Bid        *int64  `json:"bid,omitempty"`
	Message    string  `json:"message,omitempty"`
}

type AcceptedMission struct {
	Mission    Mission `json:"mission"`
	Deadline   *string `json:"deadline,omitempty"`
	AcceptedAt string  `json:"accepted_at"`
}

type Submission struct {
	MissionID  string  `json:"mission_id"`
	Matched    bool    `json:"matched"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason,omitempty"`
	Amount     int64   `json:"amount"`
	NewBalance int64   `json:"new_balance"`
	NewTrust   float64 `json:"new_trust"`
	Retryable  bool    `json:"retryable"`
}

type Account struct {
	ActorID        string  `json:"actor_id"`
	Balance        int64   `json:"balance"`
	LifetimeEarned int64   `json:"lifetime_earned"`
	TrustScore     float64 `json:"trust_score"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// MissionInput is the payload for posting a mission.
type MissionInput struct {
	Title        string   `json:"title"`
	Category     string   `json:"category"`
	Description  string   `json:"description,omitempty"`
	Tags         []string `json:"tags,omitempty"`
	RewardAmount int64    `json:"reward_amount"`
	Deadline     *string  `json:"deadline,omitempty"`
	Days         []string `json:"days,omitempty"`
	TimeStart    string   `json:"time_start,omitempty"`
	TimeEnd      string   `json:"time_end,omitempty"`
}

// FeedOptions filter and order the mission feed.
type FeedOptions struct {
	Category  string
	Tag       string
	MinReward int64
	Search    string
	Sort      string
}

// PostMission posts a mission.
func (c *Client) PostMission(ctx context.Context, in MissionInput) (Mission, error) {
	var resp Mission
	err := c.do(ctx, http.MethodPost, "v0/missions", in, &resp)
	return resp, err
}

// Feed lists open missions.
func (c *Client) Feed(ctx context.Context, opts FeedOptions) ([]Mission, error) {
	q := url.Values{}
	if opts.Category != "" {
		q.Set("category", opts.Category)
	}
	if opts.Tag != "" {
		q.Set("tag", opts.Tag)
	}
	if opts.MinReward > 0 {
		q.Set("min_reward", fmt.Sprintf("%d", opts.MinReward))
	}
	if opts.Search != "" {
		q.Set("q", opts.Search)
	}
	if opts.Sort != "" {
		q.Set("sort", opts.Sort)
	}
	endpoint := "v0/missions"
	if encoded := q.Encode(); encoded != "" {
		endpoint += "?" + encoded
	}
	var resp []Mission
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// GetMission fetches one mission with its offer book.
func (c *Client) GetMission(ctx context.Context, id string) (Mission, error) {
	var resp Mission
	err := c.do(ctx, http.MethodGet, "v0/missions/"+url.PathEscape(id), nil, &resp)
	return resp, err
}

// AcceptMission puts a mission into the caller's working set.
func (c *Client) AcceptMission(ctx context.Context, id string) (AcceptedMission, error) {
	var resp AcceptedMission
	err := c.do(ctx, http.MethodPost, "v0/missions/"+url.PathEscape(id)+"/accept", nil, &resp)
	return resp, err
}

// ListAccepted returns the caller's working set.
func (c *Client) ListAccepted(ctx context.Context) ([]AcceptedMission, error) {
	var resp []AcceptedMission
	err := c.do(ctx, http.MethodGet, "v0/accepted", nil, &resp)
	return resp, err
}

// Withdraw removes a mission from the working set.
func (c *Client) Withdraw(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "v0/accepted/"+url.PathEscape(id), nil, nil)
}

// ListPosted returns the caller's own missions with offers.
func (c *Client) ListPosted(ctx context.Context) ([]Mission, error) {
	var resp []Mission
	err := c.do(ctx, http.MethodGet, "v0/posted", nil, &resp)
	return resp, err
}

// ProposeOffer opens a negotiation. A nil amount proposes at the reward.
func (c *Client) ProposeOffer(ctx context.Context, missionID string, amount *int64, message string) (Offer, error) {
	body := map[string]any{"message": message}
	if amount != nil {
		body["amount"] = *amount
	}
	var resp Offer
	endpoint := "v0/missions/" + url.PathEscape(missionID) + "/offers"
	err := c.do(ctx, http.MethodPost, endpoint, body, &resp)
	return resp, err
}

// RenegotiateOffer revises a standing bid.
func (c *Client) RenegotiateOffer(ctx context.Context, missionID, offerID string, amount int64, message string) (Offer, error) {
	body := map[string]any{"amount": amount, "message": message}
	var resp Offer
	endpoint := "v0/missions/" + url.PathEscape(missionID) + "/offers/" + url.PathEscape(offerID)
	err := c.do(ctx, http.MethodPatch, endpoint, body, &resp)
	return resp, err
}

// AcceptOffer hires the offer's bidder.
func (c *Client) AcceptOffer(ctx context.Context, missionID, offerID string) (Mission, error) {
	var resp Mission
	endpoint := "v0/missions/" + url.PathEscape(missionID) + "/offers/" + url.PathEscape(offerID) + "/accept"
	err := c.do(ctx, http.MethodPost, endpoint, nil, &resp)
	return resp, err
}

// DeclineOffer removes an offer from the book.
func (c *Client) DeclineOffer(ctx context.Context, missionID, offerID string) error {
	endpoint := "v0/missions/" + url.PathEscape(missionID) + "/offers/" + url.PathEscape(offerID)
	return c.do(ctx, http.MethodDelete, endpoint, nil, nil)
}

// SubmitWork uploads a deliverable for verification.
func (c *Client) SubmitWork(ctx context.Context, missionID string, data []byte, mimeType string) (Submission, error) {
	body := map[string]any{
		"data_base64": base64.StdEncoding.EncodeToString(data),
		"mime_type":   mimeType,
	}
	var resp Submission
	endpoint := "v0/missions/" + url.PathEscape(missionID) + "/submission"
	err := c.do(ctx, http.MethodPost, endpoint, body, &resp)
	return resp, err
}

// Account returns the caller's economy standing.
func (c *Client) Account(ctx context.Context) (Account, error) {
	var resp Account
	err := c.do(ctx, http.MethodGet, "v0/account", nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	switch {
	case c.BearerToken != "":
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	case c.APIKey != "":
		req.Header.Set("X-Api-Key", c.APIKey)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
