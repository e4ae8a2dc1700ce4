package server

import (
	"gigline/internal/domain"
	"gigline/internal/engine"
	"gigline/internal/urgency"
)

// Request payloads

type CreateMissionRequest struct {
	Title        string   `json:"title"`
	Category     string   `json:"category" enum:"written_work,project_work,guidance,other"`
	Description  *string  `json:"description,omitempty"`
	Tags         []string `json:"tags,omitempty"`
	RewardAmount int64    `json:"reward_amount"`
	Deadline     *string  `json:"deadline,omitempty" format:"date-time"`
	Days         []string `json:"days,omitempty"`
	TimeStart    *string  `json:"time_start,omitempty"`
	TimeEnd      *string  `json:"time_end,omitempty"`
}

type ProposeOfferRequest struct {
	Amount  *int64  `json:"amount,omitempty"`
	Message *string `json:"message,omitempty"`
}

type RenegotiateOfferRequest struct {
	Amount  int64   `json:"amount"`
	Message *string `json:"message,omitempty"`
}

type SubmitWorkRequest struct {
	// DataBase64 is the deliverable, base64-encoded.
	DataBase64 string `json:"data_base64"`
	MimeType   string `json:"mime_type,omitempty"`
}

// Response payloads

type OfferResponse struct {
	ID         string  `json:"id"`
	MissionID  string  `json:"mission_id"`
	BidderID   string  `json:"bidder_id"`
	Reputation float64 `json:"reputation"`
	Bid        *int64  `json:"bid,omitempty"`
	Message    string  `json:"message,omitempty"`
	CreatedAt  string  `json:"created_at"`
	UpdatedAt  string  `json:"updated_at"`
}

type MissionResponse struct {
	ID                 string           `json:"id"`
	Title              string           `json:"title"`
	CreatorID          string           `json:"creator_id"`
	Category           string           `json:"category"`
	Description        string           `json:"description,omitempty"`
	Tags               []string         `json:"tags,omitempty"`
	RewardAmount       int64            `json:"reward_amount"`
	PostedAt           string           `json:"posted_at"`
	Deadline           *string          `json:"deadline,omitempty"`
	Status             string           `json:"status"`
	AssignedProviderID *string          `json:"assigned_provider_id,omitempty"`
	AgreedPrice        *int64           `json:"agreed_price,omitempty"`
	TimeSlots          string           `json:"time_slots,omitempty"`
	Offers             []OfferResponse  `json:"offers,omitempty"`
	Urgency            *UrgencyResponse `json:"urgency,omitempty"`
}

type UrgencyResponse struct {
	Tier            string  `json:"tier" enum:"none,stable,warning,critical,expired"`
	Label           string  `json:"label"`
	ProgressPercent float64 `json:"progress_percent"`
	Segments        int     `json:"segments"`
}

type AcceptedMissionResponse struct {
	Mission    MissionResponse `json:"mission"`
	Deadline   *string         `json:"deadline,omitempty"`
	AcceptedAt string          `json:"accepted_at"`
}

type SubmissionResponse struct {
	MissionID  string  `json:"mission_id"`
	Matched    bool    `json:"matched"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason,omitempty"`
	Amount     int64   `json:"amount"`
	NewBalance int64   `json:"new_balance"`
	NewTrust   float64 `json:"new_trust"`
	Retryable  bool    `json:"retryable"`
}

type AccountResponse struct {
	ActorID        string  `json:"actor_id"`
	Balance        int64   `json:"balance"`
	LifetimeEarned int64   `json:"lifetime_earned"`
	TrustScore     float64 `json:"trust_score"`
}

type TransactionResponse struct {
	ID        string `json:"id"`
	Amount    int64  `json:"amount"`
	Memo      string `json:"memo,omitempty"`
	CreatedAt string `json:"created_at"`
}

type TrustEntryResponse struct {
	ID          string  `json:"id"`
	ActionType  string  `json:"action_type"`
	Delta       float64 `json:"delta"`
	Description string  `json:"description,omitempty"`
	CreatedAt   string  `json:"created_at"`
}

type EventResponse struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts"`
	Type       string `json:"type"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload_json,omitempty"`
}

func offerResponse(o domain.Offer) OfferResponse {
	return OfferResponse{
		ID:         o.ID,
		MissionID:  o.MissionID,
		BidderID:   o.BidderID,
		Reputation: o.Reputation,
		Bid:        o.Bid,
		Message:    o.Message,
		CreatedAt:  o.CreatedAt,
		UpdatedAt:  o.UpdatedAt,
	}
}

func missionResponse(m domain.Mission, u *urgency.Classification) MissionResponse {
	resp := MissionResponse{
		ID:                 m.ID,
		Title:              m.Title,
		CreatorID:          m.CreatorID,
		Category:           string(m.Category),
		Description:        m.Description,
		Tags:               m.Tags,
		RewardAmount:       m.RewardAmount,
		PostedAt:           m.PostedAt,
		Deadline:           m.Deadline,
		Status:             string(m.Status),
		AssignedProviderID: m.AssignedProviderID,
		AgreedPrice:        m.AgreedPrice,
		TimeSlots:          m.TimeSlots,
	}
	for _, o := range m.Offers {
		resp.Offers = append(resp.Offers, offerResponse(o))
	}
	if u != nil {
		resp.Urgency = &UrgencyResponse{
			Tier:            string(u.Tier),
			Label:           u.Label,
			ProgressPercent: u.ProgressPercent,
			Segments:        u.Segments(),
		}
	}
	return resp
}

func acceptedResponse(am domain.AcceptedMission, u *urgency.Classification) AcceptedMissionResponse {
	return AcceptedMissionResponse{
		Mission:    missionResponse(am.Mission, u),
		Deadline:   am.Deadline,
		AcceptedAt: am.AcceptedAt,
	}
}

func submissionResponse(r engine.SubmissionResult) SubmissionResponse {
	return SubmissionResponse{
		MissionID:  r.MissionID,
		Matched:    r.Matched,
		Confidence: r.Verdict.Confidence,
		Reason:     r.Verdict.Reason,
		Amount:     r.Amount,
		NewBalance: r.NewBalance,
		NewTrust:   r.NewTrust,
		Retryable:  r.Retryable,
	}
}

func accountResponse(a domain.Account) AccountResponse {
	return AccountResponse{
		ActorID:        a.ActorID,
		Balance:        a.Balance,
		LifetimeEarned: a.LifetimeEarned,
		TrustScore:     a.TrustScore,
	}
}

func eventResponse(e domain.Event) EventResponse {
	return EventResponse{
		ID:         e.ID,
		TS:         e.TS,
		Type:       e.Type,
		EntityKind: e.EntityKind,
		EntityID:   e.EntityID,
		ActorID:    e.ActorID,
		Payload:    e.Payload,
	}
}

func stringOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
