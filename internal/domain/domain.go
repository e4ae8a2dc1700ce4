package domain

// Category is the closed set of mission categories.
type Category string

const (
	CategoryWrittenWork Category = "written_work"
	CategoryProjectWork Category = "project_work"
	CategoryGuidance    Category = "guidance"
	CategoryOther       Category = "other"
)

// Categories lists every valid category, in display order.
func Categories() []Category {
	return []Category{CategoryWrittenWork, CategoryProjectWork, CategoryGuidance, CategoryOther}
}

// Valid reports whether c is a member of the closed category set.
func (c Category) Valid() bool {
	switch c {
	case CategoryWrittenWork, CategoryProjectWork, CategoryGuidance, CategoryOther:
		return true
	}
	return false
}

// Status is the mission lifecycle status. Assignment is a requester-side
// property; provider acceptance does not change it.
type Status string

const (
	StatusOpen     Status = "open"
	StatusAssigned Status = "assigned"
)

// SortOrder selects the feed ordering.
type SortOrder string

const (
	SortRewardDesc  SortOrder = "reward_desc"
	SortRewardAsc   SortOrder = "reward_asc"
	SortDateDesc    SortOrder = "date_desc"
	SortDeadlineAsc SortOrder = "deadline_asc"
)

// Valid reports whether s is a known sort order.
func (s SortOrder) Valid() bool {
	switch s {
	case SortRewardDesc, SortRewardAsc, SortDateDesc, SortDeadlineAsc:
		return true
	}
	return false
}

// OfferMode distinguishes the two proposal modes: negotiate enforces the
// reward floor, renegotiate does not.
type OfferMode string

const (
	ModeNegotiate   OfferMode = "negotiate"
	ModeRenegotiate OfferMode = "renegotiate"
)

// Mission is a postable, biddable unit of paid work. Reward amounts are
// currency-agnostic minor units.
type Mission struct {
	ID                 string   `json:"id"`
	Title              string   `json:"title"`
	CreatorID          string   `json:"creator_id"`
	Category           Category `json:"category" enum:"written_work,project_work,guidance,other"`
	Description        string   `json:"description,omitempty"`
	Tags               []string `json:"tags,omitempty"`
	RewardAmount       int64    `json:"reward_amount"`
	PostedAt           string   `json:"posted_at" format:"date-time"`
	Deadline           *string  `json:"deadline,omitempty" format:"date-time"`
	Status             Status   `json:"status" enum:"open,assigned"`
	AssignedProviderID *string  `json:"assigned_provider_id,omitempty"`
	AgreedPrice        *int64   `json:"agreed_price,omitempty"`
	TimeSlots          string   `json:"time_slots,omitempty"`
	Offers             []Offer  `json:"offers,omitempty"`
}

// Offer is a provider's bid against an open mission. Bid is nil when the
// provider proposes at the mission reward.
type Offer struct {
	ID         string  `json:"id"`
	MissionID  string  `json:"mission_id"`
	BidderID   string  `json:"bidder_id"`
	Reputation float64 `json:"reputation"`
	Bid        *int64  `json:"bid,omitempty"`
	Message    string  `json:"message,omitempty"`
	CreatedAt  string  `json:"created_at" format:"date-time"`
	UpdatedAt  string  `json:"updated_at" format:"date-time"`
}

// Price returns the effective amount of the offer, defaulting to the
// mission reward when no explicit bid was made.
func (o Offer) Price(missionReward int64) int64 {
	if o.Bid != nil {
		return *o.Bid
	}
	return missionReward
}

// AcceptedMission is a mission promoted into an actor's working set. It is a
// projection of the canonical mission record plus the deadline snapshot bound
// at acceptance time, not an independent copy.
type AcceptedMission struct {
	Mission    Mission `json:"mission"`
	ActorID    string  `json:"actor_id"`
	Deadline   *string `json:"deadline,omitempty" format:"date-time"`
	AcceptedAt string  `json:"accepted_at" format:"date-time"`
}

// Account is an actor's economy standing.
type Account struct {
	ActorID        string  `json:"actor_id"`
	Balance        int64   `json:"balance"`
	LifetimeEarned int64   `json:"lifetime_earned"`
	TrustScore     float64 `json:"trust_score"`
	UpdatedAt      string  `json:"updated_at" format:"date-time"`
}

// Transaction records a single balance movement.
type Transaction struct {
	ID        string `json:"id"`
	ActorID   string `json:"actor_id"`
	Amount    int64  `json:"amount"`
	Memo      string `json:"memo,omitempty"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

// TrustEntry records one reputation adjustment.
type TrustEntry struct {
	ID          string  `json:"id"`
	ActorID     string  `json:"actor_id"`
	ActionType  string  `json:"action_type"`
	Delta       float64 `json:"delta"`
	Description string  `json:"description,omitempty"`
	CreatedAt   string  `json:"created_at" format:"date-time"`
}

// Event is an append-only log entry.
type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload_json"`
}

// APIKey authenticates an actor on the HTTP API.
type APIKey struct {
	ID        string `json:"id"`
	ActorID   string `json:"actor_id"`
	Name      string `json:"name,omitempty"`
	KeyHash   string `json:"key_hash"`
	CreatedAt string `json:"created_at" format:"date-time"`
}
