package models

import (
	"encoding/json"
	"time"
)

// Account holds login credentials; its ID is shared by the user's profile row
type Account struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// User represents a Lunchly profile
type User struct {
	ID             string     `json:"id"`
	Name           string     `json:"name"`
	Bio            string     `json:"bio"`
	Interests      []string   `json:"interests"`
	Lat            *float64   `json:"lat"`
	Lon            *float64   `json:"lon"`
	IsAvailable    bool       `json:"is_available"`
	AvailableUntil *time.Time `json:"available_until"`
	AvailableFrom  *time.Time `json:"available_from,omitempty"`
	AvailableTo    *time.Time `json:"available_to,omitempty"`
	AvatarURL      *string    `json:"avatar_url"`
	Age            *int       `json:"age,omitempty"`
	Gender         *string    `json:"gender,omitempty"`
	PushToken      *string    `json:"-"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// Location returns the user's coordinate when both parts are known
func (u *User) Location() (Coordinate, bool) {
	if u.Lat == nil || u.Lon == nil {
		return Coordinate{}, false
	}
	return Coordinate{Lat: *u.Lat, Lon: *u.Lon}, true
}

// Coordinate is a latitude/longitude pair in degrees
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// MatchStatus is the lifecycle state of a lunch proposal
type MatchStatus string

const (
	MatchPending   MatchStatus = "pending"
	MatchAccepted  MatchStatus = "accepted"
	MatchDeclined  MatchStatus = "declined"
	MatchCompleted MatchStatus = "completed"
)

// FeedbackRating is the verdict a participant leaves after lunch
type FeedbackRating string

const (
	RatingPositive FeedbackRating = "positive"
	RatingNegative FeedbackRating = "negative"
)

// Feedback is one participant's post-lunch review
type Feedback struct {
	Rating    FeedbackRating `json:"rating"`
	Comment   string         `json:"comment,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// Match represents a lunch proposal between two users.
// UserA always holds the lexicographically smaller user ID.
type Match struct {
	ID                 string      `json:"id"`
	UserA              string      `json:"user_a"`
	UserB              string      `json:"user_b"`
	ProposedBy         string      `json:"proposed_by"`
	Status             MatchStatus `json:"status"`
	SelectedRestaurant *Restaurant `json:"selected_restaurant"`
	MeetingTime        *time.Time  `json:"meeting_time"`
	FeedbackA          *Feedback   `json:"feedback_a"`
	FeedbackB          *Feedback   `json:"feedback_b"`
	CreatedAt          time.Time   `json:"created_at"`
	UpdatedAt          time.Time   `json:"updated_at"`
}

// HasParticipant reports whether userID occupies either slot
func (m *Match) HasParticipant(userID string) bool {
	return userID != "" && (m.UserA == userID || m.UserB == userID)
}

// OtherParticipant returns the counterpart of userID
func (m *Match) OtherParticipant(userID string) string {
	if m.UserA == userID {
		return m.UserB
	}
	return m.UserA
}

// MatchWithUser pairs a match with the counterpart's profile
type MatchWithUser struct {
	*Match
	OtherUser *User `json:"other_user"`
}

// Message is a chat line inside one match
type Message struct {
	ID        string    `json:"id"`
	MatchID   string    `json:"match_id"`
	SenderID  string    `json:"sender_id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Restaurant is a normalized eatery candidate
type Restaurant struct {
	PlaceID          string          `json:"place_id"`
	Name             string          `json:"name"`
	Address          string          `json:"address"`
	Rating           *float64        `json:"rating"`
	PriceLevel       *int            `json:"price_level"`
	CuisineType      string          `json:"cuisine_type"`
	Lat              float64         `json:"lat"`
	Lon              float64         `json:"lon"`
	PhotoReference   *string         `json:"photo_reference"`
	UserRatingsTotal int             `json:"user_ratings_total"`
	OpeningHours     json.RawMessage `json:"opening_hours,omitempty"`
	Distance         float64         `json:"distance"`
}

// PlaceDetails is the richer record fetched for a single place
type PlaceDetails struct {
	ID               string          `json:"id"`
	Name             string          `json:"name"`
	Address          string          `json:"address"`
	GoogleMapsURI    *string         `json:"google_maps_uri"`
	Phone            *string         `json:"phone"`
	Website          *string         `json:"website"`
	Rating           *float64        `json:"rating"`
	UserRatingsTotal int             `json:"user_ratings_total"`
	PriceLevel       *int            `json:"price_level"`
	OpeningHours     json.RawMessage `json:"opening_hours,omitempty"`
	PhotoReference   *string         `json:"photo_reference"`
}

// Suggestion is a lightweight autocomplete entry
type Suggestion struct {
	ID        string `json:"id"`
	Primary   string `json:"primary"`
	Secondary string `json:"secondary"`
	QueryText string `json:"query_text"`
}
