package rating

import (
	"strings"
	"time"

	"github.com/example/game-marketplace/internal/domain/apperr"
	"github.com/example/game-marketplace/internal/domain/product"
	"github.com/shopspring/decimal"
)

const AggregateType = "Rating"

const (
	MinScore = 1
	MaxScore = 5
)

var (
	ErrRatingNotFound   = apperr.New(apperr.ErrNotFound, "Rating not found")
	ErrInvalidScore     = apperr.New(apperr.ErrValidation, "Please provide a valid rating between 1 and 5")
	ErrPlatformRequired = apperr.New(apperr.ErrValidation, "Platform is required for games")
	ErrNotPurchased     = apperr.New(apperr.ErrUnauthorized, "You can only rate products you have purchased")
	ErrAlreadyRated     = apperr.New(apperr.ErrInvalidState, "You have already rated this product")
)

// Rating is one buyer's score for one product. A buyer rates a product at
// most once and revises that rating afterwards.
type Rating struct {
	ID        string    `json:"id"`
	ProductID string    `json:"product_id"`
	BuyerID   string    `json:"buyer_id"`
	Score     int       `json:"rating"`
	Review    string    `json:"review"`
	Platform  string    `json:"platform,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func validScore(score int) bool {
	return score >= MinScore && score <= MaxScore
}

// New validates a first rating of a product of type t. Games must name the
// platform they were played on.
func New(id, productID, buyerID string, t product.Type, score int, review, platform string, now time.Time) (*Rating, error) {
	if !validScore(score) {
		return nil, ErrInvalidScore
	}
	platform = strings.TrimSpace(platform)
	if t.Category() == product.CategoryGame && platform == "" {
		return nil, ErrPlatformRequired
	}
	return &Rating{
		ID:        id,
		ProductID: productID,
		BuyerID:   buyerID,
		Score:     score,
		Review:    strings.TrimSpace(review),
		Platform:  platform,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// Revise replaces the review and, when score is non-zero, the score.
func (r *Rating) Revise(score int, review string, now time.Time) error {
	if score != 0 {
		if !validScore(score) {
			return ErrInvalidScore
		}
		r.Score = score
	}
	r.Review = strings.TrimSpace(review)
	r.UpdatedAt = now
	return nil
}

// Summary is the average score of a product, rounded to two places.
type Summary struct {
	Average decimal.Decimal `json:"average"`
	Count   int             `json:"count"`
}

func Summarize(ratings []*Rating) Summary {
	if len(ratings) == 0 {
		return Summary{Average: decimal.Zero}
	}
	sum := 0
	for _, r := range ratings {
		sum += r.Score
	}
	avg := decimal.NewFromInt(int64(sum)).Div(decimal.NewFromInt(int64(len(ratings)))).Round(2)
	return Summary{Average: avg, Count: len(ratings)}
}
