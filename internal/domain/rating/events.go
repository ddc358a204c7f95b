package rating

import "time"

const (
	EventProductRated  = "ProductRated"
	EventRatingRevised = "RatingRevised"
	EventRatingDeleted = "RatingDeleted"
)

type ProductRated struct {
	RatingID  string    `json:"rating_id"`
	ProductID string    `json:"product_id"`
	BuyerID   string    `json:"buyer_id"`
	Score     int       `json:"rating"`
	Platform  string    `json:"platform,omitempty"`
	RatedAt   time.Time `json:"rated_at"`
}

type RatingRevised struct {
	RatingID  string    `json:"rating_id"`
	ProductID string    `json:"product_id"`
	Score     int       `json:"rating"`
	RevisedAt time.Time `json:"revised_at"`
}

type RatingDeleted struct {
	RatingID  string    `json:"rating_id"`
	ProductID string    `json:"product_id"`
	BuyerID   string    `json:"buyer_id"`
	DeletedAt time.Time `json:"deleted_at"`
}
