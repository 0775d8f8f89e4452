package domain

import "time"

type LikeStatus struct {
	Liked      bool `json:"liked"`
	LikesCount int  `json:"likesCount"`
}

type Comment struct {
	ID         int64     `json:"id"`
	ProductID  int64     `json:"product_id"`
	UserID     int64     `json:"user_id"`
	AuthorName string    `json:"author_name"`
	Body       string    `json:"body"`
	Rating     *int      `json:"rating,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}
