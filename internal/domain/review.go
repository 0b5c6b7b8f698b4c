package domain

import "time"

// Review scores are integers in [ScoreMin, ScoreMax].
const (
	ScoreMin = 1
	ScoreMax = 10
)

// Review is unique per (TitleID, AuthorID).
type Review struct {
	ReviewID string    `json:"id" dynamodbav:"review_id"`
	TitleID  string    `json:"title_id" dynamodbav:"title_id"`
	AuthorID string    `json:"-" dynamodbav:"author_id"`
	Author   string    `json:"author" dynamodbav:"author"`
	Text     string    `json:"text" dynamodbav:"text"`
	Score    int       `json:"score" dynamodbav:"score"`
	PubDate  time.Time `json:"pub_date" dynamodbav:"pub_date"`
}

type ReviewInput struct {
	Text  string `json:"text" validate:"required"`
	Score int    `json:"score"`
}

type UpdateReviewRequest struct {
	Text  *string `json:"text" validate:"omitempty,min=1"`
	Score *int    `json:"score"`
}

type Comment struct {
	CommentID string    `json:"id" dynamodbav:"comment_id"`
	ReviewID  string    `json:"review_id" dynamodbav:"review_id"`
	TitleID   string    `json:"-" dynamodbav:"title_id"`
	AuthorID  string    `json:"-" dynamodbav:"author_id"`
	Author    string    `json:"author" dynamodbav:"author"`
	Text      string    `json:"text" dynamodbav:"text"`
	PubDate   time.Time `json:"pub_date" dynamodbav:"pub_date"`
}

type CommentInput struct {
	Text string `json:"text" validate:"required"`
}
