package domain

import "time"

const TitleNameMaxLen = 256

type Title struct {
	TitleID     string    `json:"id" dynamodbav:"title_id"`
	Name        string    `json:"name" dynamodbav:"name"`
	Year        int       `json:"year" dynamodbav:"year"`
	Description string    `json:"description" dynamodbav:"description"`
	Category    string    `json:"category,omitempty" dynamodbav:"category"`
	Genres      []string  `json:"genre" dynamodbav:"genres"`
	CreatedAt   time.Time `json:"-" dynamodbav:"created_at"`
	UpdatedAt   time.Time `json:"-" dynamodbav:"updated_at"`
}

// TitleView is a Title as returned to readers, with its derived rating.
// Rating is nil, and serialised as null, when the title has no reviews.
type TitleView struct {
	Title
	Rating *float64 `json:"rating"`
}

type TitleInput struct {
	Name        string   `json:"name" validate:"required,max=256"`
	Year        int      `json:"year" validate:"required"`
	Description string   `json:"description"`
	Category    string   `json:"category" validate:"omitempty,max=50"`
	Genres      []string `json:"genre" validate:"dive,max=50"`
}

type UpdateTitleRequest struct {
	Name        *string   `json:"name" validate:"omitempty,max=256"`
	Year        *int      `json:"year"`
	Description *string   `json:"description"`
	Category    *string   `json:"category" validate:"omitempty,max=50"`
	Genres      *[]string `json:"genre"`
}
