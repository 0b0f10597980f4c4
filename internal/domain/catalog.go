package domain

import "time"

type Category struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type CategoryRequest struct {
	Name string `json:"name" validate:"required,max=255"`
}

type Item struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	CategoryID  int64     `json:"categoryId"`
	Description string    `json:"description"`
	UserID      int64     `json:"userId"`
	ImageURL    string    `json:"imageUrl"`
	Price       int64     `json:"price"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

type ItemRequest struct {
	Name        string `json:"name" validate:"required,max=255"`
	CategoryID  int64  `json:"categoryId" validate:"required,gt=0"`
	Description string `json:"description" validate:"max=5000"`
	ImageURL    string `json:"imageUrl" validate:"max=255"`
	Price       int64  `json:"price" validate:"gte=0"`
}

type ItemFilter struct {
	Query      string
	CategoryID int64
}
