package models

import "time"

type Category struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

type Product struct {
	ID          int        `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Price       float64    `json:"price"`
	ImageURL    string     `json:"image_url"`
	Categories  []Category `json:"categories"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// ProductMin is the projection used by the paged catalog listing.
type ProductMin struct {
	ID       int     `json:"id"`
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	ImageURL string  `json:"image_url"`
}

type CreateProductRequest struct {
	Name        string  `json:"name" binding:"required,notblank,min=3,max=80"`
	Description string  `json:"description" binding:"required,notblank,min=10"`
	Price       float64 `json:"price" binding:"required,gt=0"`
	ImageURL    string  `json:"image_url"`
	CategoryIDs []int   `json:"category_ids" binding:"required,min=1"`
}

// UpdateProductRequest carries the full replacement state; updates are not
// partial, matching the PUT semantics of the catalog API.
type UpdateProductRequest struct {
	Name        string  `json:"name" binding:"required,notblank,min=3,max=80"`
	Description string  `json:"description" binding:"required,notblank,min=10"`
	Price       float64 `json:"price" binding:"required,gt=0"`
	ImageURL    string  `json:"image_url"`
	CategoryIDs []int   `json:"category_ids" binding:"required,min=1"`
}

// PageResponse is the envelope for paged listings. Page index is zero-based.
type PageResponse struct {
	Content       any   `json:"content"`
	Page          int   `json:"page"`
	Size          int   `json:"size"`
	TotalElements int64 `json:"total_elements"`
	TotalPages    int   `json:"total_pages"`
}
