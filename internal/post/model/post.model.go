package model

import (
	"fmt"
	"time"

	"blogcore/internal/backend"
)

type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

func (s Status) Valid() bool {
	return s == StatusActive || s == StatusInactive
}

// Document attribute names. The featured image attribute keeps the
// collection's existing spelling; AttrFeaturedImageAlt is only read.
const (
	AttrTitle            = "title"
	AttrContent          = "content"
	AttrFeaturedImage    = "feturedImage"
	AttrFeaturedImageAlt = "featuredImage"
	AttrUserID           = "userId"
	AttrStatus           = "status"
)

// Post is a blog post stored as a document keyed by its slug.
type Post struct {
	Slug          string          `json:"slug"`
	Title         string          `json:"title"`
	Content       string          `json:"content"`
	FeaturedImage backend.FileRef `json:"featured_image,omitempty"`
	UserID        string          `json:"user_id"`
	Status        Status          `json:"status"`
	CreatedAt     time.Time       `json:"created_at,omitzero"`
	UpdatedAt     time.Time       `json:"updated_at,omitzero"`
}

type CreatePostRequest struct {
	Slug          string          `json:"slug"`
	Title         string          `json:"title"`
	Content       string          `json:"content"`
	FeaturedImage backend.FileRef `json:"featured_image"`
	UserID        string          `json:"user_id"`
	Status        Status          `json:"status"`
}

// Data renders the request as document attributes. The slug is the document
// ID and is not repeated in the data.
func (r CreatePostRequest) Data() map[string]any {
	return map[string]any{
		AttrTitle:         r.Title,
		AttrContent:       r.Content,
		AttrFeaturedImage: string(r.FeaturedImage),
		AttrUserID:        r.UserID,
		AttrStatus:        string(r.Status),
	}
}

// PostFields is a partial update; nil fields are left untouched. Slug and
// owner cannot be changed.
type PostFields struct {
	Title         *string          `json:"title,omitempty"`
	Content       *string          `json:"content,omitempty"`
	FeaturedImage *backend.FileRef `json:"featured_image,omitempty"`
	Status        *Status          `json:"status,omitempty"`
}

func (f PostFields) Empty() bool {
	return f.Title == nil && f.Content == nil && f.FeaturedImage == nil && f.Status == nil
}

// Data renders only the fields that are set.
func (f PostFields) Data() map[string]any {
	data := make(map[string]any, 4)
	if f.Title != nil {
		data[AttrTitle] = *f.Title
	}
	if f.Content != nil {
		data[AttrContent] = *f.Content
	}
	if f.FeaturedImage != nil {
		data[AttrFeaturedImage] = string(*f.FeaturedImage)
	}
	if f.Status != nil {
		data[AttrStatus] = string(*f.Status)
	}
	return data
}

// FromDocument maps a stored document back to a Post. Unknown attributes
// are ignored; missing ones stay empty.
func FromDocument(doc *backend.Document) *Post {
	if doc == nil {
		return nil
	}
	return &Post{
		Slug:          doc.ID,
		Title:         stringAttr(doc.Data, AttrTitle),
		Content:       stringAttr(doc.Data, AttrContent),
		FeaturedImage: backend.FileRef(featuredImage(doc.Data)),
		UserID:        stringAttr(doc.Data, AttrUserID),
		Status:        Status(stringAttr(doc.Data, AttrStatus)),
		CreatedAt:     doc.CreatedAt,
		UpdatedAt:     doc.UpdatedAt,
	}
}

func featuredImage(data map[string]any) string {
	if v := stringAttr(data, AttrFeaturedImage); v != "" {
		return v
	}
	return stringAttr(data, AttrFeaturedImageAlt)
}

func stringAttr(data map[string]any, key string) string {
	switch v := data[key].(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}
