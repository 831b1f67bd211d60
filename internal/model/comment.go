package model

import "time"

type Comment struct {
	ID        int       `json:"id"`
	TaskID    int       `json:"task_id"`
	AuthorID  int       `json:"author_id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`

	AuthorName   string       `json:"author_name,omitempty"`
	AuthorAvatar string       `json:"author_avatar,omitempty"`
	Attachments  []Attachment `json:"attachments"`
}

// Attachment is file metadata only; the bytes live at the referenced URL.
type Attachment struct {
	ID        int    `json:"id"`
	CommentID int    `json:"comment_id"`
	Name      string `json:"name"`
	URL       string `json:"url"`
	MimeType  string `json:"mime_type"`
}
