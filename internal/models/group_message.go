package models

import "time"

// Message kinds.
const (
	KindText  = "text"
	KindImage = "image"
	KindVideo = "video"
	KindPDF   = "pdf"
	KindFile  = "file"
)

// FileMeta describes an attachment stored by the external file store. The
// engine keeps only this tuple, never the bytes.
type FileMeta struct {
	URL  string `json:"file_url"`
	Name string `json:"file_name"`
	Size int64  `json:"file_size"`
}

// GroupMessage is an entry in a group's message log. AuthorName is a snapshot
// taken at write time; it is intentionally not refreshed when the user later
// renames (see DESIGN.md). Immutable once written except for the like set.
type GroupMessage struct {
	ID         int       `db:"id" json:"id"`
	GroupID    int       `db:"group_id" json:"group_id"`
	AuthorID   int       `db:"author_id" json:"author_id"`
	AuthorName string    `db:"author_name" json:"author_name"`
	Content    string    `db:"content" json:"content"`
	Kind       string    `db:"kind" json:"kind"`
	FileURL    string    `db:"file_url" json:"file_url,omitempty"`
	FileName   string    `db:"file_name" json:"file_name,omitempty"`
	FileSize   int64     `db:"file_size" json:"file_size,omitempty"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	LikeCount  int       `db:"like_count" json:"likes"`
	IsLiked    bool      `db:"is_liked" json:"is_liked"`
}

// LikeState is the canonical outcome of a like toggle: the shared count plus
// the full liker set. The per-viewer is_liked flag is derived from LikerIDs at
// delivery time, never broadcast as a single value.
type LikeState struct {
	MessageID int   `json:"message_id"`
	GroupID   int   `json:"group_id"`
	Count     int   `json:"likes"`
	LikerIDs  []int `json:"-"`
}

// Likes reports whether userID is in the liker set.
func (s LikeState) Likes(userID int) bool {
	for _, id := range s.LikerIDs {
		if id == userID {
			return true
		}
	}
	return false
}
