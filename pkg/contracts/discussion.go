package contracts

import "time"

// Thread is a forum discussion. Posts are grouped under it by ThreadID.
type Thread struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"createdAt"`
	Posts     []Post    `json:"posts,omitempty"`
}

// Post is one message in a thread.
type Post struct {
	ID        string    `json:"id"`
	ThreadID  string    `json:"threadId"`
	Author    string    `json:"author"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}
