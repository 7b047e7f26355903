package poster

import (
	"context"
	"time"
)

// Request carries everything a platform adapter needs to publish one clip.
type Request struct {
	ClipID          string `json:"clip_id"`
	Platform        string `json:"platform"`
	AccountID       string `json:"account_id"`
	CredentialsPath string `json:"credentials_path"`
	MediaPath       string `json:"media_path"`
	MediaURL        string `json:"media_url"`
	Caption         string `json:"caption"`
}

// Receipt is the platform's acknowledgement of a successful post.
type Receipt struct {
	PostID   string    `json:"post_id"`
	PostedAt time.Time `json:"posted_at"`
}

//go:generate go run go.uber.org/mock/mockgen -source=poster.go -destination=mocks/mock.go -package=mocks

// Client publishes clips. Implementations are opaque: a post either comes
// back with a receipt or an error, and the caller must treat an error as
// "possibly posted" and never re-dispatch automatically.
type Client interface {
	Post(ctx context.Context, req Request) (*Receipt, error)
}
