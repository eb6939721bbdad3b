package database

import (
	"time"

	"github.com/kozaktomas/sigboard/internal/signature"
)

// StoredSignature represents the signature of a post stored in the database
type StoredSignature struct {
	PostID    int64
	Checksum  string // SHA-256 of the post content
	Signature signature.Compressed
	Words     signature.Words
	Version   int // signature.Version at the time of computation
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewStoredSignature builds a record for a post from a computed signature.
func NewStoredSignature(postID int64, checksum string, c signature.Compressed) StoredSignature {
	return StoredSignature{
		PostID:    postID,
		Checksum:  checksum,
		Signature: c,
		Words:     signature.GenerateWords(c),
		Version:   signature.Version,
	}
}

// WordsUpdate replaces the words of a single post
type WordsUpdate struct {
	PostID int64
	Words  signature.Words
}

// SignatureStats summarizes the stored signatures
type SignatureStats struct {
	Total    int `json:"total"`
	Outdated int `json:"outdated"` // Signatures computed with an older version
}
