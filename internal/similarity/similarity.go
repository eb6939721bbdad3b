// Package similarity finds posts whose signatures are close to a query image.
package similarity

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/kozaktomas/sigboard/internal/constants"
	"github.com/kozaktomas/sigboard/internal/database"
	"github.com/kozaktomas/sigboard/internal/fingerprint"
	"github.com/kozaktomas/sigboard/internal/signature"
)

// ErrPostNotFound is returned when the query post has no stored signature.
var ErrPostNotFound = errors.New("post has no signature")

// Match is a post together with its distance to the query.
type Match struct {
	PostID   int64   `json:"post_id"`
	Distance float64 `json:"distance"`
}

// Result of a reverse search. When ExactPost is set no similar posts are
// reported.
type Result struct {
	ExactPost    *int64  `json:"exact_post"`
	SimilarPosts []Match `json:"similar_posts"`
}

// Options configure a Searcher.
type Options struct {
	Threshold      float64 // Largest distance reported
	Limit          int     // Maximum number of matches
	CandidateLimit int     // Maximum candidates fetched through words
	// NearestFallback queries the nearest signatures when no stored
	// signature shares a word with the query.
	NearestFallback bool
}

// Query overrides the threshold and limit of a single search. Zero values
// use the searcher defaults.
type Query struct {
	Threshold float64
	Limit     int
}

// Searcher ranks stored signatures against a query signature.
type Searcher struct {
	reader database.SignatureReader
	opts   Options
}

// NewSearcher creates a searcher, filling unset options with defaults.
func NewSearcher(reader database.SignatureReader, opts Options) *Searcher {
	if opts.Threshold <= 0 {
		opts.Threshold = constants.DefaultSimilarityThreshold
	}
	if opts.Limit <= 0 {
		opts.Limit = constants.DefaultSimilarLimit
	}
	if opts.CandidateLimit <= 0 {
		opts.CandidateLimit = constants.DefaultCandidateLimit
	}
	return &Searcher{reader: reader, opts: opts}
}

// Options returns the effective options.
func (s *Searcher) Options() Options {
	return s.opts
}

func (s *Searcher) resolve(q Query) Query {
	if q.Threshold <= 0 {
		q.Threshold = s.opts.Threshold
	}
	if q.Limit <= 0 {
		q.Limit = s.opts.Limit
	}
	return q
}

// ReverseSearch looks for a post with exactly the uploaded content first and
// otherwise for posts with similar signatures.
func (s *Searcher) ReverseSearch(ctx context.Context, props *fingerprint.Properties, q Query) (*Result, error) {
	ids, err := s.reader.FindByChecksum(ctx, props.Checksum)
	if err != nil {
		return nil, fmt.Errorf("failed to look up checksum: %w", err)
	}
	if len(ids) > 0 {
		exact := ids[0]
		return &Result{ExactPost: &exact, SimilarPosts: []Match{}}, nil
	}

	matches, err := s.Search(ctx, props.Signature, props.Words, q, nil)
	if err != nil {
		return nil, err
	}
	return &Result{SimilarPosts: matches}, nil
}

// SimilarToPost returns posts similar to a stored post, excluding the post itself.
func (s *Searcher) SimilarToPost(ctx context.Context, postID int64, q Query) ([]Match, error) {
	sig, err := s.reader.Get(ctx, postID)
	if err != nil {
		return nil, fmt.Errorf("failed to get signature: %w", err)
	}
	if sig == nil {
		return nil, fmt.Errorf("%w: %d", ErrPostNotFound, postID)
	}

	return s.Search(ctx, sig.Signature, sig.Words, q, func(id int64) bool { return id == postID })
}

// Search returns stored posts within the threshold of c, nearest first.
// Ties are broken by post ID. Posts for which skip returns true are ignored.
func (s *Searcher) Search(ctx context.Context, c signature.Compressed, words signature.Words, q Query, skip func(int64) bool) ([]Match, error) {
	q = s.resolve(q)

	candidates, err := s.reader.FindCandidates(ctx, c, words, s.opts.CandidateLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to find candidates: %w", err)
	}
	if len(candidates) == 0 && s.opts.NearestFallback {
		candidates, err = s.reader.FindNearest(ctx, c, constants.HNSWCandidateLimit)
		if err != nil {
			return nil, fmt.Errorf("failed to find nearest signatures: %w", err)
		}
	}

	cache := signature.NewCache(c)
	matches := make([]Match, 0, len(candidates))
	seen := make(map[int64]bool, len(candidates))
	for i := range candidates {
		cand := &candidates[i]
		if seen[cand.PostID] || (skip != nil && skip(cand.PostID)) {
			continue
		}
		seen[cand.PostID] = true

		d := cache.Distance(cand.Signature)
		if d > q.Threshold {
			continue
		}
		matches = append(matches, Match{PostID: cand.PostID, Distance: d})
	}

	slices.SortFunc(matches, func(a, b Match) int {
		if r := cmp.Compare(a.Distance, b.Distance); r != 0 {
			return r
		}
		return cmp.Compare(a.PostID, b.PostID)
	})
	if len(matches) > q.Limit {
		matches = matches[:q.Limit]
	}
	return matches, nil
}
