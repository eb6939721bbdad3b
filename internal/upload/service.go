package upload

import (
	"errors"
	"fmt"

	"github.com/kozaktomas/sigboard/internal/fingerprint"
)

// ErrUnsupportedContent is returned when uploaded data is not a supported image.
var ErrUnsupportedContent = errors.New("unsupported content type")

// Service stores uploads and computes their properties, caching the result
// for the request that consumes the upload next.
type Service struct {
	store         *Store
	cache         *RingCache
	thumbnailSize int
}

// NewService creates an upload service. A thumbnailSize of zero disables thumbnails.
func NewService(store *Store, cache *RingCache, thumbnailSize int) *Service {
	return &Service{
		store:         store,
		cache:         cache,
		thumbnailSize: thumbnailSize,
	}
}

// Store returns the underlying upload store.
func (s *Service) Store() *Store {
	return s.store
}

// Cache returns the properties cache.
func (s *Service) Cache() *RingCache {
	return s.cache
}

// Save stores uploaded data and returns its token.
func (s *Service) Save(data []byte) (string, error) {
	mime := fingerprint.DetectMimeType(data)
	ext, err := fingerprint.ExtensionForMime(mime)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedContent, mime)
	}
	return s.store.Save(data, ext)
}

// ComputeProperties computes the properties of an upload and caches them.
func (s *Service) ComputeProperties(token string) (*fingerprint.Properties, error) {
	props, err := s.compute(token)
	if err != nil {
		return nil, err
	}
	s.cache.Insert(props)
	return props, nil
}

// GetOrComputeProperties takes cached properties out of the cache, or
// computes them without caching.
func (s *Service) GetOrComputeProperties(token string) (*fingerprint.Properties, error) {
	if props, ok := s.cache.Remove(token); ok {
		return props, nil
	}
	return s.compute(token)
}

func (s *Service) compute(token string) (*fingerprint.Properties, error) {
	data, err := s.store.Read(token)
	if err != nil {
		return nil, err
	}

	props, err := fingerprint.ComputeProperties(token, data)
	if err != nil {
		return nil, fmt.Errorf("failed to compute properties of %s: %w", token, err)
	}

	if s.thumbnailSize > 0 {
		thumb, err := fingerprint.Thumbnail(data, s.thumbnailSize)
		if err != nil {
			return nil, fmt.Errorf("failed to create thumbnail of %s: %w", token, err)
		}
		props.Thumbnail = thumb
	}
	return props, nil
}

// Discard removes an upload and its cached properties.
func (s *Service) Discard(token string) error {
	s.cache.Remove(token)
	return s.store.Remove(token)
}
