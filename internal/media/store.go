package media

import (
	"context"
	"errors"
)

// Asset identifica una imagen almacenada y su URL pública.
type Asset struct {
	PublicID string `json:"public_id"`
	URL      string `json:"url"`
}

// Store define la interfaz del almacenamiento de imágenes.
type Store interface {
	Upload(ctx context.Context, payload string) (Asset, error)
	Delete(ctx context.Context, publicID string) error
}

type disabledStore struct {
	reason string
}

func NewDisabledStore(reason string) Store {
	return &disabledStore{reason: reason}
}

func (s *disabledStore) Upload(_ context.Context, _ string) (Asset, error) {
	if s.reason == "" {
		return Asset{}, errors.New("media store disabled")
	}
	return Asset{}, errors.New(s.reason)
}

func (s *disabledStore) Delete(_ context.Context, _ string) error {
	if s.reason == "" {
		return errors.New("media store disabled")
	}
	return errors.New(s.reason)
}
