package services

import (
	"context"
	"errors"
	"sync"

	"edulearn-backend/internal/models"
)

// stubGenerator replays canned replies in order and records every prompt.
type stubGenerator struct {
	mu       sync.Mutex
	replies  []string
	err      error
	prompts  []string
	messages [][]models.ChatMessage
	images   [][]Image
}

func (s *stubGenerator) Generate(ctx context.Context, prompt string, images ...Image) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prompts = append(s.prompts, prompt)
	s.images = append(s.images, images)
	return s.next()
}

func (s *stubGenerator) Chat(ctx context.Context, messages []models.ChatMessage, images ...Image) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, messages)
	s.images = append(s.images, images)
	return s.next()
}

func (s *stubGenerator) next() (string, error) {
	if s.err != nil {
		return "", s.err
	}
	if len(s.replies) == 0 {
		return "", errors.New("stubGenerator: no reply queued")
	}
	reply := s.replies[0]
	s.replies = s.replies[1:]
	return reply, nil
}
