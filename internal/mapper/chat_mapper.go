package mapper

import (
	"time"

	"github.com/noman-nawaz-dev/chatbot-backend/internal/entity"
	"github.com/noman-nawaz-dev/chatbot-backend/internal/model"
)

type ChatMapper struct{}

func NewChatMapper() *ChatMapper {
	return &ChatMapper{}
}

func (m *ChatMapper) ChatSessionToEntity(s *model.ChatSession) *entity.ChatSession {
	if s == nil {
		return nil
	}

	var updatedAt *time.Time
	if !s.UpdatedAt.IsZero() {
		t := s.UpdatedAt
		updatedAt = &t
	}

	return &entity.ChatSession{
		Id:              s.Id,
		OwnerId:         s.OwnerId,
		Title:           s.Title,
		HistoryLocation: s.HistoryLocation,
		CreatedAt:       s.CreatedAt,
		UpdatedAt:       updatedAt,
	}
}

func (m *ChatMapper) ChatSessionToModel(s *entity.ChatSession) *model.ChatSession {
	if s == nil {
		return nil
	}

	out := &model.ChatSession{
		Id:              s.Id,
		OwnerId:         s.OwnerId,
		Title:           s.Title,
		HistoryLocation: s.HistoryLocation,
		CreatedAt:       s.CreatedAt,
	}
	if s.UpdatedAt != nil {
		out.UpdatedAt = *s.UpdatedAt
	}
	return out
}
