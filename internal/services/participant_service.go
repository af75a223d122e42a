package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"splitledger/internal/core"
	"splitledger/internal/log"
)

// ParticipantStore is the storage surface the participant service needs.
type ParticipantStore interface {
	CreateParticipant(ctx context.Context, p core.Participant) (core.Participant, error)
	GetParticipant(ctx context.Context, id int64) (core.Participant, error)
	ListParticipants(ctx context.Context) ([]core.Participant, error)
}

// ParticipantService manages the participant registry
type ParticipantService struct {
	store ParticipantStore
}

func NewParticipantService(store ParticipantStore) *ParticipantService {
	return &ParticipantService{store: store}
}

// Register validates and persists a new participant. Email is normalized to
// lower case before the uniqueness check so addresses differing only in case
// collide.
func (s *ParticipantService) Register(ctx context.Context, name, email, phone string) (core.Participant, error) {
	p := core.Participant{
		Name:  strings.TrimSpace(name),
		Email: strings.ToLower(strings.TrimSpace(email)),
		Phone: strings.TrimSpace(phone),
	}

	if err := p.Validate(); err != nil {
		return core.Participant{}, err
	}

	created, err := s.store.CreateParticipant(ctx, p)
	if err != nil {
		return core.Participant{}, fmt.Errorf("register participant: %w", err)
	}

	fields := log.NewFields().
		WithComponent(log.ComponentApp).
		WithOperation(log.OpCreate).
		WithParticipant(created.ID, created.Email)
	slog.InfoContext(ctx, "Participant registered", fields.ToSlice()...)

	return created, nil
}

// Lookup returns the participant with the given id
func (s *ParticipantService) Lookup(ctx context.Context, id int64) (core.Participant, error) {
	if id <= 0 {
		return core.Participant{}, fmt.Errorf("%w: invalid participant id %d", core.ErrInvalidInput, id)
	}

	p, err := s.store.GetParticipant(ctx, id)
	if err != nil {
		return core.Participant{}, fmt.Errorf("lookup participant %d: %w", id, err)
	}

	return p, nil
}

// List returns every registered participant
func (s *ParticipantService) List(ctx context.Context) ([]core.Participant, error) {
	return s.store.ListParticipants(ctx)
}
