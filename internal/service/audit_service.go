package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"proforma/internal/model"
	"proforma/internal/repository"
	"proforma/pkg/pagination"
)

type AuditLogResponse struct {
	ID         string `json:"id"`
	Actor      string `json:"actor"`
	Action     string `json:"action"`
	EntityID   string `json:"entity_id"`
	EntityName string `json:"entity_name"`
	Details    string `json:"details"`
	CreatedAt  string `json:"created_at"`
}

type AuditService interface {
	GetAuditLogs(ctx context.Context, entityID string, page pagination.Params) ([]AuditLogResponse, int64, error)
}

type auditService struct {
	auditRepo repository.AuditRepository
}

// NewAuditService creates a new AuditService instance
func NewAuditService(auditRepo repository.AuditRepository) AuditService {
	return &auditService{auditRepo: auditRepo}
}

// GetAuditLogs pages the trail newest first, optionally for a single invoice or payment
func (s *auditService) GetAuditLogs(ctx context.Context, entityID string, page pagination.Params) ([]AuditLogResponse, int64, error) {
	logs, total, err := s.auditRepo.List(ctx, entityID, page)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch audit logs: %w", err)
	}

	res := make([]AuditLogResponse, 0, len(logs))
	for _, l := range logs {
		actor := l.Actor
		if actor == "" {
			actor = "System"
		}
		res = append(res, AuditLogResponse{
			ID:         l.ID.String(),
			Actor:      actor,
			Action:     l.Action,
			EntityID:   l.EntityID,
			EntityName: l.EntityName,
			Details:    l.Details,
			CreatedAt:  l.CreatedAt.Format(time.RFC3339),
		})
	}

	return res, total, nil
}

// writeAudit records a mutation inside the caller's transaction.
func writeAudit(ctx context.Context, repo repository.AuditRepository, actor, action, entityID, entityName string, details interface{}) error {
	payload, _ := json.Marshal(details)
	audit := &model.AuditLog{
		Actor:      actor,
		Action:     action,
		EntityID:   entityID,
		EntityName: entityName,
		Details:    string(payload),
	}
	if err := repo.Log(ctx, audit); err != nil {
		return fmt.Errorf("failed to write audit log: %w", err)
	}
	return nil
}
