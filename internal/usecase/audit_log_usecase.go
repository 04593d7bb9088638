package usecase

import (
	"context"
	"strings"

	"ecstore/internal/domain/model"
	repo "ecstore/internal/repository"
)

// 管理者向けの監査ログ閲覧
type AuditLogUsecase struct {
	audit repo.AuditLogRepository
}

func NewAuditLogUsecase(audit repo.AuditLogRepository) *AuditLogUsecase {
	return &AuditLogUsecase{audit: audit}
}

type ListAuditLogsInput struct {
	Action       string
	ResourceType string
	ResourceID   *int64
	ActorUserID  *int64
	Limit        int
	Offset       int
}

func (u *AuditLogUsecase) List(ctx context.Context, in ListAuditLogsInput) ([]model.AuditLog, error) {
	if in.Limit < 0 || in.Limit > 200 {
		return []model.AuditLog{}, validationError("limit: Ensure this value is between 1 and 200.")
	}
	if in.Offset < 0 {
		return []model.AuditLog{}, validationError("offset: Ensure this value is greater than or equal to 0.")
	}

	f := repo.AuditLogFilter{
		ActorUserID: in.ActorUserID,
		ResourceID:  in.ResourceID,
		Limit:       in.Limit,
		Offset:      in.Offset,
	}

	if a := strings.ToUpper(strings.TrimSpace(in.Action)); a != "" {
		action := model.AuditAction(a)
		switch action {
		case model.AuditActionCreate, model.AuditActionUpdate, model.AuditActionDelete, model.AuditActionConfirmPayment:
		default:
			return []model.AuditLog{}, validationError("action: Select a valid choice.")
		}
		f.Action = &action
	}
	if t := strings.ToLower(strings.TrimSpace(in.ResourceType)); t != "" {
		rt := model.AuditResourceType(t)
		switch rt {
		case model.AuditResourceCategory, model.AuditResourceProduct, model.AuditResourceOrder:
		default:
			return []model.AuditLog{}, validationError("resource_type: Select a valid choice.")
		}
		f.ResourceType = &rt
	}

	logs, err := u.audit.List(ctx, f)
	if err != nil {
		return []model.AuditLog{}, internalError()
	}
	if logs == nil {
		logs = []model.AuditLog{}
	}
	return logs, nil
}
