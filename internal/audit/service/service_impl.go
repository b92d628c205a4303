package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/shopdesk/internal/audit/domain"
	"github.com/smallbiznis/shopdesk/internal/audit/masking"
	obscontext "github.com/smallbiznis/shopdesk/internal/observability/context"
	"github.com/smallbiznis/shopdesk/internal/observability/logger"
	"github.com/smallbiznis/shopdesk/internal/shopcontext"
	"github.com/smallbiznis/shopdesk/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Customer contact details and certificate numbers never reach the audit table in clear.
var sensitiveKeys = []string{"email", "phone", "exemption_certificate"}

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Repo  domain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	repo  domain.Repository
}

func NewService(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("audit.service"),
		genID: p.GenID,
		repo:  p.Repo,
	}
}

func (s *Service) Record(ctx context.Context, action string, targetType string, targetID *string, metadata map[string]any) error {
	shopID, ok := shopcontext.ShopIDFromContext(ctx)
	if !ok {
		return domain.ErrInvalidShop
	}
	action = strings.TrimSpace(action)
	if action == "" {
		return domain.ErrInvalidAction
	}
	targetType = strings.TrimSpace(targetType)
	if targetType == "" {
		targetType = "unknown"
	}

	payload := masking.MaskFields(metadata, sensitiveKeys...)
	if payload == nil {
		payload = map[string]any{}
	}
	if requestID := obscontext.RequestIDFromContext(ctx); requestID != "" {
		payload["request_id"] = requestID
	}

	role, actorID := obscontext.ActorFromContext(ctx)
	if role == "" {
		role = "system"
	}

	entry := domain.AuditLog{
		ID:         s.genID.Generate(),
		ShopID:     shopID,
		ActorID:    normalizePointer(&actorID),
		ActorRole:  role,
		Action:     action,
		TargetType: targetType,
		TargetID:   normalizePointer(targetID),
		Metadata:   datatypes.JSONMap(payload),
		CreatedAt:  time.Now().UTC(),
	}

	if err := s.repo.Insert(ctx, s.db, &entry); err != nil {
		logger.WithContext(ctx, s.log).Warn("failed to write audit log", zap.String("action", action), zap.Error(err))
		return err
	}
	return nil
}

func (s *Service) List(ctx context.Context, req domain.ListAuditLogRequest) (domain.ListAuditLogResponse, error) {
	shopID, ok := shopcontext.ShopIDFromContext(ctx)
	if !ok {
		return domain.ListAuditLogResponse{}, domain.ErrInvalidShop
	}

	pageSize := int(req.PageSize)
	if pageSize <= 0 {
		pageSize = pagination.DefaultPageSize
	}
	if pageSize > pagination.MaxPageSize {
		pageSize = pagination.MaxPageSize
	}

	items, err := s.repo.List(ctx, s.db, shopID, domain.ListFilter{
		Action:     req.Action,
		TargetType: req.TargetType,
		TargetID:   req.TargetID,
	}, pagination.Pagination{
		PageToken: req.PageToken,
		PageSize:  pageSize,
	})
	if err != nil {
		if errors.Is(err, pagination.ErrInvalidPageToken) {
			return domain.ListAuditLogResponse{}, pagination.ErrInvalidPageToken
		}
		return domain.ListAuditLogResponse{}, err
	}

	items, pageInfo := pagination.Trim(items, pageSize, func(item *domain.AuditLog) string {
		return item.ID.String()
	})

	logs := make([]domain.AuditLog, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		logs = append(logs, *item)
	}

	return domain.ListAuditLogResponse{PageInfo: pageInfo, AuditLogs: logs}, nil
}

func normalizePointer(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
