package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/shopdesk/internal/customer/domain"
	"github.com/smallbiznis/shopdesk/internal/shopcontext"
	"github.com/smallbiznis/shopdesk/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const maxCertificateLength = 64

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

func New(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("customer.service"),
		genID: p.GenID,
		repo:  p.Repo,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateCustomerRequest) (domain.Customer, error) {
	shopID, ok := shopcontext.ShopIDFromContext(ctx)
	if !ok {
		return domain.Customer{}, domain.ErrInvalidShop
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.Customer{}, domain.ErrInvalidName
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email != "" && !strings.Contains(email, "@") {
		return domain.Customer{}, domain.ErrInvalidEmail
	}

	certificate, err := normalizeCertificate(req.ExemptionCertificate)
	if err != nil {
		return domain.Customer{}, err
	}

	now := time.Now().UTC()
	customer := domain.Customer{
		ID:                   s.genID.Generate(),
		ShopID:               shopID,
		Name:                 name,
		Email:                email,
		Phone:                strings.TrimSpace(req.Phone),
		LaborTaxExempt:       req.LaborTaxExempt,
		PartsTaxExempt:       req.PartsTaxExempt,
		ExemptionCertificate: certificate,
		CreatedAt:            now,
		UpdatedAt:            now,
	}

	if err := s.repo.Insert(ctx, s.db, &customer); err != nil {
		return domain.Customer{}, err
	}

	return customer, nil
}

func (s *Service) List(ctx context.Context, req domain.ListCustomerRequest) (domain.ListCustomerResponse, error) {
	shopID, ok := shopcontext.ShopIDFromContext(ctx)
	if !ok {
		return domain.ListCustomerResponse{}, domain.ErrInvalidShop
	}

	filter := domain.ListCustomerFilter{
		Name:  strings.ToLower(strings.TrimSpace(req.Name)),
		Email: strings.ToLower(strings.TrimSpace(req.Email)),
	}

	pageSize := int(req.PageSize)
	if pageSize <= 0 {
		pageSize = pagination.DefaultPageSize
	}
	if pageSize > pagination.MaxPageSize {
		pageSize = pagination.MaxPageSize
	}

	items, err := s.repo.List(ctx, s.db, shopID, filter, pagination.Pagination{
		PageToken: req.PageToken,
		PageSize:  pageSize,
	})
	if err != nil {
		if errors.Is(err, pagination.ErrInvalidPageToken) {
			return domain.ListCustomerResponse{}, pagination.ErrInvalidPageToken
		}
		return domain.ListCustomerResponse{}, err
	}

	items, pageInfo := pagination.Trim(items, pageSize, func(customer *domain.Customer) string {
		return customer.ID.String()
	})

	customers := make([]domain.Customer, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		customers = append(customers, *item)
	}

	return domain.ListCustomerResponse{PageInfo: pageInfo, Customers: customers}, nil
}

func (s *Service) GetByID(ctx context.Context, req domain.GetCustomerRequest) (domain.Customer, error) {
	shopID, ok := shopcontext.ShopIDFromContext(ctx)
	if !ok {
		return domain.Customer{}, domain.ErrInvalidShop
	}

	id, err := s.parseID(req.ID)
	if err != nil {
		return domain.Customer{}, err
	}

	item, err := s.repo.FindByID(ctx, s.db, shopID, id)
	if err != nil {
		return domain.Customer{}, err
	}
	if item == nil {
		return domain.Customer{}, domain.ErrNotFound
	}

	return *item, nil
}

func (s *Service) UpdateTaxExemption(ctx context.Context, req domain.UpdateTaxExemptionRequest) (domain.Customer, error) {
	current, err := s.GetByID(ctx, domain.GetCustomerRequest{ID: req.ID})
	if err != nil {
		return domain.Customer{}, err
	}

	if req.LaborTaxExempt != nil {
		current.LaborTaxExempt = *req.LaborTaxExempt
	}
	if req.PartsTaxExempt != nil {
		current.PartsTaxExempt = *req.PartsTaxExempt
	}
	if req.ExemptionCertificate != nil {
		certificate, err := normalizeCertificate(req.ExemptionCertificate)
		if err != nil {
			return domain.Customer{}, err
		}
		current.ExemptionCertificate = certificate
	}
	current.UpdatedAt = time.Now().UTC()

	if err := s.repo.UpdateTaxExemption(ctx, s.db, &current); err != nil {
		return domain.Customer{}, err
	}

	s.log.Info("customer tax exemption updated",
		zap.String("customer_id", current.ID.String()),
		zap.Bool("labor_tax_exempt", current.LaborTaxExempt),
		zap.Bool("parts_tax_exempt", current.PartsTaxExempt),
	)
	return current, nil
}

func (s *Service) parseID(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, domain.ErrInvalidID
	}
	return id, nil
}

func normalizeCertificate(value *string) (*string, error) {
	if value == nil {
		return nil, nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil, nil
	}
	if len(trimmed) > maxCertificateLength {
		return nil, domain.ErrInvalidCertificate
	}
	return &trimmed, nil
}
