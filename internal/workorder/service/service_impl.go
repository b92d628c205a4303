package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/shopdesk/internal/config"
	customerdomain "github.com/smallbiznis/shopdesk/internal/customer/domain"
	"github.com/smallbiznis/shopdesk/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/shopdesk/internal/observability/metrics"
	"github.com/smallbiznis/shopdesk/internal/shopcontext"
	"github.com/smallbiznis/shopdesk/internal/tax/calculator"
	taxdomain "github.com/smallbiznis/shopdesk/internal/tax/domain"
	"github.com/smallbiznis/shopdesk/internal/workorder/domain"
	"github.com/smallbiznis/shopdesk/pkg/db"
	"github.com/smallbiznis/shopdesk/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	GenID     *snowflake.Node
	Config    config.Config
	Repo      domain.Repository
	Customers customerdomain.Service
	Settings  taxdomain.Provider
	Metrics   *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	genID     *snowflake.Node
	repo      domain.Repository
	customers customerdomain.Service
	settings  taxdomain.Provider
	metrics   *obsmetrics.Metrics
	policy    calculator.ExemptionPolicy
}

func New(p Params) domain.Service {
	return &Service{
		db:        p.DB,
		log:       p.Log.Named("workorder.service"),
		genID:     p.GenID,
		repo:      p.Repo,
		customers: p.Customers,
		settings:  p.Settings,
		metrics:   p.Metrics,
		policy:    calculator.ExemptionPolicy(p.Config.Tax.ExemptionPolicy),
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateWorkOrderRequest) (domain.WorkOrder, error) {
	shopID, ok := shopcontext.ShopIDFromContext(ctx)
	if !ok {
		return domain.WorkOrder{}, domain.ErrInvalidShop
	}

	var customerID *snowflake.ID
	if raw := strings.TrimSpace(req.CustomerID); raw != "" {
		customer, err := s.customers.GetByID(ctx, customerdomain.GetCustomerRequest{ID: raw})
		if err != nil {
			if errors.Is(err, customerdomain.ErrNotFound) || errors.Is(err, customerdomain.ErrInvalidID) {
				return domain.WorkOrder{}, domain.ErrInvalidCustomer
			}
			return domain.WorkOrder{}, err
		}
		customerID = &customer.ID
	}

	id := s.genID.Generate()
	number := strings.TrimSpace(req.Number)
	if number == "" {
		number = "WO-" + strings.ToUpper(id.Base36())
	}
	if len(number) > 64 {
		return domain.WorkOrder{}, domain.ErrInvalidNumber
	}

	now := time.Now().UTC()
	order := domain.WorkOrder{
		ID:          id,
		ShopID:      shopID,
		CustomerID:  customerID,
		Number:      number,
		Description: strings.TrimSpace(req.Description),
		Status:      domain.StatusOpen,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.repo.InsertWorkOrder(ctx, s.db, &order); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return domain.WorkOrder{}, domain.ErrDuplicateNumber
		}
		return domain.WorkOrder{}, err
	}

	return order, nil
}

func (s *Service) Get(ctx context.Context, id string) (domain.Detail, error) {
	order, err := s.loadWorkOrder(ctx, id)
	if err != nil {
		return domain.Detail{}, err
	}

	lines, err := s.repo.ListJobLines(ctx, s.db, order.ShopID, order.ID)
	if err != nil {
		return domain.Detail{}, err
	}
	parts, err := s.repo.ListParts(ctx, s.db, order.ShopID, order.ID)
	if err != nil {
		return domain.Detail{}, err
	}

	return domain.Detail{WorkOrder: *order, JobLines: nonNil(lines), Parts: nonNil(parts)}, nil
}

func (s *Service) List(ctx context.Context, req domain.ListWorkOrderRequest) (domain.ListWorkOrderResponse, error) {
	shopID, ok := shopcontext.ShopIDFromContext(ctx)
	if !ok {
		return domain.ListWorkOrderResponse{}, domain.ErrInvalidShop
	}

	var filter domain.ListWorkOrderFilter
	if raw := strings.TrimSpace(req.Status); raw != "" {
		status := domain.Status(strings.ToLower(raw))
		if !status.Valid() {
			return domain.ListWorkOrderResponse{}, domain.ErrInvalidStatus
		}
		filter.Status = status
	}
	if raw := strings.TrimSpace(req.CustomerID); raw != "" {
		customerID, err := parseID(raw)
		if err != nil {
			return domain.ListWorkOrderResponse{}, domain.ErrInvalidCustomer
		}
		filter.CustomerID = &customerID
	}

	pageSize := int(req.PageSize)
	if pageSize <= 0 {
		pageSize = pagination.DefaultPageSize
	}
	if pageSize > pagination.MaxPageSize {
		pageSize = pagination.MaxPageSize
	}

	items, err := s.repo.ListWorkOrders(ctx, s.db, shopID, filter, pagination.Pagination{
		PageToken: req.PageToken,
		PageSize:  pageSize,
	})
	if err != nil {
		if errors.Is(err, pagination.ErrInvalidPageToken) {
			return domain.ListWorkOrderResponse{}, pagination.ErrInvalidPageToken
		}
		return domain.ListWorkOrderResponse{}, err
	}

	items, pageInfo := pagination.Trim(items, pageSize, func(order *domain.WorkOrder) string {
		return order.ID.String()
	})

	orders := make([]domain.WorkOrder, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		orders = append(orders, *item)
	}

	return domain.ListWorkOrderResponse{PageInfo: pageInfo, WorkOrders: orders}, nil
}

func (s *Service) UpdateStatus(ctx context.Context, req domain.UpdateStatusRequest) (domain.WorkOrder, error) {
	next := domain.Status(strings.ToLower(strings.TrimSpace(req.Status)))
	if !next.Valid() {
		return domain.WorkOrder{}, domain.ErrInvalidStatus
	}

	order, err := s.loadWorkOrder(ctx, req.ID)
	if err != nil {
		return domain.WorkOrder{}, err
	}
	if order.Status == next {
		return *order, nil
	}
	if !order.Status.CanTransition(next) {
		return domain.WorkOrder{}, domain.ErrInvalidTransition
	}

	previous := order.Status
	order.Status = next
	order.UpdatedAt = time.Now().UTC()
	if err := s.repo.UpdateStatus(ctx, s.db, order); err != nil {
		return domain.WorkOrder{}, err
	}

	logger.WithContext(ctx, s.log).Info("work order status changed",
		zap.String("work_order_id", order.ID.String()),
		zap.String("from", string(previous)),
		zap.String("to", string(next)),
	)
	return *order, nil
}

// Totals never fails because of tax settings: without them the order is
// priced with zero tax and flagged as loading.
func (s *Service) Totals(ctx context.Context, id string) (domain.Totals, error) {
	order, err := s.loadWorkOrder(ctx, id)
	if err != nil {
		return domain.Totals{}, err
	}
	log := logger.WithContext(ctx, s.log).With(zap.String("work_order_id", order.ID.String()))

	lines, err := s.repo.ListJobLines(ctx, s.db, order.ShopID, order.ID)
	if err != nil {
		return domain.Totals{}, err
	}
	parts, err := s.repo.ListParts(ctx, s.db, order.ShopID, order.ID)
	if err != nil {
		return domain.Totals{}, err
	}

	var customer *customerdomain.Customer
	if order.CustomerID != nil {
		found, err := s.customers.GetByID(ctx, customerdomain.GetCustomerRequest{ID: order.CustomerID.String()})
		switch {
		case err == nil:
			customer = &found
		case errors.Is(err, customerdomain.ErrNotFound):
			log.Warn("work order customer missing, pricing without exemptions")
		default:
			return domain.Totals{}, err
		}
	}

	var notice string
	settings, err := s.settings.GetSettings(ctx, order.ShopID)
	if err != nil {
		log.Warn("tax settings unavailable, totals computed without tax", zap.Error(err))
		settings = nil
		notice = domain.NoticeTaxSettingsUnavailable
	}

	totals := DeriveTotals(lines, parts, customer, settings, s.policy)
	totals.WorkOrderID = order.ID
	totals.Notice = notice

	s.metrics.RecordTaxCalculation(ctx, string(totals.Breakdown.CalculationMethod), totals.Outcome())
	return totals, nil
}

func (s *Service) AddJobLine(ctx context.Context, req domain.JobLineRequest) (domain.JobLine, error) {
	order, err := s.loadEditable(ctx, req.WorkOrderID)
	if err != nil {
		return domain.JobLine{}, err
	}

	line := domain.JobLine{
		ID:             s.genID.Generate(),
		ShopID:         order.ShopID,
		WorkOrderID:    order.ID,
		EstimatedHours: decimal.Zero,
		LaborRate:      decimal.Zero,
	}
	if err := applyJobLine(&line, req); err != nil {
		return domain.JobLine{}, err
	}
	if line.Name == "" {
		return domain.JobLine{}, domain.ErrInvalidName
	}
	now := time.Now().UTC()
	line.CreatedAt = now
	line.UpdatedAt = now

	if err := s.repo.InsertJobLine(ctx, s.db, &line); err != nil {
		return domain.JobLine{}, err
	}
	return line, nil
}

func (s *Service) UpdateJobLine(ctx context.Context, req domain.JobLineRequest) (domain.JobLine, error) {
	order, err := s.loadEditable(ctx, req.WorkOrderID)
	if err != nil {
		return domain.JobLine{}, err
	}
	lineID, err := parseID(req.JobLineID)
	if err != nil {
		return domain.JobLine{}, err
	}

	line, err := s.repo.FindJobLine(ctx, s.db, order.ShopID, order.ID, lineID)
	if err != nil {
		return domain.JobLine{}, err
	}
	if line == nil {
		return domain.JobLine{}, domain.ErrNotFound
	}

	if err := applyJobLine(line, req); err != nil {
		return domain.JobLine{}, err
	}
	line.UpdatedAt = time.Now().UTC()

	if err := s.repo.UpdateJobLine(ctx, s.db, line); err != nil {
		return domain.JobLine{}, err
	}
	return *line, nil
}

func (s *Service) RemoveJobLine(ctx context.Context, workOrderID, jobLineID string) error {
	order, err := s.loadEditable(ctx, workOrderID)
	if err != nil {
		return err
	}
	lineID, err := parseID(jobLineID)
	if err != nil {
		return err
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.DeleteJobLine(ctx, tx, order.ShopID, order.ID, lineID); err != nil {
			return err
		}
		return s.repo.DetachParts(ctx, tx, order.ShopID, lineID)
	})
}

func (s *Service) AddPart(ctx context.Context, req domain.PartRequest) (domain.Part, error) {
	order, err := s.loadEditable(ctx, req.WorkOrderID)
	if err != nil {
		return domain.Part{}, err
	}

	part := domain.Part{
		ID:          s.genID.Generate(),
		ShopID:      order.ShopID,
		WorkOrderID: order.ID,
		Quantity:    decimal.NewFromInt(1),
		UnitPrice:   decimal.Zero,
	}
	if err := s.applyPart(ctx, order, &part, req); err != nil {
		return domain.Part{}, err
	}
	if part.Name == "" {
		return domain.Part{}, domain.ErrInvalidName
	}
	now := time.Now().UTC()
	part.CreatedAt = now
	part.UpdatedAt = now

	if err := s.repo.InsertPart(ctx, s.db, &part); err != nil {
		return domain.Part{}, err
	}
	return part, nil
}

func (s *Service) UpdatePart(ctx context.Context, req domain.PartRequest) (domain.Part, error) {
	order, err := s.loadEditable(ctx, req.WorkOrderID)
	if err != nil {
		return domain.Part{}, err
	}
	partID, err := parseID(req.PartID)
	if err != nil {
		return domain.Part{}, err
	}

	part, err := s.repo.FindPart(ctx, s.db, order.ShopID, order.ID, partID)
	if err != nil {
		return domain.Part{}, err
	}
	if part == nil {
		return domain.Part{}, domain.ErrNotFound
	}

	if err := s.applyPart(ctx, order, part, req); err != nil {
		return domain.Part{}, err
	}
	part.UpdatedAt = time.Now().UTC()

	if err := s.repo.UpdatePart(ctx, s.db, part); err != nil {
		return domain.Part{}, err
	}
	return *part, nil
}

func (s *Service) RemovePart(ctx context.Context, workOrderID, partID string) error {
	order, err := s.loadEditable(ctx, workOrderID)
	if err != nil {
		return err
	}
	id, err := parseID(partID)
	if err != nil {
		return err
	}
	return s.repo.DeletePart(ctx, s.db, order.ShopID, order.ID, id)
}

func (s *Service) loadWorkOrder(ctx context.Context, rawID string) (*domain.WorkOrder, error) {
	shopID, ok := shopcontext.ShopIDFromContext(ctx)
	if !ok {
		return nil, domain.ErrInvalidShop
	}
	id, err := parseID(rawID)
	if err != nil {
		return nil, err
	}

	order, err := s.repo.FindWorkOrder(ctx, s.db, shopID, id)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, domain.ErrNotFound
	}
	return order, nil
}

func (s *Service) loadEditable(ctx context.Context, rawID string) (*domain.WorkOrder, error) {
	order, err := s.loadWorkOrder(ctx, rawID)
	if err != nil {
		return nil, err
	}
	if order.Status.Locked() {
		return nil, domain.ErrWorkOrderLocked
	}
	return order, nil
}

func (s *Service) applyPart(ctx context.Context, order *domain.WorkOrder, part *domain.Part, req domain.PartRequest) error {
	if req.Name != nil {
		part.Name = strings.TrimSpace(*req.Name)
		if part.Name == "" {
			return domain.ErrInvalidName
		}
	}
	if req.PartNumber != nil {
		part.PartNumber = strings.TrimSpace(*req.PartNumber)
	}
	if req.Quantity != nil {
		quantity := req.Quantity.Round(domain.QuantityScale)
		if !quantity.IsPositive() {
			return domain.ErrInvalidQuantity
		}
		part.Quantity = quantity
	}
	if req.UnitPrice != nil {
		if req.UnitPrice.IsNegative() {
			return domain.ErrInvalidAmount
		}
		part.UnitPrice = req.UnitPrice.Round(domain.QuantityScale)
	}
	if req.JobLineID != nil {
		raw := strings.TrimSpace(*req.JobLineID)
		if raw == "" {
			part.JobLineID = nil
		} else {
			lineID, err := parseID(raw)
			if err != nil {
				return domain.ErrInvalidJobLine
			}
			line, err := s.repo.FindJobLine(ctx, s.db, order.ShopID, order.ID, lineID)
			if err != nil {
				return err
			}
			if line == nil {
				return domain.ErrInvalidJobLine
			}
			part.JobLineID = &line.ID
		}
	}
	part.TotalPrice = calculator.Round(part.Quantity.Mul(part.UnitPrice))
	return nil
}

func applyJobLine(line *domain.JobLine, req domain.JobLineRequest) error {
	if req.Name != nil {
		line.Name = strings.TrimSpace(*req.Name)
		if line.Name == "" {
			return domain.ErrInvalidName
		}
	}
	if req.Category != nil {
		line.Category = strings.TrimSpace(*req.Category)
	}
	if req.EstimatedHours != nil {
		if req.EstimatedHours.IsNegative() {
			return domain.ErrInvalidQuantity
		}
		line.EstimatedHours = req.EstimatedHours.Round(domain.QuantityScale)
	}
	if req.LaborRate != nil {
		if req.LaborRate.IsNegative() {
			return domain.ErrInvalidAmount
		}
		line.LaborRate = req.LaborRate.Round(domain.QuantityScale)
	}
	if req.SortOrder != nil {
		line.SortOrder = *req.SortOrder
	}
	line.TotalAmount = lineTotal(line.EstimatedHours, line.LaborRate)
	return nil
}

func parseID(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, domain.ErrInvalidID
	}
	return id, nil
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
