package service

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/shopdesk/internal/cache"
	"github.com/smallbiznis/shopdesk/internal/config"
	"github.com/smallbiznis/shopdesk/internal/events"
	"github.com/smallbiznis/shopdesk/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/shopdesk/internal/observability/metrics"
	taxdomain "github.com/smallbiznis/shopdesk/internal/tax/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

type ProviderParams struct {
	fx.In

	Log       *zap.Logger
	GenID     *snowflake.Node
	Repo      taxdomain.Repository
	Store     cache.Store[*taxdomain.TaxSettings]
	Defaults  *config.TaxDefaultsHolder
	Publisher events.Publisher
	Metrics   *obsmetrics.Metrics `optional:"true"`
}

// Provider caches shop tax settings. Loads are sequenced per shop: a load only
// reaches the cache if no newer load, update or invalidation started after it.
type Provider struct {
	log       *zap.Logger
	genID     *snowflake.Node
	repo      taxdomain.Repository
	store     cache.Store[*taxdomain.TaxSettings]
	defaults  *config.TaxDefaultsHolder
	publisher events.Publisher
	metrics   *obsmetrics.Metrics

	mu    sync.Mutex
	shops map[snowflake.ID]*shopSequence
}

type shopSequence struct {
	mu        sync.Mutex
	started   uint64
	committed uint64
}

func NewProvider(p ProviderParams) *Provider {
	return &Provider{
		log:       p.Log.Named("tax.service"),
		genID:     p.GenID,
		repo:      p.Repo,
		store:     p.Store,
		defaults:  p.Defaults,
		publisher: p.Publisher,
		metrics:   p.Metrics,
		shops:     make(map[snowflake.ID]*shopSequence),
	}
}

func (s *Provider) GetSettings(ctx context.Context, shopID snowflake.ID) (*taxdomain.TaxSettings, error) {
	if shopID == 0 {
		return nil, taxdomain.ErrInvalidShop
	}

	cached, ok, err := s.store.Get(ctx, cacheKey(shopID))
	if err != nil {
		logger.WithContext(ctx, s.log).Warn("tax settings cache read failed", zap.Error(err))
	}
	if ok && cached != nil {
		s.metrics.RecordSettingsCache(ctx, "hit")
		return cached.Clone(), nil
	}

	s.metrics.RecordSettingsCache(ctx, "miss")
	return s.Refresh(ctx, shopID)
}

func (s *Provider) Refresh(ctx context.Context, shopID snowflake.ID) (*taxdomain.TaxSettings, error) {
	if shopID == 0 {
		return nil, taxdomain.ErrInvalidShop
	}

	seq := s.sequence(shopID)
	ticket := seq.begin()

	settings, err := s.loadOrCreate(ctx, shopID)
	if err != nil {
		return nil, err
	}

	seq.mu.Lock()
	defer seq.mu.Unlock()

	if seq.started != ticket {
		// A newer load, update or invalidation began while this one was in flight.
		s.metrics.RecordSettingsCache(ctx, "stale")
		if seq.committed > ticket {
			if newer, ok, _ := s.store.Get(ctx, cacheKey(shopID)); ok && newer != nil {
				return newer.Clone(), nil
			}
		}
		return settings, nil
	}

	s.put(ctx, shopID, settings)
	seq.committed = ticket
	return settings.Clone(), nil
}

func (s *Provider) UpdateSettings(ctx context.Context, shopID snowflake.ID, req taxdomain.UpdateSettingsRequest) (*taxdomain.TaxSettings, error) {
	if shopID == 0 {
		return nil, taxdomain.ErrInvalidShop
	}
	log := logger.WithContext(ctx, s.log)

	current, err := s.loadOrCreate(ctx, shopID)
	if err != nil {
		return nil, err
	}

	updated := current.Clone()
	if err := applyPatch(updated, req); err != nil {
		s.metrics.RecordSettingsUpdate(ctx, "invalid")
		return nil, err
	}
	updated.TaxCode = slug.Make(updated.TaxLabel)
	updated.UpdatedAt = time.Now().UTC()
	if err := updated.Validate(); err != nil {
		s.metrics.RecordSettingsUpdate(ctx, "invalid")
		return nil, err
	}

	seq := s.sequence(shopID)
	ticket := seq.begin()

	if err := s.repo.Update(ctx, updated); err != nil {
		s.metrics.RecordSettingsUpdate(ctx, "error")
		log.Error("persist tax settings failed", zap.Error(err))
		return nil, err
	}

	seq.mu.Lock()
	if seq.started == ticket {
		s.put(ctx, shopID, updated)
		seq.committed = ticket
	} else {
		// Storage order between overlapping writes is unknown here; reload on next read.
		s.metrics.RecordSettingsCache(ctx, "stale")
		s.evict(ctx, shopID)
	}
	seq.mu.Unlock()

	s.metrics.RecordSettingsUpdate(ctx, "ok")
	s.publishUpdated(ctx, updated)

	log.Info("tax settings updated",
		zap.String("calculation_method", string(updated.CalculationMethod)),
		zap.String("tax_code", updated.TaxCode),
	)
	return updated.Clone(), nil
}

func (s *Provider) Invalidate(ctx context.Context, shopID snowflake.ID) {
	if shopID == 0 {
		return
	}
	seq := s.sequence(shopID)
	seq.begin()

	seq.mu.Lock()
	defer seq.mu.Unlock()
	s.evict(ctx, shopID)
}

// HandleEvent invalidates the cached copy when another replica changed a shop's
// settings. Events that are not newer than the cached record are ignored.
func (s *Provider) HandleEvent(ctx context.Context, event events.Event) error {
	shopID, err := snowflake.ParseString(strings.TrimSpace(event.ShopID))
	if err != nil || shopID == 0 {
		return taxdomain.ErrInvalidShop
	}

	var payload taxdomain.SettingsUpdatedPayload
	if err := json.Unmarshal(event.Data, &payload); err == nil {
		updatedAt, parseErr := time.Parse(time.RFC3339Nano, payload.UpdatedAt)
		cached, ok, _ := s.store.Get(ctx, cacheKey(shopID))
		if parseErr == nil && ok && cached != nil && !cached.UpdatedAt.Before(updatedAt) {
			return nil
		}
	}

	s.Invalidate(ctx, shopID)
	return nil
}

func (s *Provider) loadOrCreate(ctx context.Context, shopID snowflake.ID) (*taxdomain.TaxSettings, error) {
	settings, err := s.repo.FindByShopID(ctx, shopID)
	if err != nil {
		return nil, err
	}
	if settings != nil {
		return settings, nil
	}

	defaults := s.newDefault(shopID)
	created, err := s.repo.CreateIfAbsent(ctx, defaults)
	if err != nil {
		return nil, err
	}
	if created {
		s.metrics.RecordSettingsCache(ctx, "created")
		logger.WithContext(ctx, s.log).Info("default tax settings created")
		return defaults, nil
	}

	// Another request created the row first; its version wins.
	settings, err = s.repo.FindByShopID(ctx, shopID)
	if err != nil {
		return nil, err
	}
	if settings == nil {
		return nil, taxdomain.ErrNotFound
	}
	return settings, nil
}

func (s *Provider) newDefault(shopID snowflake.ID) *taxdomain.TaxSettings {
	d := config.DefaultTaxDefaults()
	if s.defaults != nil {
		d = s.defaults.Get()
	}
	label := strings.TrimSpace(d.Label)
	if label == "" {
		label = "Tax"
	}

	now := time.Now().UTC()
	return &taxdomain.TaxSettings{
		ID:                   s.genID.Generate(),
		ShopID:               shopID,
		LaborTaxRate:         decimal.NewFromFloat(d.LaborRate).Round(taxdomain.RateScale),
		PartsTaxRate:         decimal.NewFromFloat(d.PartsRate).Round(taxdomain.RateScale),
		CombinedTaxRate:      decimal.NewFromFloat(d.CombinedRate).Round(taxdomain.RateScale),
		CalculationMethod:    taxdomain.CalculationMethod(strings.ToLower(strings.TrimSpace(d.CalculationMethod))),
		DisplayMethod:        taxdomain.DisplayMethod(strings.ToLower(strings.TrimSpace(d.DisplayMethod))),
		ApplyTaxToLabor:      d.ApplyToLabor,
		ApplyTaxToParts:      d.ApplyToParts,
		TaxLabel:             label,
		TaxCode:              slug.Make(label),
		TaxExemptCustomerIDs: datatypes.JSONSlice[string]{},
		CreatedAt:            now,
		UpdatedAt:            now,
	}
}

func (s *Provider) put(ctx context.Context, shopID snowflake.ID, settings *taxdomain.TaxSettings) {
	if err := s.store.Set(ctx, cacheKey(shopID), settings.Clone()); err != nil {
		logger.WithContext(ctx, s.log).Warn("tax settings cache write failed", zap.Error(err))
	}
}

func (s *Provider) evict(ctx context.Context, shopID snowflake.ID) {
	if err := s.store.Delete(ctx, cacheKey(shopID)); err != nil {
		logger.WithContext(ctx, s.log).Warn("tax settings cache delete failed", zap.Error(err))
	}
}

func (s *Provider) publishUpdated(ctx context.Context, settings *taxdomain.TaxSettings) {
	event, err := events.New(ctx, events.TypeTaxSettingsUpdated, settings.ShopID.String(), taxdomain.SettingsUpdatedPayload{
		SettingsID: settings.ID.String(),
		ShopID:     settings.ShopID.String(),
		UpdatedAt:  settings.UpdatedAt.Format(time.RFC3339Nano),
	})
	if err == nil {
		err = s.publisher.Publish(ctx, event)
	}
	if err != nil {
		logger.WithContext(ctx, s.log).Warn("publish tax_settings.updated failed", zap.Error(err))
	}
}

func (s *Provider) sequence(shopID snowflake.ID) *shopSequence {
	s.mu.Lock()
	defer s.mu.Unlock()
	seq, ok := s.shops[shopID]
	if !ok {
		seq = &shopSequence{}
		s.shops[shopID] = seq
	}
	return seq
}

func (q *shopSequence) begin() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.started++
	return q.started
}

func cacheKey(shopID snowflake.ID) string {
	return cache.Key("shop", shopID.String())
}

func applyPatch(settings *taxdomain.TaxSettings, req taxdomain.UpdateSettingsRequest) error {
	if req.LaborTaxRate != nil {
		settings.LaborTaxRate = req.LaborTaxRate.Round(taxdomain.RateScale)
	}
	if req.PartsTaxRate != nil {
		settings.PartsTaxRate = req.PartsTaxRate.Round(taxdomain.RateScale)
	}
	if req.CombinedTaxRate != nil {
		settings.CombinedTaxRate = req.CombinedTaxRate.Round(taxdomain.RateScale)
	}
	if req.CalculationMethod != nil {
		settings.CalculationMethod = taxdomain.CalculationMethod(strings.ToLower(strings.TrimSpace(string(*req.CalculationMethod))))
	}
	if req.DisplayMethod != nil {
		settings.DisplayMethod = taxdomain.DisplayMethod(strings.ToLower(strings.TrimSpace(string(*req.DisplayMethod))))
	}
	if req.ApplyTaxToLabor != nil {
		settings.ApplyTaxToLabor = *req.ApplyTaxToLabor
	}
	if req.ApplyTaxToParts != nil {
		settings.ApplyTaxToParts = *req.ApplyTaxToParts
	}
	if req.TaxLabel != nil {
		label := strings.TrimSpace(*req.TaxLabel)
		if label == "" {
			return taxdomain.ErrInvalidTaxLabel
		}
		settings.TaxLabel = label
	}
	if req.TaxExemptCustomerIDs != nil {
		ids := make(datatypes.JSONSlice[string], 0, len(*req.TaxExemptCustomerIDs))
		seen := make(map[string]struct{}, len(*req.TaxExemptCustomerIDs))
		for _, raw := range *req.TaxExemptCustomerIDs {
			id := strings.TrimSpace(raw)
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
		settings.TaxExemptCustomerIDs = ids
	}
	return nil
}

var _ taxdomain.Provider = (*Provider)(nil)
