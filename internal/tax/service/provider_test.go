package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/shopdesk/internal/cache"
	"github.com/smallbiznis/shopdesk/internal/config"
	"github.com/smallbiznis/shopdesk/internal/events"
	taxdomain "github.com/smallbiznis/shopdesk/internal/tax/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeRepo struct {
	mu        sync.Mutex
	rows      map[snowflake.ID]*taxdomain.TaxSettings
	finds     int
	creates   int
	updates   int
	updateErr error
	onFind    func(call int)
	onUpdate  func(settings *taxdomain.TaxSettings)
	// lostRace simulates another request inserting the row first.
	lostRace *taxdomain.TaxSettings
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{rows: make(map[snowflake.ID]*taxdomain.TaxSettings)}
}

func (r *fakeRepo) FindByShopID(_ context.Context, shopID snowflake.ID) (*taxdomain.TaxSettings, error) {
	r.mu.Lock()
	r.finds++
	call := r.finds
	row := r.rows[shopID].Clone()
	hook := r.onFind
	r.mu.Unlock()

	if hook != nil {
		hook(call)
	}
	return row, nil
}

func (r *fakeRepo) CreateIfAbsent(_ context.Context, settings *taxdomain.TaxSettings) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.creates++
	if r.lostRace != nil {
		r.rows[settings.ShopID] = r.lostRace.Clone()
		r.lostRace = nil
		return false, nil
	}
	if _, ok := r.rows[settings.ShopID]; ok {
		return false, nil
	}
	r.rows[settings.ShopID] = settings.Clone()
	return true, nil
}

func (r *fakeRepo) Update(_ context.Context, settings *taxdomain.TaxSettings) error {
	r.mu.Lock()
	r.updates++
	if r.updateErr != nil {
		r.mu.Unlock()
		return r.updateErr
	}
	if _, ok := r.rows[settings.ShopID]; !ok {
		r.mu.Unlock()
		return taxdomain.ErrNotFound
	}
	r.rows[settings.ShopID] = settings.Clone()
	hook := r.onUpdate
	r.mu.Unlock()

	if hook != nil {
		hook(settings)
	}
	return nil
}

func (r *fakeRepo) stored(shopID snowflake.ID) *taxdomain.TaxSettings {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rows[shopID].Clone()
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, event events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func newTestProvider(t *testing.T, repo *fakeRepo, publisher events.Publisher) (*Provider, cache.Store[*taxdomain.TaxSettings]) {
	t.Helper()
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	if publisher == nil {
		publisher = events.NewNoopPublisher()
	}
	store := cache.NewMemoryStore[*taxdomain.TaxSettings](time.Minute)
	return NewProvider(ProviderParams{
		Log:   zap.NewNop(),
		GenID: node,
		Repo:  repo,
		Store: store,
		Defaults: config.NewStaticTaxDefaultsHolder(config.TaxDefaults{
			Label:             "Sales Tax",
			LaborRate:         8.25,
			PartsRate:         6,
			CalculationMethod: "separate",
			DisplayMethod:     "exclusive",
			ApplyToLabor:      true,
			ApplyToParts:      true,
		}),
		Publisher: publisher,
	}), store
}

func TestGetSettingsCreatesDefaultsOnce(t *testing.T) {
	repo := newFakeRepo()
	provider, _ := newTestProvider(t, repo, nil)
	shopID := snowflake.ID(42)

	first, err := provider.GetSettings(context.Background(), shopID)
	require.NoError(t, err)
	assert.Equal(t, "Sales Tax", first.TaxLabel)
	assert.Equal(t, "sales-tax", first.TaxCode)
	assert.True(t, first.LaborTaxRate.Equal(decimal.RequireFromString("8.25")))
	assert.True(t, first.PartsTaxRate.Equal(decimal.NewFromInt(6)))
	assert.Equal(t, taxdomain.CalculationSeparate, first.CalculationMethod)

	second, err := provider.GetSettings(context.Background(), shopID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 1, repo.creates)
	assert.Equal(t, 1, repo.finds, "second read is served from cache")
}

func TestGetSettingsUsesConcurrentlyCreatedRow(t *testing.T) {
	repo := newFakeRepo()
	winner := &taxdomain.TaxSettings{
		ID:                snowflake.ID(7),
		ShopID:            snowflake.ID(42),
		LaborTaxRate:      decimal.NewFromInt(5),
		CalculationMethod: taxdomain.CalculationCombined,
		DisplayMethod:     taxdomain.DisplayExclusive,
		TaxLabel:          "GST",
		TaxCode:           "gst",
	}
	repo.lostRace = winner
	provider, _ := newTestProvider(t, repo, nil)

	got, err := provider.GetSettings(context.Background(), snowflake.ID(42))
	require.NoError(t, err)
	assert.Equal(t, snowflake.ID(7), got.ID)
	assert.Equal(t, "GST", got.TaxLabel)
}

func TestGetSettingsRejectsMissingShop(t *testing.T) {
	provider, _ := newTestProvider(t, newFakeRepo(), nil)
	_, err := provider.GetSettings(context.Background(), 0)
	assert.ErrorIs(t, err, taxdomain.ErrInvalidShop)
}

func TestUpdateSettingsPublishesAndCaches(t *testing.T) {
	repo := newFakeRepo()
	publisher := &recordingPublisher{}
	provider, store := newTestProvider(t, repo, publisher)
	shopID := snowflake.ID(42)
	ctx := context.Background()

	_, err := provider.GetSettings(ctx, shopID)
	require.NoError(t, err)

	label := "State Tax"
	method := taxdomain.CalculationCombined
	rate := decimal.RequireFromString("7.5")
	updated, err := provider.UpdateSettings(ctx, shopID, taxdomain.UpdateSettingsRequest{
		TaxLabel:          &label,
		CalculationMethod: &method,
		CombinedTaxRate:   &rate,
	})
	require.NoError(t, err)
	assert.Equal(t, "state-tax", updated.TaxCode)
	assert.True(t, updated.CombinedTaxRate.Equal(rate))

	cached, ok, err := store.Get(ctx, cacheKey(shopID))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "State Tax", cached.TaxLabel)

	require.Len(t, publisher.events, 1)
	assert.Equal(t, events.TypeTaxSettingsUpdated, publisher.events[0].Type)
	assert.Equal(t, shopID.String(), publisher.events[0].ShopID)
}

func TestUpdateSettingsFailureLeavesCacheUntouched(t *testing.T) {
	repo := newFakeRepo()
	publisher := &recordingPublisher{}
	provider, _ := newTestProvider(t, repo, publisher)
	shopID := snowflake.ID(42)
	ctx := context.Background()

	before, err := provider.GetSettings(ctx, shopID)
	require.NoError(t, err)

	repo.updateErr = errors.New("connection reset")
	label := "Broken"
	_, err = provider.UpdateSettings(ctx, shopID, taxdomain.UpdateSettingsRequest{TaxLabel: &label})
	require.Error(t, err)

	after, err := provider.GetSettings(ctx, shopID)
	require.NoError(t, err)
	assert.Equal(t, before.TaxLabel, after.TaxLabel)
	assert.Empty(t, publisher.events)
}

func TestUpdateSettingsRoundsRatesToStoredScale(t *testing.T) {
	repo := newFakeRepo()
	provider, _ := newTestProvider(t, repo, nil)
	shopID := snowflake.ID(42)
	ctx := context.Background()

	rate := decimal.RequireFromString("8.12345")
	updated, err := provider.UpdateSettings(ctx, shopID, taxdomain.UpdateSettingsRequest{LaborTaxRate: &rate})
	require.NoError(t, err)
	assert.Equal(t, "8.1235", updated.LaborTaxRate.String())

	cached, err := provider.GetSettings(ctx, shopID)
	require.NoError(t, err)
	assert.True(t, cached.LaborTaxRate.Equal(repo.stored(shopID).LaborTaxRate))
}

func TestUpdateSettingsValidation(t *testing.T) {
	repo := newFakeRepo()
	provider, _ := newTestProvider(t, repo, nil)
	ctx := context.Background()

	tooHigh := decimal.NewFromInt(101)
	_, err := provider.UpdateSettings(ctx, snowflake.ID(42), taxdomain.UpdateSettingsRequest{LaborTaxRate: &tooHigh})
	assert.ErrorIs(t, err, taxdomain.ErrInvalidTaxRate)

	blank := "   "
	_, err = provider.UpdateSettings(ctx, snowflake.ID(42), taxdomain.UpdateSettingsRequest{TaxLabel: &blank})
	assert.ErrorIs(t, err, taxdomain.ErrInvalidTaxLabel)

	unknown := taxdomain.CalculationMethod("compound")
	_, err = provider.UpdateSettings(ctx, snowflake.ID(42), taxdomain.UpdateSettingsRequest{CalculationMethod: &unknown})
	assert.ErrorIs(t, err, taxdomain.ErrInvalidCalculationMethod)

	assert.Zero(t, repo.updates)
}

func TestRefreshDiscardsResultOvertakenByUpdate(t *testing.T) {
	repo := newFakeRepo()
	provider, _ := newTestProvider(t, repo, nil)
	shopID := snowflake.ID(42)
	ctx := context.Background()

	_, err := provider.GetSettings(ctx, shopID)
	require.NoError(t, err)

	entered := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	repo.mu.Lock()
	repo.onFind = func(int) {
		blocked := false
		once.Do(func() { blocked = true })
		if blocked {
			close(entered)
			<-release
		}
	}
	repo.mu.Unlock()

	done := make(chan *taxdomain.TaxSettings)
	go func() {
		stale, _ := provider.Refresh(ctx, shopID)
		done <- stale
	}()
	<-entered

	label := "Fresh"
	_, err = provider.UpdateSettings(ctx, shopID, taxdomain.UpdateSettingsRequest{TaxLabel: &label})
	require.NoError(t, err)

	close(release)
	refreshed := <-done
	require.NotNil(t, refreshed)
	assert.Equal(t, "Fresh", refreshed.TaxLabel, "newer committed state is returned")

	current, err := provider.GetSettings(ctx, shopID)
	require.NoError(t, err)
	assert.Equal(t, "Fresh", current.TaxLabel)
}

func TestRefreshDiscardsResultOvertakenByNewerRefresh(t *testing.T) {
	repo := newFakeRepo()
	provider, _ := newTestProvider(t, repo, nil)
	shopID := snowflake.ID(42)
	ctx := context.Background()

	_, err := provider.GetSettings(ctx, shopID)
	require.NoError(t, err)

	entered := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	repo.mu.Lock()
	repo.onFind = func(int) {
		blocked := false
		once.Do(func() { blocked = true })
		if blocked {
			close(entered)
			<-release
		}
	}
	repo.mu.Unlock()

	done := make(chan *taxdomain.TaxSettings)
	go func() {
		older, _ := provider.Refresh(ctx, shopID)
		done <- older
	}()
	<-entered

	// The older fetch already read its row; storage changes behind it.
	repo.mu.Lock()
	repo.rows[shopID].TaxLabel = "Newer"
	repo.mu.Unlock()

	newer, err := provider.Refresh(ctx, shopID)
	require.NoError(t, err)
	assert.Equal(t, "Newer", newer.TaxLabel)

	close(release)
	older := <-done
	require.NotNil(t, older)
	assert.Equal(t, "Newer", older.TaxLabel, "late response yields to the newer load")

	current, err := provider.GetSettings(ctx, shopID)
	require.NoError(t, err)
	assert.Equal(t, "Newer", current.TaxLabel)
}

func TestOverlappingUpdatesServeStoredSettings(t *testing.T) {
	repo := newFakeRepo()
	provider, _ := newTestProvider(t, repo, nil)
	shopID := snowflake.ID(42)
	ctx := context.Background()

	_, err := provider.GetSettings(ctx, shopID)
	require.NoError(t, err)

	persisted := make(chan struct{})
	release := make(chan struct{})
	repo.mu.Lock()
	repo.onUpdate = func(settings *taxdomain.TaxSettings) {
		if settings.TaxLabel == "First" {
			close(persisted)
			<-release
		}
	}
	repo.mu.Unlock()

	done := make(chan error)
	go func() {
		first := "First"
		_, err := provider.UpdateSettings(ctx, shopID, taxdomain.UpdateSettingsRequest{TaxLabel: &first})
		done <- err
	}()
	<-persisted

	second := "Second"
	_, err = provider.UpdateSettings(ctx, shopID, taxdomain.UpdateSettingsRequest{TaxLabel: &second})
	require.NoError(t, err)

	close(release)
	require.NoError(t, <-done)

	served, err := provider.GetSettings(ctx, shopID)
	require.NoError(t, err)
	assert.Equal(t, repo.stored(shopID).TaxLabel, served.TaxLabel)
	assert.Equal(t, "Second", served.TaxLabel)
}

func TestInvalidateForcesReload(t *testing.T) {
	repo := newFakeRepo()
	provider, _ := newTestProvider(t, repo, nil)
	shopID := snowflake.ID(42)
	ctx := context.Background()

	_, err := provider.GetSettings(ctx, shopID)
	require.NoError(t, err)
	provider.Invalidate(ctx, shopID)
	_, err = provider.GetSettings(ctx, shopID)
	require.NoError(t, err)

	assert.Equal(t, 2, repo.finds)
	assert.Equal(t, 1, repo.creates)
}

func TestHandleEventIgnoresOwnUpdate(t *testing.T) {
	repo := newFakeRepo()
	provider, store := newTestProvider(t, repo, nil)
	shopID := snowflake.ID(42)
	ctx := context.Background()

	current, err := provider.GetSettings(ctx, shopID)
	require.NoError(t, err)

	own, err := events.New(ctx, events.TypeTaxSettingsUpdated, shopID.String(), taxdomain.SettingsUpdatedPayload{
		ShopID:    shopID.String(),
		UpdatedAt: current.UpdatedAt.Format(time.RFC3339Nano),
	})
	require.NoError(t, err)
	require.NoError(t, provider.HandleEvent(ctx, own))
	_, ok, _ := store.Get(ctx, cacheKey(shopID))
	assert.True(t, ok)

	remote, err := events.New(ctx, events.TypeTaxSettingsUpdated, shopID.String(), taxdomain.SettingsUpdatedPayload{
		ShopID:    shopID.String(),
		UpdatedAt: current.UpdatedAt.Add(time.Second).Format(time.RFC3339Nano),
	})
	require.NoError(t, err)
	require.NoError(t, provider.HandleEvent(ctx, remote))
	_, ok, _ = store.Get(ctx, cacheKey(shopID))
	assert.False(t, ok)

	assert.ErrorIs(t, provider.HandleEvent(ctx, events.Event{ShopID: "nope"}), taxdomain.ErrInvalidShop)
}
