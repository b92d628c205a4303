package tax

import (
	"github.com/redis/go-redis/v9"
	"github.com/smallbiznis/shopdesk/internal/cache"
	"github.com/smallbiznis/shopdesk/internal/config"
	"github.com/smallbiznis/shopdesk/internal/events"
	taxdomain "github.com/smallbiznis/shopdesk/internal/tax/domain"
	"github.com/smallbiznis/shopdesk/internal/tax/repository"
	"github.com/smallbiznis/shopdesk/internal/tax/service"
	"go.uber.org/fx"
)

var Module = fx.Module("tax.service",
	fx.Provide(repository.NewRepository),
	fx.Provide(provideSettingsStore),
	fx.Provide(service.NewProvider),
	fx.Provide(func(p *service.Provider) taxdomain.Provider { return p }),
	fx.Invoke(subscribeSettingsUpdates),
)

type storeParams struct {
	fx.In

	Config config.Config
	Redis  *redis.Client `optional:"true"`
}

func provideSettingsStore(p storeParams) cache.Store[*taxdomain.TaxSettings] {
	local := cache.NewMemoryStore[*taxdomain.TaxSettings](p.Config.Tax.SettingsTTL)
	if p.Redis == nil {
		return local
	}
	shared := cache.NewRedisStore[*taxdomain.TaxSettings](p.Redis, "tax_settings:", p.Config.Tax.SettingsTTL)
	return cache.NewTieredStore(local, shared)
}

func subscribeSettingsUpdates(consumer *events.KafkaConsumer, provider *service.Provider) {
	consumer.Subscribe(events.TypeTaxSettingsUpdated, provider.HandleEvent)
}
