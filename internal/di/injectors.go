//go:build wireinject
// +build wireinject

package di

import (
	"wakaproof/internal"
	"wakaproof/internal/aggregate"
	"wakaproof/internal/archive"
	"wakaproof/internal/cli"
	"wakaproof/internal/controllers"
	"wakaproof/internal/proof"
	"wakaproof/internal/providers"
	"wakaproof/internal/records"
	"wakaproof/internal/scheduler"
	"wakaproof/internal/services"
	"wakaproof/internal/source"
	"wakaproof/internal/store"
	"wakaproof/internal/structures"

	wire "github.com/google/wire"
)

var pipelineSet = wire.NewSet(
	providers.NewConfigProvider,
	providers.NewLogProvider,
	providers.NewMetricsProvider,
	providers.NewClockProvider,

	source.NewClient,
	wire.Bind(new(source.ClientInterface), new(*source.Client)),
	proof.NewSources,
	proof.NewCollector,
	wire.Bind(new(proof.CollectorInterface), new(*proof.Collector)),
	records.NewBuilder,
	wire.Bind(new(records.BuilderInterface), new(*records.Builder)),
	store.NewFileStore,
	wire.Bind(new(store.Store), new(*store.FileStore)),
	aggregate.NewAggregator,
	wire.Bind(new(aggregate.AggregatorInterface), new(*aggregate.Aggregator)),
	services.NewDailyService,
	wire.Bind(new(services.DailyServiceInterface), new(*services.DailyService)),
)

func InitApp(cfg *structures.CliFlags) (*internal.App, error) {

	wire.Build(
		pipelineSet,
		providers.NewInstrumentedCacheProvider,

		scheduler.NewScheduler,
		controllers.NewApiController,
		controllers.NewHealthController,
		internal.InitRoutes,
		internal.NewApp,
	)

	return nil, nil
}

func InitCommands(cfg *structures.CliFlags) (*cli.Commands, error) {

	wire.Build(
		pipelineSet,

		archive.NewZstdCompressor,
		wire.Bind(new(archive.Compressor), new(*archive.ZstdCompression)),
		archive.NewFileManager,
		cli.NewCommands,
	)

	return nil, nil
}
