package runes

import (
	"context"
	"strings"

	"github.com/btcsuite/btcd/rpcclient"
	"github.com/cockroachdb/errors"
	"github.com/gaze-network/runes-ledger/common/errs"
	"github.com/gaze-network/runes-ledger/core/datasources"
	"github.com/gaze-network/runes-ledger/core/indexer"
	"github.com/gaze-network/runes-ledger/core/types"
	"github.com/gaze-network/runes-ledger/internal/config"
	"github.com/gaze-network/runes-ledger/internal/postgres"
	runeshttphandler "github.com/gaze-network/runes-ledger/modules/runes/api/httphandler"
	runesdatagateway "github.com/gaze-network/runes-ledger/modules/runes/datagateway"
	runesmemory "github.com/gaze-network/runes-ledger/modules/runes/repository/memory"
	runespostgres "github.com/gaze-network/runes-ledger/modules/runes/repository/postgres"
	"github.com/gaze-network/runes-ledger/modules/runes/runes"
	runesusecase "github.com/gaze-network/runes-ledger/modules/runes/usecase"
	"github.com/gaze-network/runes-ledger/pkg/logger"
	"github.com/gaze-network/runes-ledger/pkg/logger/slogx"
	"github.com/gofiber/fiber/v2"
	"github.com/samber/do/v2"
	"github.com/samber/lo"
)

func New(injector do.Injector) (indexer.IndexerWorker, error) {
	ctx := do.MustInvoke[context.Context](injector)
	conf := do.MustInvoke[config.Config](injector)

	var runesDg runesdatagateway.RunesDataGateway
	var cleanupFuncs []func(context.Context) error
	switch strings.ToLower(conf.Modules.Runes.Database) {
	case "postgresql", "postgres", "pg":
		pg, err := postgres.NewPool(ctx, conf.Modules.Runes.Postgres)
		if err != nil {
			if errors.Is(err, errs.InvalidArgument) {
				return nil, errors.Wrap(err, "Invalid Postgres configuration for indexer")
			}
			return nil, errors.Wrap(err, "can't create Postgres connection pool")
		}
		cleanupFuncs = append(cleanupFuncs, func(ctx context.Context) error {
			pg.Close()
			return nil
		})
		runesDg = runespostgres.NewRepository(pg)
	case "memory":
		logger.WarnContext(ctx, "Runes ledger is stored in memory, indexed data is lost on shutdown")
		runesDg = runesmemory.NewRepository()
	default:
		return nil, errors.Wrapf(errs.Unsupported, "%q database for indexer is not supported", conf.Modules.Runes.Database)
	}

	var bitcoinDatasource datasources.Datasource[*types.Block]
	switch strings.ToLower(conf.Modules.Runes.Datasource) {
	case "bitcoin-node":
		btcClient := do.MustInvoke[*rpcclient.Client](injector)
		bitcoinDatasource = datasources.NewBitcoinNode(btcClient)
	case "aws-public-data":
		btcClient := do.MustInvoke[*rpcclient.Client](injector)
		awsDatasource, err := datasources.NewAWSPublicData(ctx, datasources.NewBitcoinNode(btcClient))
		if err != nil {
			return nil, errors.Wrap(err, "can't create AWS public data datasource")
		}
		bitcoinDatasource = awsDatasource
	default:
		return nil, errors.Wrapf(errs.Unsupported, "%q datasource is not supported", conf.Modules.Runes.Datasource)
	}
	logger.InfoContext(ctx, "Runes module configured",
		slogx.String("database", conf.Modules.Runes.Database),
		slogx.String("datasource", bitcoinDatasource.Name()),
	)

	processor, err := NewProcessor(runesDg, runes.NewDecipherer(), conf.Network, cleanupFuncs)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	if err := processor.VerifyStates(ctx); err != nil {
		return nil, errors.WithStack(err)
	}

	// Mount API
	apiHandlers := lo.Uniq(conf.Modules.Runes.APIHandlers)
	for _, handler := range apiHandlers {
		switch handler {
		case "http":
			httpServer := do.MustInvoke[*fiber.App](injector)
			runesUsecase := runesusecase.New(runesDg)
			runesHTTPHandler := runeshttphandler.New(conf.Network, runesUsecase)
			if err := runesHTTPHandler.Mount(httpServer); err != nil {
				return nil, errors.Wrap(err, "can't mount Runes API")
			}
			logger.InfoContext(ctx, "Mounted HTTP handler")
		default:
			return nil, errors.Wrapf(errs.Unsupported, "%q API handler is not supported", handler)
		}
	}

	return indexer.New(processor, bitcoinDatasource), nil
}
