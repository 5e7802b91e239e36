package catalog

import (
	"github.com/smallbiznis/karat/internal/catalog/domain"
	"github.com/smallbiznis/karat/internal/catalog/repository"
	"github.com/smallbiznis/karat/internal/catalog/service"
	"go.uber.org/fx"
)

var Module = fx.Module("catalog.service",
	fx.Provide(repository.Provide),
	fx.Provide(
		fx.Annotate(
			service.New,
			fx.As(new(domain.Service)),
			fx.As(new(domain.TxReader)),
		),
	),
)
