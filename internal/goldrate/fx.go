package goldrate

import (
	"github.com/smallbiznis/karat/internal/goldrate/domain"
	"github.com/smallbiznis/karat/internal/goldrate/repository"
	"github.com/smallbiznis/karat/internal/goldrate/service"
	"go.uber.org/fx"
)

var Module = fx.Module("goldrate.service",
	fx.Provide(repository.Provide),
	fx.Provide(
		fx.Annotate(
			service.New,
			fx.As(new(domain.Service)),
			fx.As(new(domain.TxReader)),
		),
	),
)
