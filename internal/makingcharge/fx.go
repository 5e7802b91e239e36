package makingcharge

import (
	"github.com/smallbiznis/karat/internal/makingcharge/repository"
	"github.com/smallbiznis/karat/internal/makingcharge/service"
	"go.uber.org/fx"
)

var Module = fx.Module("makingcharge.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
