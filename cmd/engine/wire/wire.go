//go:build wireinject
// +build wireinject

package wire

import (
	"collectivewatch/internal/controller"
	"collectivewatch/internal/handler"
	"collectivewatch/internal/repository"
	"collectivewatch/internal/router"
	"collectivewatch/internal/server"
	"collectivewatch/pkg/app"
	"collectivewatch/pkg/jwt"
	"collectivewatch/pkg/log"
	"collectivewatch/pkg/server/http"
	"collectivewatch/pkg/sid"

	"github.com/google/wire"
	"github.com/spf13/viper"
)

var repositorySet = wire.NewSet(
	repository.NewDB,
	repository.NewRedis,
	repository.NewRepository,
	repository.NewChangeJournalRepository,
	repository.NewCollectiveClient,
)

var controllerSet = wire.NewSet(
	controller.NewMetricsReporter,
	controller.NewCollectiveController,
)

var handlerSet = wire.NewSet(
	handler.NewHandler,
	handler.NewEngineHandler,
)

var serverSet = wire.NewSet(
	server.NewRegistry,
	server.NewHTTPServer,
	server.NewControllerServer,
)

// build App
func newApp(
	httpServer *http.Server,
	controllerServer *server.ControllerServer,
) *app.App {
	return app.NewApp(
		app.WithServer(httpServer, controllerServer),
		app.WithName("collectivewatch"),
	)
}

func NewWire(*viper.Viper, *log.Logger) (*app.App, func(), error) {
	panic(wire.Build(
		repositorySet,
		controllerSet,
		handlerSet,
		serverSet,
		wire.Struct(new(router.RouterDeps), "*"),
		sid.NewSid,
		jwt.NewJwt,
		newApp,
	))
}
