package router

import (
	"collectivewatch/internal/handler"
	"collectivewatch/pkg/jwt"
	"collectivewatch/pkg/log"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/viper"
)

type RouterDeps struct {
	Logger        *log.Logger
	Config        *viper.Viper
	JWT           *jwt.JWT
	Registry      *prometheus.Registry
	EngineHandler *handler.EngineHandler
}
