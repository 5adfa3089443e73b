package main

import (
	"context"
	"flag"
	"fmt"

	"collectivewatch/cmd/engine/wire"
	"collectivewatch/pkg/config"
	"collectivewatch/pkg/log"

	"go.uber.org/zap"
)

// @title           collectivewatch API
// @version         1.0.0
// @description     Change detection and propagation engine for a Liberty collective topology.
// @host      localhost:8000
// @externalDocs.description  OpenAPI
// @externalDocs.url          https://swagger.io/resources/open-api/
func main() {
	var envConf = flag.String("conf", "config/local.yml", "config path, eg: -conf ./config/local.yml")
	flag.Parse()
	conf := config.NewConfig(*envConf)

	logger := log.NewLog(conf)

	app, cleanup, err := wire.NewWire(conf, logger)
	if err != nil {
		panic(err)
	}
	defer cleanup()
	logger.Info("server start", zap.String("host", fmt.Sprintf("http://%s:%d", conf.GetString("http.host"), conf.GetInt("http.port"))))
	logger.Info("docs addr", zap.String("addr", fmt.Sprintf("http://%s:%d/swagger/index.html", conf.GetString("http.host"), conf.GetInt("http.port"))))
	logger.Info("collective", zap.String("api_url", conf.GetString("collective.api_url")), zap.Duration("poll_interval", conf.GetDuration("engine.poll_interval")))
	if err = app.Run(context.Background()); err != nil {
		panic(err)
	}
}
