package server

import (
	"context"

	"collectivewatch/internal/controller"
	"collectivewatch/pkg/log"
)

type ControllerServer struct {
	controller *controller.CollectiveController
	log        *log.Logger
}

func NewControllerServer(
	log *log.Logger,
	collectiveController *controller.CollectiveController,
) *ControllerServer {
	return &ControllerServer{
		controller: collectiveController,
		log:        log,
	}
}

func (s *ControllerServer) Start(ctx context.Context) error {
	s.log.Info("starting controller server")
	return s.controller.Start(ctx)
}

func (s *ControllerServer) Stop(ctx context.Context) error {
	s.log.Info("stopping controller server")
	return s.controller.Stop(ctx)
}
