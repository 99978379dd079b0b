package main

import (
	log "github.com/sirupsen/logrus"

	"taskflow/kanban"
	"taskflow/storage"
	"taskflow/store"
)

type session struct {
	cfg    cliConfig
	client *storage.Client
	store  *store.Store
	engine *kanban.Engine
}

func openSession() (*session, error) {
	cfg, err := currentConfig()
	if err != nil {
		return nil, err
	}
	timeout, err := cfg.timeout()
	if err != nil {
		return nil, err
	}
	client, err := storage.New(cfg.APIURL, cfg.Token)
	if err != nil {
		return nil, err
	}
	logger := log.StandardLogger()
	st := store.New(client, store.WithLogger(logger), store.WithTimeout(timeout))
	return &session{
		cfg:    cfg,
		client: client,
		store:  st,
		engine: kanban.NewEngine(st, logger),
	}, nil
}

func (s *session) Close() {
	s.store.Close()
}
