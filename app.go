package main

import "go.uber.org/zap"

// App bundles the collaborators the handlers need. Everything is constructed
// in main (or per test case) and injected; there are no package-level stores.
type App struct {
	cfg      Config
	logger   *zap.Logger
	accounts *accountStore
	engine   *Matchmaker
	narrator Narrator
	hub      *Hub
}

func newApp(cfg Config, logger *zap.Logger, narrator Narrator) *App {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &App{
		cfg:      cfg,
		logger:   logger,
		accounts: newAccountStore(),
		engine:   NewMatchmaker(cfg.BatchSize, logger),
		narrator: narrator,
		hub:      newHub(),
	}
}
