package api

import (
	"github.com/bbh1312/sleep-cash-backend/internal"
	"github.com/bbh1312/sleep-cash-backend/internal/service"
	"github.com/bbh1312/sleep-cash-backend/internal/storage"
)

type App interface {
	Logger() internal.Logger
	Rewards() *service.Service
	Store() storage.Store
}

// Deps is the production App.
type Deps struct {
	Log     internal.Logger
	Service *service.Service
	DB      storage.Store
}

func (d *Deps) Logger() internal.Logger   { return d.Log }
func (d *Deps) Rewards() *service.Service { return d.Service }
func (d *Deps) Store() storage.Store      { return d.DB }
