package catalog

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	pkgerrors "github.com/angelmondragon/packfinderz-storefront/pkg/errors"
	"github.com/angelmondragon/packfinderz-storefront/pkg/logger"
	"golang.org/x/sync/singleflight"
)

const refreshKey = "catalog"

// Source hands out the current snapshot.
type Source interface {
	Current() *Snapshot
}

// Service owns the shared catalog snapshot.
type Service interface {
	Source
	Refresh(ctx context.Context) (*Snapshot, error)
	Product(ctx context.Context, id string) (*Product, error)
	OnRefresh(fn func(ctx context.Context, snap *Snapshot))
}

type service struct {
	client  Client
	logg    *logger.Logger
	now     func() time.Time
	current atomic.Pointer[Snapshot]
	group   singleflight.Group

	mu        sync.RWMutex
	listeners []func(context.Context, *Snapshot)
}

// NewService builds a catalog service starting from an empty snapshot.
func NewService(client Client, logg *logger.Logger, now func() time.Time) (Service, error) {
	if client == nil {
		return nil, fmt.Errorf("catalog client required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if now == nil {
		now = time.Now
	}
	svc := &service{client: client, logg: logg, now: now}
	svc.current.Store(NewSnapshot(nil, time.Time{}))
	return svc, nil
}

func (s *service) Current() *Snapshot {
	return s.current.Load()
}

// Refresh refetches the catalog and swaps the snapshot atomically. Concurrent
// callers share one upstream request. On failure the previous snapshot stays.
func (s *service) Refresh(ctx context.Context) (*Snapshot, error) {
	v, err, _ := s.group.Do(refreshKey, func() (any, error) {
		products, err := s.client.ListProducts(ctx, Filters{})
		if err != nil {
			return nil, err
		}
		snap := NewSnapshot(products, s.now())
		s.current.Store(snap)

		logCtx := s.logg.WithFields(ctx, map[string]any{
			"products": snap.Len(),
			"rejected": snap.Rejected(),
		})
		s.logg.Info(logCtx, "catalog snapshot refreshed")
		s.notify(ctx, snap)
		return snap, nil
	})
	if err != nil {
		if pkgerrors.As(err) != nil {
			return nil, err
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "refresh catalog")
	}
	return v.(*Snapshot), nil
}

func (s *service) Product(ctx context.Context, id string) (*Product, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	return s.client.GetProduct(ctx, id)
}

// OnRefresh registers fn to run after every successful refresh.
func (s *service) OnRefresh(fn func(ctx context.Context, snap *Snapshot)) {
	if fn == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

func (s *service) notify(ctx context.Context, snap *Snapshot) {
	s.mu.RLock()
	listeners := append([]func(context.Context, *Snapshot){}, s.listeners...)
	s.mu.RUnlock()
	for _, fn := range listeners {
		fn(ctx, snap)
	}
}
