// Package vas assembles the Dispatcher, COS Cache, Roles Registry,
// Change-Notify Bus, and Views Cache into the single process-wide object a
// host directory server constructs once at startup (spec.md §9's redesign
// guidance: "module-level mutable state becomes fields on cos.Cache /
// roles.Registry / views.Cache instances owned by a single top-level
// vas.Subsystem struct").
package vas

import (
	"context"
	"fmt"
	"sync"

	"github.com/389ds/389-ds-base-sub010/internal/config"
	"github.com/389ds/389-ds-base-sub010/internal/cos"
	"github.com/389ds/389-ds-base-sub010/internal/notify"
	"github.com/389ds/389-ds-base-sub010/internal/roles"
	"github.com/389ds/389-ds-base-sub010/internal/slapi"
	"github.com/389ds/389-ds-base-sub010/internal/vattr"
	"github.com/389ds/389-ds-base-sub010/internal/views"
)

// Subsystem owns every cache and the bus that drives their invalidation,
// for one or more backend suffixes. Dispatcher and Roles are shared across
// every bound suffix; COS and Views are built one Cache per suffix since
// neither supports multiple suffixes internally.
type Subsystem struct {
	backend slapi.SearchBackend
	schema  slapi.SchemaRegistry
	cfg     *config.Config

	Dispatcher *vattr.Dispatcher
	Bus        *notify.Bus
	Roles      *roles.Registry

	rolesHandle *vattr.Handle[vattr.Provider]

	mu       sync.RWMutex
	suffixes map[string]*suffixBinding
}

type cosRegistration struct {
	attr   string
	handle *vattr.Handle[vattr.Provider]
}

type suffixBinding struct {
	suffix slapi.DN
	cos    *cos.Cache
	views  *views.Cache

	cosRegs       []cosRegistration
	cosCallerID   string
	viewCallerID  string
	rolesCallerID string
}

// New constructs a Subsystem with no suffixes bound yet and registers the
// single process-wide Roles provider against nsRole. schema may be nil
// (permissive).
func New(backend slapi.SearchBackend, schema slapi.SchemaRegistry, cfg *config.Config) *Subsystem {
	s := &Subsystem{
		backend:    backend,
		schema:     schema,
		cfg:        cfg,
		Dispatcher: vattr.New(schema, cfg.LoopCeiling, cfg.EntryCacheFastPathSize),
		Bus:        notify.New(),
		Roles:      roles.NewRegistry(backend),
		suffixes:   make(map[string]*suffixBinding),
	}
	s.rolesHandle = s.Dispatcher.Register(slapi.AttrNsRole, roles.NewProvider(s.Roles, cfg.RolesNestedRecursionBound))
	return s
}

// AddSuffix builds the COS and Views caches for suffix, registers suffix
// with the shared Roles registry, wires every cache's bus subscription so
// definition changes trigger a rebuild, and registers the COS provider with
// the dispatcher for every attribute its snapshot currently distributes
// (spec.md §4.2, §4.3, §4.4, §4.5 wired together).
func (s *Subsystem) AddSuffix(ctx context.Context, suffix slapi.DN) error {
	viewsCache := views.NewCache(s.backend)
	if err := viewsCache.Refresh(ctx, suffix); err != nil {
		return fmt.Errorf("vas: initial views load for %s: %w", suffix, err)
	}

	builder := cos.NewBuilder(s.backend)
	cosCache, err := cos.NewCache(ctx, builder, suffix, viewsCache, s.schema, s.cfg.CosTemplateRecursionBound)
	if err != nil {
		return fmt.Errorf("vas: initial cos load for %s: %w", suffix, err)
	}

	if err := s.Roles.AddSuffix(ctx, suffix, viewsCache); err != nil {
		cosCache.Stop()
		return fmt.Errorf("vas: initial roles load for %s: %w", suffix, err)
	}

	binding := &suffixBinding{suffix: suffix, cos: cosCache, views: viewsCache}

	cosProvider := cos.NewProvider(cosCache)
	for _, attr := range cosCache.AttributeNames() {
		handle := s.Dispatcher.Register(attr, cosProvider)
		binding.cosRegs = append(binding.cosRegs, cosRegistration{attr: attr, handle: handle})
	}

	cosCallerID, err := registerCosInvalidation(s.Bus, suffix, cosCache)
	if err != nil {
		return err
	}
	rolesCallerID := s.Bus.Register(suffix, nil, rolesInvalidationSubscriber{registry: s.Roles, suffix: suffix})
	viewCallerID, err := viewsCache.RegisterForInvalidation(s.Bus, suffix)
	if err != nil {
		return err
	}

	binding.cosCallerID = cosCallerID
	binding.rolesCallerID = rolesCallerID
	binding.viewCallerID = viewCallerID

	s.mu.Lock()
	s.suffixes[suffix.String()] = binding
	s.mu.Unlock()
	return nil
}

// RemoveSuffix stops the suffix's caches and unregisters every bus
// subscription, used on a BackendStateEvent offline transition (spec.md
// §6).
func (s *Subsystem) RemoveSuffix(suffix slapi.DN) {
	s.mu.Lock()
	binding, ok := s.suffixes[suffix.String()]
	if ok {
		delete(s.suffixes, suffix.String())
	}
	s.mu.Unlock()
	if !ok {
		return
	}

	binding.cos.Stop()
	s.Roles.RemoveSuffix(suffix)
	for _, reg := range binding.cosRegs {
		s.Dispatcher.Unregister(reg.attr, reg.handle)
	}
	s.Bus.Unregister(binding.cosCallerID)
	s.Bus.Unregister(binding.rolesCallerID)
	s.Bus.Unregister(binding.viewCallerID)
}

// HandlePostOp dispatches a completed directory modification to every
// registered subscriber, the single ingress point a host search/modify
// code path calls into (spec.md §4.4).
func (s *Subsystem) HandlePostOp(event slapi.PostOpEvent, entry *slapi.Entry) {
	s.Bus.Dispatch(event, entry)
}
