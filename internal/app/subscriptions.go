package app

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/dshills/meshview/internal/catalog"
	"github.com/dshills/meshview/internal/event"
	"github.com/dshills/meshview/internal/event/events"
	"github.com/dshills/meshview/internal/event/topic"
	"github.com/dshills/meshview/internal/scene"
)

// subscriptionManager owns the application-level bus subscriptions.
type subscriptionManager struct {
	mu   sync.Mutex
	subs []event.Subscription
	app  *Application
}

func newSubscriptionManager(app *Application) *subscriptionManager {
	return &subscriptionManager{app: app}
}

// setup registers the app-level wiring: catalog recording and watcher
// rearming. Component-internal subscriptions are made by the components
// themselves.
func (sm *subscriptionManager) setup() error {
	if sm.app.catalog != nil {
		if err := sm.add(events.TopicLoadCompleted, sm.recordCompleted); err != nil {
			return err
		}
		if err := sm.add(events.TopicLoadFailed, sm.recordFailed); err != nil {
			return err
		}
	}
	return nil
}

func (sm *subscriptionManager) add(pattern topic.Topic, fn event.HandlerFunc) error {
	sub, err := sm.app.bus.SubscribeFunc(pattern, fn)
	if err != nil {
		return err
	}
	sm.mu.Lock()
	sm.subs = append(sm.subs, sub)
	sm.mu.Unlock()
	return nil
}

// recordCompleted persists metadata for an applied load.
func (sm *subscriptionManager) recordCompleted(ctx context.Context, env event.Envelope) error {
	done := env.Payload.(events.LoadCompleted)
	cat := sm.app.catalog
	logger := sm.app.logger

	if err := cat.RecordLoad(ctx, done.Resource, catalog.StatusLoaded, "", done.Duration); err != nil {
		logger.Warn("record load: %v", err)
	}

	model := catalog.Model{
		Name:   strings.TrimSuffix(filepath.Base(done.Resource), filepath.Ext(done.Resource)),
		Path:   done.Resource,
		Format: strings.TrimPrefix(filepath.Ext(done.Resource), "."),
	}
	if info, err := os.Stat(done.Resource); err == nil {
		model.FileSize = info.Size()
	}
	if done.Graph != nil {
		for _, item := range done.Graph.Items() {
			switch item.Kind {
			case scene.KindMesh:
				model.MeshCount++
			case scene.KindNode:
				model.NodeCount++
			}
		}
	}
	if err := cat.UpsertModel(ctx, model); err != nil {
		logger.Warn("upsert model: %v", err)
	}
	return nil
}

// recordFailed persists a failed load attempt.
func (sm *subscriptionManager) recordFailed(ctx context.Context, env event.Envelope) error {
	failed := env.Payload.(events.LoadFailed)
	msg := ""
	if failed.Err != nil {
		msg = failed.Err.Error()
	}
	if err := sm.app.catalog.RecordLoad(ctx, failed.Resource, catalog.StatusFailed, msg, 0); err != nil {
		sm.app.logger.Warn("record failed load: %v", err)
	}
	return nil
}

func (sm *subscriptionManager) cleanup() {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	for _, sub := range sm.subs {
		sub.Cancel()
	}
	sm.subs = nil
}

func nowUTC() time.Time {
	return time.Now().UTC()
}
