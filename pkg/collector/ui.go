package collector

import "github.com/porby-sdk/porby/pkg/model"

// UICollector is a thin emit wrapper the host application calls
// directly from its navigation/view lifecycle hooks; there is no
// background capture loop to start, since UI events are pushed by the
// caller rather than polled.
type UICollector struct {
	emit EmitFunc
}

func NewUICollector() *UICollector { return &UICollector{} }

func (u *UICollector) Start(emit EmitFunc) error {
	u.emit = emit
	return nil
}

func (u *UICollector) Stop() {
	u.emit = nil
}

// Emit reports a UI event (e.g. "viewAppeared", "navigated").
func (u *UICollector) Emit(eventType, viewName, detail string) {
	if u.emit == nil {
		return
	}
	e := model.NewEntry(model.LevelInfo, model.CategoryUI, eventType, model.SourceSite{})
	u.emit(e.WithExtra(model.UIExtraOf(model.UIExtra{EventType: eventType, ViewName: viewName, Detail: detail})))
}

// LifecycleCollector is the same push-style wrapper as UICollector,
// tagged CategoryLifecycle for app-level foreground/background/launch
// events rather than in-app navigation.
type LifecycleCollector struct {
	emit EmitFunc
}

func NewLifecycleCollector() *LifecycleCollector { return &LifecycleCollector{} }

func (l *LifecycleCollector) Start(emit EmitFunc) error {
	l.emit = emit
	return nil
}

func (l *LifecycleCollector) Stop() {
	l.emit = nil
}

// Emit reports a lifecycle event (e.g. "didEnterBackground").
func (l *LifecycleCollector) Emit(eventType, detail string) {
	if l.emit == nil {
		return
	}
	e := model.NewEntry(model.LevelInfo, model.CategoryLifecycle, eventType, model.SourceSite{})
	l.emit(e.WithExtra(model.UIExtraOf(model.UIExtra{EventType: eventType, Detail: detail})))
}
