package state

import "context"

// TabBarVisibility is the shared flag that full-screen views (the camera) use
// to hide the navigation bar while they are on screen.
type TabBarVisibility struct {
	hidden *Published[bool]
}

func NewTabBarVisibility() *TabBarVisibility {
	v := &TabBarVisibility{hidden: NewPublished[bool]()}
	v.hidden.Set(false)
	return v
}

// Hide is called when a view that wants the whole screen appears
func (v *TabBarVisibility) Hide() { v.hidden.Set(true) }

// Show is called when that view goes away
func (v *TabBarVisibility) Show() { v.hidden.Set(false) }

func (v *TabBarVisibility) IsHidden() bool {
	hidden, _ := v.hidden.Get()
	return hidden
}

// Changes streams the latest visibility to an observer
func (v *TabBarVisibility) Changes() (<-chan bool, func()) {
	return v.hidden.Subscribe()
}

// HideWhile hides the bar for the lifetime of a view and returns the func
// that restores it on exit.
func (v *TabBarVisibility) HideWhile() (restore func()) {
	v.Hide()
	return v.Show
}

type visibilityKey struct{}

// WithTabBarVisibility attaches v to ctx
func WithTabBarVisibility(ctx context.Context, v *TabBarVisibility) context.Context {
	return context.WithValue(ctx, visibilityKey{}, v)
}

// TabBarVisibilityFrom returns the instance attached to ctx, if any
func TabBarVisibilityFrom(ctx context.Context) (*TabBarVisibility, bool) {
	v, ok := ctx.Value(visibilityKey{}).(*TabBarVisibility)
	return v, ok && v != nil
}
