// Package surface defines the contract between the tab core and the
// page-hosting surfaces provided by the rendering host.
package surface

import "context"

// Surface is one live page view owned by the rendering host.
type Surface interface {
	// ContentID identifies the surface inside the host. It is stable for
	// the surface's lifetime and is what Host.Dispose expects.
	ContentID() string
	// Events delivers page events in the order the host observed them.
	// The channel is closed once the surface is disposed.
	Events() <-chan Event
	Navigate(ctx context.Context, url string) error
	Reload(ctx context.Context) error
	GoBack(ctx context.Context) error
	GoForward(ctx context.Context) error
}

// Host creates and disposes surfaces.
type Host interface {
	Open(ctx context.Context, url string) (Surface, error)
	Dispose(ctx context.Context, contentID string) error
}
