package surface

// Event is a page event reported by a surface. The set of implementations
// is closed: only the types in this file satisfy it.
type Event interface {
	isEvent()
}

type NavigationStarted struct{}

// NavigationCommitted is reported once the host commits to a new document.
type NavigationCommitted struct {
	URL      string
	TopLevel bool
}

// InPageNavigated covers fragment changes and history.pushState.
type InPageNavigated struct {
	URL      string
	TopLevel bool
}

type TitleUpdated struct {
	Title string
}

// FaviconUpdated carries the icon URLs in the order the page declared them.
type FaviconUpdated struct {
	URLs []string
}

type NavigationStopped struct{}

type NavigationFinished struct{}

type NavigationFailed struct{}

// FailureClass separates transient cancellations from real failures.
type FailureClass int

const (
	FailureError FailureClass = iota
	// FailureAbortedByUser is a stop issued while the page was loading.
	FailureAbortedByUser
	// FailureSuperseded is a load cancelled because another navigation
	// replaced it.
	FailureSuperseded
)

func (c FailureClass) String() string {
	switch c {
	case FailureAbortedByUser:
		return "aborted-by-user"
	case FailureSuperseded:
		return "aborted-by-new-navigation"
	default:
		return "error"
	}
}

// Chromium net error codes the shell cares about by value.
const (
	CodeFailed  = -2
	CodeAborted = -3
)

// LoadFailed reports that the top-level document could not be loaded.
type LoadFailed struct {
	Code        int
	Description string
	URL         string
	Class       FailureClass
}

// Transient reports whether the failure is a cancellation that should not
// be shown to the user.
func (e LoadFailed) Transient() bool {
	return e.Class == FailureAbortedByUser || e.Class == FailureSuperseded
}

// NewWindowRequested is raised when the page asks for a popup. Calling
// Prevent stops the host from opening its own window.
type NewWindowRequested struct {
	URL     string
	prevent func()
}

// NewWindowRequest builds a NewWindowRequested event. prevent may be nil.
func NewWindowRequest(url string, prevent func()) NewWindowRequested {
	return NewWindowRequested{URL: url, prevent: prevent}
}

func (e NewWindowRequested) Prevent() {
	if e.prevent != nil {
		e.prevent()
	}
}

func (NavigationStarted) isEvent()   {}
func (NavigationCommitted) isEvent() {}
func (InPageNavigated) isEvent()     {}
func (TitleUpdated) isEvent()        {}
func (FaviconUpdated) isEvent()      {}
func (NavigationStopped) isEvent()   {}
func (NavigationFinished) isEvent()  {}
func (NavigationFailed) isEvent()    {}
func (LoadFailed) isEvent()          {}
func (NewWindowRequested) isEvent()  {}
