// Package renderadapter defines the contract both concrete renderers
// (web, e-paper) must satisfy. It specifies behavior, not output: an
// Adapter renders exactly the events in the ViewModel it is given and
// never re-queries the cache, re-sorts, or re-selects.
package renderadapter

import (
	"github.com/bencan1a/calendarbot/internal/viewmodel"
)

// Adapter renders a ViewModel onto some surface (HTML, e-paper raster).
// Implementations live outside this module; this package only defines
// the contract and the shared priority-read helper every implementation
// must use instead of re-deriving the rule.
type Adapter interface {
	Render(vm viewmodel.ViewModel) error
}

// Featured returns the event a renderer must treat as featured: the
// first current event if one was selected, otherwise the first next
// event, otherwise false. Both adapters must call this rather than
// re-implementing the priority rule themselves, so the featured event
// can never diverge between surfaces.
func Featured(vm viewmodel.ViewModel) (viewmodel.EventData, bool) {
	if len(vm.CurrentEvents) > 0 {
		return vm.CurrentEvents[0], true
	}
	if len(vm.NextEvents) > 0 {
		return vm.NextEvents[0], true
	}
	return viewmodel.EventData{}, false
}
