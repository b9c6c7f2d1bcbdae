package sse

import (
	"time"
)

// HubNotifier emits catalog events through the SSE Hub. It satisfies
// service.CatalogNotifier.
type HubNotifier struct {
	hub *Hub
	now func() time.Time
}

// NewHubNotifier creates a notifier backed by the given Hub.
func NewHubNotifier(hub *Hub) *HubNotifier {
	return &HubNotifier{hub: hub, now: time.Now}
}

func (n *HubNotifier) NotifyCatalogChanged(reason string, products, categories int) {
	if n.hub.ClientCount() == 0 {
		return
	}
	n.hub.Broadcast(&CatalogEvent{
		Event:      EventCatalogChanged,
		Reason:     reason,
		Products:   products,
		Categories: categories,
		Timestamp:  n.now(),
	})
}

func (n *HubNotifier) NotifyCatalogError(reason string, err error) {
	if n.hub.ClientCount() == 0 || err == nil {
		return
	}
	n.hub.Broadcast(&CatalogEvent{
		Event:     EventCatalogError,
		Reason:    reason,
		Error:     err.Error(),
		Timestamp: n.now(),
	})
}
