package modules

import (
	"fmt"

	"git.ecosistema.dev/plataforma/statecore/internal/state"
)

// Notifications module mutations.
const (
	NotificationsAdd         = "ADD_NOTIFICATION"
	NotificationsMarkRead    = "MARK_READ"
	NotificationsMarkAllRead = "MARK_ALL_READ"
	NotificationsRemove      = "REMOVE_NOTIFICATION"
	NotificationsClear       = "CLEAR_ALL"
)

// Notifications is the in-app notification tray. It persists so unread
// items survive a restart.
type Notifications struct{}

func NewNotifications() *Notifications { return &Notifications{} }

func (*Notifications) Name() string { return "notifications" }

func (*Notifications) InitialState() state.Value {
	return map[string]state.Value{
		"items": []state.Value{},
	}
}

func (*Notifications) Mutate(action string, sub, payload state.Value) (state.Value, error) {
	s, err := asMap(sub)
	if err != nil {
		return nil, err
	}
	items, _ := asList(s["items"])

	switch action {
	case NotificationsAdd:
		n, err := asMap(payload)
		if err != nil {
			return nil, fmt.Errorf("ADD_NOTIFICATION payload: %w", err)
		}
		if id, _ := n["id"].(string); id == "" {
			return nil, fmt.Errorf("ADD_NOTIFICATION payload requires an id")
		}
		if n["read"] == nil {
			n["read"] = false
		}
		s["items"] = append(items, payload)
	case NotificationsMarkRead:
		id, ok := payload.(string)
		if !ok || id == "" {
			return nil, fmt.Errorf("MARK_READ payload must be a notification id")
		}
		for _, item := range items {
			if existing, _ := itemID(item); existing == id {
				item.(map[string]state.Value)["read"] = true
				return s, nil
			}
		}
		return nil, fmt.Errorf("notification %s not found", id)
	case NotificationsMarkAllRead:
		for _, item := range items {
			if n, ok := item.(map[string]state.Value); ok {
				n["read"] = true
			}
		}
	case NotificationsRemove:
		id, ok := payload.(string)
		if !ok || id == "" {
			return nil, fmt.Errorf("REMOVE_NOTIFICATION payload must be a notification id")
		}
		kept := items[:0]
		for _, item := range items {
			if existing, _ := itemID(item); existing != id {
				kept = append(kept, item)
			}
		}
		s["items"] = kept
	case NotificationsClear:
		s["items"] = []state.Value{}
	default:
		return nil, unknownAction("notifications", action)
	}
	return s, nil
}

func (*Notifications) Getters() map[string]state.Getter {
	return map[string]state.Getter{
		"unreadCount": func(sub state.Value, _ state.Tree, _ state.GetterResolver) state.Value {
			s, _ := sub.(map[string]state.Value)
			items, _ := asList(s["items"])
			count := 0
			for _, item := range items {
				if n, ok := item.(map[string]state.Value); ok && n["read"] != true {
					count++
				}
			}
			return count
		},
	}
}

func (*Notifications) ShouldPersist() bool { return true }

func (*Notifications) PersistedState(sub state.Value) state.Value { return sub }

func (*Notifications) OnHydrate(state.Value) {}
