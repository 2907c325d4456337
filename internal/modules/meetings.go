package modules

import (
	"context"
	"fmt"
	"time"

	"git.ecosistema.dev/plataforma/statecore/internal/api"
	ferrors "git.ecosistema.dev/plataforma/statecore/internal/foundation/errors"
	"git.ecosistema.dev/plataforma/statecore/internal/state"
)

// Meetings module mutations.
const (
	MeetingsSet    = "SET_MEETINGS"
	MeetingsAdd    = "ADD_MEETING"
	MeetingsUpdate = "UPDATE_MEETING"
	MeetingsCancel = "CANCEL_MEETING"
	MeetingsSelect = "SELECT_MEETING"
)

// Meetings tracks scheduled mentorship and advisory sessions.
type Meetings struct {
	client *api.Client
	now    func() time.Time
}

func NewMeetings(client *api.Client) *Meetings {
	return &Meetings{client: client, now: time.Now}
}

func (*Meetings) Name() string { return "meetings" }

func (*Meetings) InitialState() state.Value {
	return map[string]state.Value{
		"items":      []state.Value{},
		"selectedId": nil,
	}
}

func (*Meetings) Mutate(action string, sub, payload state.Value) (state.Value, error) {
	s, err := asMap(sub)
	if err != nil {
		return nil, err
	}
	switch action {
	case MeetingsSet:
		items, err := toItemList(payload)
		if err != nil {
			return nil, fmt.Errorf("SET_MEETINGS payload: %w", err)
		}
		s["items"] = items
	case MeetingsAdd:
		if _, ok := itemID(payload); !ok {
			return nil, fmt.Errorf("ADD_MEETING payload requires an id")
		}
		items, _ := asList(s["items"])
		s["items"] = append(items, payload)
	case MeetingsUpdate:
		id, ok := itemID(payload)
		if !ok {
			return nil, fmt.Errorf("UPDATE_MEETING payload requires an id")
		}
		items, _ := asList(s["items"])
		for i, item := range items {
			if existing, _ := itemID(item); existing == id {
				items[i] = payload
				s["items"] = items
				return s, nil
			}
		}
		return nil, fmt.Errorf("meeting %s not found", id)
	case MeetingsCancel:
		id, ok := payload.(string)
		if !ok || id == "" {
			return nil, fmt.Errorf("CANCEL_MEETING payload must be a meeting id")
		}
		items, _ := asList(s["items"])
		for _, item := range items {
			if existing, _ := itemID(item); existing == id {
				item.(map[string]state.Value)["status"] = "cancelled"
				return s, nil
			}
		}
		return nil, fmt.Errorf("meeting %s not found", id)
	case MeetingsSelect:
		s["selectedId"] = payload
	default:
		return nil, unknownAction("meetings", action)
	}
	return s, nil
}

func (m *Meetings) Action(ctx context.Context, name string, store state.ActionContext, payload state.Value) (state.Value, error) {
	switch name {
	case "fetchMeetings":
		if m.client == nil {
			return nil, ferrors.ActionError("meetings module has no API client").Build()
		}
		raw, err := m.client.Get(ctx, "/api/meetings")
		if err != nil {
			return nil, err
		}
		items, err := decodeValue(raw)
		if err != nil {
			return nil, err
		}
		if err := store.Commit(ctx, "meetings/SET_MEETINGS", items); err != nil {
			return nil, err
		}
		return items, nil
	case "scheduleMeeting":
		if m.client == nil {
			return nil, ferrors.ActionError("meetings module has no API client").Build()
		}
		raw, err := m.client.Post(ctx, "/api/meetings", payload)
		if err != nil {
			return nil, err
		}
		created, err := decodeValue(raw)
		if err != nil {
			return nil, err
		}
		if err := store.Commit(ctx, "meetings/ADD_MEETING", created); err != nil {
			return nil, err
		}
		return created, nil
	default:
		return nil, fmt.Errorf("module meetings has no action %q", name)
	}
}

func (m *Meetings) Getters() map[string]state.Getter {
	return map[string]state.Getter{
		// upcoming returns non-cancelled meetings starting after now,
		// relying on RFC 3339 "startsAt" fields from the server.
		"upcoming": func(sub state.Value, _ state.Tree, _ state.GetterResolver) state.Value {
			s, _ := sub.(map[string]state.Value)
			items, _ := asList(s["items"])
			now := m.now()
			var out []state.Value
			for _, item := range items {
				entry, _ := item.(map[string]state.Value)
				if entry["status"] == "cancelled" {
					continue
				}
				raw, _ := entry["startsAt"].(string)
				startsAt, err := time.Parse(time.RFC3339, raw)
				if err != nil || !startsAt.After(now) {
					continue
				}
				out = append(out, item)
			}
			return out
		},
	}
}
