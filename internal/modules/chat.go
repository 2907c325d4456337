package modules

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"git.ecosistema.dev/plataforma/statecore/internal/api"
	ferrors "git.ecosistema.dev/plataforma/statecore/internal/foundation/errors"
	"git.ecosistema.dev/plataforma/statecore/internal/state"
)

// Chat module mutations.
const (
	ChatSetConversations = "SET_CONVERSATIONS"
	ChatAddMessage       = "ADD_MESSAGE"
	ChatSetActive        = "SET_ACTIVE"
)

// Chat holds live conversations between founders and mentors. Nothing
// here persists: messages are ephemeral client state, the server owns
// the archive.
type Chat struct {
	client *api.Client
}

func NewChat(client *api.Client) *Chat {
	return &Chat{client: client}
}

func (*Chat) Name() string { return "chat" }

func (*Chat) InitialState() state.Value {
	return map[string]state.Value{
		"conversations": []state.Value{},
		"activeId":      nil,
		"messages":      map[string]state.Value{}, // conversation id -> message list
	}
}

func (*Chat) Mutate(action string, sub, payload state.Value) (state.Value, error) {
	s, err := asMap(sub)
	if err != nil {
		return nil, err
	}
	switch action {
	case ChatSetConversations:
		conversations, err := toItemList(payload)
		if err != nil {
			return nil, fmt.Errorf("SET_CONVERSATIONS payload: %w", err)
		}
		s["conversations"] = conversations
	case ChatAddMessage:
		msg, err := asMap(payload)
		if err != nil {
			return nil, fmt.Errorf("ADD_MESSAGE payload: %w", err)
		}
		convID, _ := msg["conversationId"].(string)
		if convID == "" {
			return nil, fmt.Errorf("ADD_MESSAGE payload requires conversationId")
		}
		byConv, _ := s["messages"].(map[string]state.Value)
		list, _ := asList(byConv[convID])
		byConv[convID] = append(list, payload)
	case ChatSetActive:
		s["activeId"] = payload
	default:
		return nil, unknownAction("chat", action)
	}
	return s, nil
}

func (c *Chat) Action(ctx context.Context, name string, store state.ActionContext, payload state.Value) (state.Value, error) {
	switch name {
	case "sendMessage":
		msg, err := asMap(payload)
		if err != nil {
			return nil, ferrors.ActionError("sendMessage payload must be an object").WithCause(err).Build()
		}
		if msg["id"] == nil {
			msg["id"] = uuid.NewString()
		}
		if msg["sentAt"] == nil {
			msg["sentAt"] = time.Now().UTC().Format(time.RFC3339)
		}

		// Optimistic append; the server copy arrives back through sync.
		if err := store.Commit(ctx, "chat/ADD_MESSAGE", msg); err != nil {
			return nil, err
		}
		if c.client != nil {
			if _, err := c.client.Post(ctx, "/api/chat/messages", msg); err != nil {
				return nil, err
			}
		}
		return msg, nil
	case "fetchConversations":
		if c.client == nil {
			return nil, ferrors.ActionError("chat module has no API client").Build()
		}
		raw, err := c.client.Get(ctx, "/api/chat/conversations")
		if err != nil {
			return nil, err
		}
		conversations, err := decodeValue(raw)
		if err != nil {
			return nil, err
		}
		if err := store.Commit(ctx, "chat/SET_CONVERSATIONS", conversations); err != nil {
			return nil, err
		}
		return conversations, nil
	default:
		return nil, fmt.Errorf("module chat has no action %q", name)
	}
}

func (*Chat) Getters() map[string]state.Getter {
	return map[string]state.Getter{
		"activeMessages": func(sub state.Value, _ state.Tree, _ state.GetterResolver) state.Value {
			s, _ := sub.(map[string]state.Value)
			id, _ := s["activeId"].(string)
			if id == "" {
				return []state.Value{}
			}
			byConv, _ := s["messages"].(map[string]state.Value)
			list, _ := asList(byConv[id])
			if list == nil {
				return []state.Value{}
			}
			return list
		},
	}
}
