package modules

import (
	"context"
	"fmt"

	"git.ecosistema.dev/plataforma/statecore/internal/api"
	ferrors "git.ecosistema.dev/plataforma/statecore/internal/foundation/errors"
	"git.ecosistema.dev/plataforma/statecore/internal/state"
)

// User module mutations.
const (
	UserSetUser           = "SET_USER"
	UserUpdatePreferences = "UPDATE_PREFERENCES"
	UserLogout            = "LOGOUT"
)

// User holds the authenticated operator's profile and preferences.
// Preferences survive restarts; the profile is refetched on login.
type User struct {
	client *api.Client
}

// NewUser builds the user module. The client may be nil for offline use;
// fetch actions then fail with an action error.
func NewUser(client *api.Client) *User {
	return &User{client: client}
}

func (*User) Name() string { return "user" }

func (*User) InitialState() state.Value {
	return map[string]state.Value{
		"profile":       nil,
		"authenticated": false,
		"preferences": map[string]state.Value{
			"theme":         "light",
			"language":      "es",
			"notifications": true,
		},
	}
}

func (*User) Mutate(action string, sub, payload state.Value) (state.Value, error) {
	s, err := asMap(sub)
	if err != nil {
		return nil, err
	}
	switch action {
	case UserSetUser:
		s["profile"] = payload
		s["authenticated"] = payload != nil
	case UserUpdatePreferences:
		patch, err := asMap(payload)
		if err != nil {
			return nil, fmt.Errorf("UPDATE_PREFERENCES payload: %w", err)
		}
		prefs, err := asMap(s["preferences"])
		if err != nil {
			return nil, err
		}
		for k, v := range patch {
			prefs[k] = v
		}
	case UserLogout:
		s["profile"] = nil
		s["authenticated"] = false
	default:
		return nil, unknownAction("user", action)
	}
	return s, nil
}

// ValidateMutation rejects profiles without an id: downstream modules key
// ownership and attribution on it.
func (*User) ValidateMutation(m state.Mutation, sub, prev state.Value) error {
	if m.Action != UserSetUser || m.Payload == nil {
		return nil
	}
	profile, ok := m.Payload.(map[string]state.Value)
	if !ok {
		return ferrors.ValidationError("user profile must be an object").Build()
	}
	if id, _ := profile["id"].(string); id == "" {
		return ferrors.ValidationError("user profile requires an id").Build()
	}
	return nil
}

func (u *User) Action(ctx context.Context, name string, store state.ActionContext, payload state.Value) (state.Value, error) {
	switch name {
	case "fetchProfile":
		if u.client == nil {
			return nil, ferrors.ActionError("user module has no API client").Build()
		}
		raw, err := u.client.Get(ctx, "/api/users/me")
		if err != nil {
			return nil, err
		}
		profile, err := decodeValue(raw)
		if err != nil {
			return nil, err
		}
		if err := store.Commit(ctx, "user/SET_USER", profile); err != nil {
			return nil, err
		}
		return profile, nil
	case "logout":
		if err := store.Commit(ctx, "user/LOGOUT", nil); err != nil {
			return nil, err
		}
		return nil, nil
	default:
		return nil, fmt.Errorf("module user has no action %q", name)
	}
}

func (*User) Getters() map[string]state.Getter {
	return map[string]state.Getter{
		"isAuthenticated": func(sub state.Value, _ state.Tree, _ state.GetterResolver) state.Value {
			s, _ := sub.(map[string]state.Value)
			return s["authenticated"] == true
		},
		"displayName": func(sub state.Value, _ state.Tree, _ state.GetterResolver) state.Value {
			s, _ := sub.(map[string]state.Value)
			profile, _ := s["profile"].(map[string]state.Value)
			if name, ok := profile["name"].(string); ok {
				return name
			}
			return ""
		},
	}
}

func (*User) ShouldPersist() bool { return true }

// PersistedState keeps preferences only; sessions never survive restarts.
func (*User) PersistedState(sub state.Value) state.Value {
	s, _ := sub.(map[string]state.Value)
	return map[string]state.Value{"preferences": s["preferences"]}
}

func (*User) OnHydrate(state.Value) {}
