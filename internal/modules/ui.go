package modules

import (
	"fmt"

	ferrors "git.ecosistema.dev/plataforma/statecore/internal/foundation/errors"
	"git.ecosistema.dev/plataforma/statecore/internal/state"
)

// UI module mutations.
const (
	UISetTheme      = "SET_THEME"
	UIToggleSidebar = "TOGGLE_SIDEBAR"
	UIOpenModal     = "OPEN_MODAL"
	UICloseModal    = "CLOSE_MODAL"
	UISetGlobalFlag = "SET_GLOBAL_LOADING"
)

// UI holds dashboard chrome state. Theme and sidebar preference persist;
// modal and loading state is transient.
type UI struct{}

func NewUI() *UI { return &UI{} }

func (*UI) Name() string { return "ui" }

func (*UI) InitialState() state.Value {
	return map[string]state.Value{
		"theme":            "light",
		"sidebarCollapsed": false,
		"activeModal":      nil,
		"globalLoading":    false,
	}
}

func (*UI) Mutate(action string, sub, payload state.Value) (state.Value, error) {
	s, err := asMap(sub)
	if err != nil {
		return nil, err
	}
	switch action {
	case UISetTheme:
		theme, ok := payload.(string)
		if !ok {
			return nil, fmt.Errorf("SET_THEME payload must be a string")
		}
		s["theme"] = theme
	case UIToggleSidebar:
		collapsed, _ := s["sidebarCollapsed"].(bool)
		s["sidebarCollapsed"] = !collapsed
	case UIOpenModal:
		name, ok := payload.(string)
		if !ok || name == "" {
			return nil, fmt.Errorf("OPEN_MODAL payload must be a modal name")
		}
		s["activeModal"] = name
	case UICloseModal:
		s["activeModal"] = nil
	case UISetGlobalFlag:
		flag, ok := payload.(bool)
		if !ok {
			return nil, fmt.Errorf("SET_GLOBAL_LOADING payload must be a bool")
		}
		s["globalLoading"] = flag
	default:
		return nil, unknownAction("ui", action)
	}
	return s, nil
}

func (*UI) ValidateMutation(m state.Mutation, sub, prev state.Value) error {
	if m.Action != UISetTheme {
		return nil
	}
	theme := sub.(map[string]state.Value)["theme"]
	if theme != "light" && theme != "dark" {
		return ferrors.ValidationError("unsupported theme").
			WithContext("theme", theme).
			Build()
	}
	return nil
}

func (*UI) ShouldPersist() bool { return true }

// PersistedState keeps the chrome preferences only.
func (*UI) PersistedState(sub state.Value) state.Value {
	s, _ := sub.(map[string]state.Value)
	return map[string]state.Value{
		"theme":            s["theme"],
		"sidebarCollapsed": s["sidebarCollapsed"],
	}
}

func (*UI) OnHydrate(state.Value) {}
