package modules

import (
	"context"
	"fmt"

	"git.ecosistema.dev/plataforma/statecore/internal/api"
	ferrors "git.ecosistema.dev/plataforma/statecore/internal/foundation/errors"
	"git.ecosistema.dev/plataforma/statecore/internal/state"
)

// Projects module mutations.
const (
	ProjectsSet       = "SET_PROJECTS"
	ProjectsAdd       = "ADD_PROJECT"
	ProjectsUpdate    = "UPDATE_PROJECT"
	ProjectsRemove    = "REMOVE_PROJECT"
	ProjectsSelect    = "SELECT_PROJECT"
	ProjectsSetFilter = "SET_FILTER"
)

// Projects tracks the entrepreneurship projects under management: the
// item list, the selected project and the active status filter.
type Projects struct {
	client *api.Client
}

func NewProjects(client *api.Client) *Projects {
	return &Projects{client: client}
}

func (*Projects) Name() string { return "projects" }

func (*Projects) InitialState() state.Value {
	return map[string]state.Value{
		"items":      []state.Value{},
		"selectedId": nil,
		"filter":     "all",
	}
}

func (*Projects) Mutate(action string, sub, payload state.Value) (state.Value, error) {
	s, err := asMap(sub)
	if err != nil {
		return nil, err
	}
	switch action {
	case ProjectsSet:
		items, err := toItemList(payload)
		if err != nil {
			return nil, fmt.Errorf("SET_PROJECTS payload: %w", err)
		}
		s["items"] = items
	case ProjectsAdd:
		if _, ok := itemID(payload); !ok {
			return nil, fmt.Errorf("ADD_PROJECT payload requires an id")
		}
		items, _ := asList(s["items"])
		s["items"] = append(items, payload)
	case ProjectsUpdate:
		id, ok := itemID(payload)
		if !ok {
			return nil, fmt.Errorf("UPDATE_PROJECT payload requires an id")
		}
		items, _ := asList(s["items"])
		updated := false
		for i, item := range items {
			if existing, _ := itemID(item); existing == id {
				items[i] = payload
				updated = true
				break
			}
		}
		if !updated {
			return nil, fmt.Errorf("project %s not found", id)
		}
		s["items"] = items
	case ProjectsRemove:
		id, ok := payload.(string)
		if !ok || id == "" {
			return nil, fmt.Errorf("REMOVE_PROJECT payload must be a project id")
		}
		items, _ := asList(s["items"])
		kept := items[:0]
		for _, item := range items {
			if existing, _ := itemID(item); existing != id {
				kept = append(kept, item)
			}
		}
		s["items"] = kept
		if s["selectedId"] == id {
			s["selectedId"] = nil
		}
	case ProjectsSelect:
		s["selectedId"] = payload
	case ProjectsSetFilter:
		filter, ok := payload.(string)
		if !ok {
			return nil, fmt.Errorf("SET_FILTER payload must be a string")
		}
		s["filter"] = filter
	default:
		return nil, unknownAction("projects", action)
	}
	return s, nil
}

func (p *Projects) Action(ctx context.Context, name string, store state.ActionContext, payload state.Value) (state.Value, error) {
	switch name {
	case "fetchProjects":
		if p.client == nil {
			return nil, ferrors.ActionError("projects module has no API client").Build()
		}
		raw, err := p.client.Get(ctx, "/api/projects")
		if err != nil {
			return nil, err
		}
		items, err := decodeValue(raw)
		if err != nil {
			return nil, err
		}
		if err := store.Commit(ctx, "projects/SET_PROJECTS", items); err != nil {
			return nil, err
		}
		return items, nil
	case "saveProject":
		if p.client == nil {
			return nil, ferrors.ActionError("projects module has no API client").Build()
		}
		raw, err := p.client.Post(ctx, "/api/projects", payload)
		if err != nil {
			return nil, err
		}
		saved, err := decodeValue(raw)
		if err != nil {
			return nil, err
		}
		if err := store.Commit(ctx, "projects/ADD_PROJECT", saved); err != nil {
			return nil, err
		}
		return saved, nil
	default:
		return nil, fmt.Errorf("module projects has no action %q", name)
	}
}

func (*Projects) Getters() map[string]state.Getter {
	return map[string]state.Getter{
		// filtered narrows items by the active status filter; "all"
		// passes everything through.
		"filtered": func(sub state.Value, _ state.Tree, _ state.GetterResolver) state.Value {
			s, _ := sub.(map[string]state.Value)
			items, _ := asList(s["items"])
			filter, _ := s["filter"].(string)
			if filter == "" || filter == "all" {
				return items
			}
			var out []state.Value
			for _, item := range items {
				m, _ := item.(map[string]state.Value)
				if m["status"] == filter {
					out = append(out, item)
				}
			}
			return out
		},
		"selected": func(sub state.Value, _ state.Tree, _ state.GetterResolver) state.Value {
			s, _ := sub.(map[string]state.Value)
			id, _ := s["selectedId"].(string)
			if id == "" {
				return nil
			}
			items, _ := asList(s["items"])
			for _, item := range items {
				if existing, _ := itemID(item); existing == id {
					return item
				}
			}
			return nil
		},
		"count": func(sub state.Value, _ state.Tree, _ state.GetterResolver) state.Value {
			s, _ := sub.(map[string]state.Value)
			items, _ := asList(s["items"])
			return len(items)
		},
	}
}

// toItemList normalizes a decoded JSON array into the item list shape.
func toItemList(payload state.Value) ([]state.Value, error) {
	if payload == nil {
		return []state.Value{}, nil
	}
	items, ok := payload.([]state.Value)
	if !ok {
		return nil, fmt.Errorf("expected list, got %T", payload)
	}
	return items, nil
}
