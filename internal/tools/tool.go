// Package tools defines the callable functions exposed to the agent's
// completion model.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"

	"github.com/kernelworks/kernelbot/internal/domain"
)

// Tool is a callable function the agent can expose to its model.
type Tool interface {
	// Name returns the function name as exposed to the model.
	Name() string

	// Description returns a human-readable description for the model.
	Description() string

	// Parameters returns the JSON Schema describing the function's input.
	Parameters() map[string]any

	// Invoke calls the function with the given JSON arguments.
	Invoke(ctx context.Context, args json.RawMessage) (any, error)
}

// FuncTool is a Tool backed by a Go function.
type FuncTool struct {
	name        string
	description string
	parameters  map[string]any
	fn          func(ctx context.Context, args json.RawMessage) (any, error)
}

// New creates a FuncTool from a raw JSON-schema parameter map and handler
func New(name, description string, parameters map[string]any, fn func(ctx context.Context, args json.RawMessage) (any, error)) *FuncTool {
	return &FuncTool{
		name:        name,
		description: description,
		parameters:  parameters,
		fn:          fn,
	}
}

// NewTyped creates a FuncTool that decodes arguments into Args before
// calling fn. The parameter schema is still written by hand: the toolset is
// small and the schemas carry descriptions the model relies on.
func NewTyped[Args any](name, description string, parameters map[string]any, fn func(ctx context.Context, args Args) (any, error)) *FuncTool {
	wrapped := func(ctx context.Context, raw json.RawMessage) (any, error) {
		var args Args
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &args); err != nil {
				return nil, fmt.Errorf("tool %s: invalid arguments: %w", name, err)
			}
		}
		return fn(ctx, args)
	}
	return New(name, description, parameters, wrapped)
}

func (t *FuncTool) Name() string               { return t.name }
func (t *FuncTool) Description() string        { return t.description }
func (t *FuncTool) Parameters() map[string]any { return t.parameters }

func (t *FuncTool) Invoke(ctx context.Context, args json.RawMessage) (any, error) {
	if t.fn == nil {
		return nil, fmt.Errorf("tool %s has no handler", t.name)
	}
	return t.fn(ctx, args)
}

// Toolset is a named collection of tools
type Toolset map[string]Tool

// NewToolset builds a toolset keyed by tool name
func NewToolset(tools ...Tool) Toolset {
	set := make(Toolset, len(tools))
	for _, t := range tools {
		set[t.Name()] = t
	}
	return set
}

// Get returns the named tool
func (s Toolset) Get(name string) (Tool, error) {
	t, ok := s[name]
	if !ok {
		return nil, domain.ErrToolNotFound
	}
	return t, nil
}

// Names returns tool names in deterministic order
func (s Toolset) Names() []string {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Ordered returns the tools sorted by name, for stable declarations
func (s Toolset) Ordered() []Tool {
	ordered := make([]Tool, 0, len(s))
	for _, name := range s.Names() {
		ordered = append(ordered, s[name])
	}
	return ordered
}

// ExtractAttachments collects citation, media and chart values from a tool
// result, walking slices and exported struct fields.
func ExtractAttachments(result any) []domain.Attachment {
	var out []domain.Attachment
	collectAttachments(reflect.ValueOf(result), &out)
	return out
}

func collectAttachments(v reflect.Value, out *[]domain.Attachment) {
	if !v.IsValid() {
		return
	}

	if v.CanInterface() {
		if att, ok := v.Interface().(domain.Attachment); ok {
			// Charts are structs that are themselves attachments; do not
			// descend into their fields.
			*out = append(*out, att)
			return
		}
	}

	switch v.Kind() {
	case reflect.Pointer, reflect.Interface:
		if !v.IsNil() {
			collectAttachments(v.Elem(), out)
		}
	case reflect.Slice, reflect.Array:
		for i := 0; i < v.Len(); i++ {
			collectAttachments(v.Index(i), out)
		}
	case reflect.Map:
		for _, key := range v.MapKeys() {
			collectAttachments(v.MapIndex(key), out)
		}
	case reflect.Struct:
		for i := 0; i < v.NumField(); i++ {
			if v.Type().Field(i).IsExported() {
				collectAttachments(v.Field(i), out)
			}
		}
	}
}
