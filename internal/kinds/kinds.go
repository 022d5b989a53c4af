// ABOUTME: Catalog of the concrete face kinds shipped with the gateway.
// ABOUTME: Select enabled kinds by id; the self kind is added by the registry itself.

package kinds

import (
	"fmt"

	"github.com/2389/face-gateway/internal/face"
)

// Builtin returns every concrete kind in display order.
func Builtin() []face.Kind {
	return []face.Kind{
		TestKind(),
		CmdKind(),
		TmuxKind(),
	}
}

// Names returns the ids of the builtin kinds.
func Names() []string {
	all := Builtin()
	names := make([]string, len(all))
	for i, k := range all {
		names[i] = k.ID
	}
	return names
}

// Select returns the builtin kinds with the given ids, in the given order.
func Select(ids []string) ([]face.Kind, error) {
	byID := make(map[string]face.Kind)
	for _, k := range Builtin() {
		byID[k.ID] = k
	}
	out := make([]face.Kind, 0, len(ids))
	for _, id := range ids {
		k, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("%w: %s", face.ErrUnknownKind, id)
		}
		out = append(out, k)
	}
	return out, nil
}

func configString(cfg map[string]any, key, fallback string) string {
	if v, ok := cfg[key].(string); ok && v != "" {
		return v
	}
	return fallback
}

func configBool(cfg map[string]any, key string) bool {
	v, _ := cfg[key].(bool)
	return v
}
