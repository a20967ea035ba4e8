package paconf

import (
	"github.com/tracegas/pagraph/internal/errors"
)

// params wraps a node's decoded parameter table with typed, error-wrapped
// accessors. yaml.v3 decodes scalars into string/bool/int/float64 and
// sequences into []any, so every accessor below tolerates the numeric
// kind yaml actually produced (int vs float64) rather than assuming one.
type params struct {
	nodeID string
	m      map[string]any
}

func newParams(nodeID string, m map[string]any) *params {
	return &params{nodeID: nodeID, m: m}
}

func (p *params) errf(format string, args ...any) error {
	return errors.Newf(format, args...).
		Component("paconf").Category(errors.CategoryConfiguration).
		Context("node_id", p.nodeID).Build()
}

func (p *params) requireString(key string) (string, error) {
	v, ok := p.m[key]
	if !ok {
		return "", p.errf("node %q missing required parameter %q", p.nodeID, key)
	}
	s, ok := v.(string)
	if !ok {
		return "", p.errf("node %q parameter %q must be a string, got %T", p.nodeID, key, v)
	}
	return s, nil
}

func (p *params) stringOr(key, def string) string {
	if v, ok := p.m[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return def
}

func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

func (p *params) requireFloat(key string) (float64, error) {
	v, ok := p.m[key]
	if !ok {
		return 0, p.errf("node %q missing required parameter %q", p.nodeID, key)
	}
	f, ok := toFloat64(v)
	if !ok {
		return 0, p.errf("node %q parameter %q must be numeric, got %T", p.nodeID, key, v)
	}
	return f, nil
}

func (p *params) floatOr(key string, def float64) float64 {
	if v, ok := p.m[key]; ok {
		if f, ok := toFloat64(v); ok {
			return f
		}
	}
	return def
}

func (p *params) requireInt(key string) (int, error) {
	v, ok := p.m[key]
	if !ok {
		return 0, p.errf("node %q missing required parameter %q", p.nodeID, key)
	}
	f, ok := toFloat64(v)
	if !ok {
		return 0, p.errf("node %q parameter %q must be an integer, got %T", p.nodeID, key, v)
	}
	return int(f), nil
}

func (p *params) intOr(key string, def int) int {
	if v, ok := p.m[key]; ok {
		if f, ok := toFloat64(v); ok {
			return int(f)
		}
	}
	return def
}

func (p *params) boolOr(key string, def bool) bool {
	if v, ok := p.m[key]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return def
}

func (p *params) floatSliceOr(key string, def []float64) ([]float64, error) {
	v, ok := p.m[key]
	if !ok {
		return def, nil
	}
	seq, ok := v.([]any)
	if !ok {
		return nil, p.errf("node %q parameter %q must be a sequence, got %T", p.nodeID, key, v)
	}
	out := make([]float64, len(seq))
	for i, e := range seq {
		f, ok := toFloat64(e)
		if !ok {
			return nil, p.errf("node %q parameter %q[%d] must be numeric, got %T", p.nodeID, key, i, e)
		}
		out[i] = f
	}
	return out, nil
}

func (p *params) channelsOr(def string) (string, error) {
	s := p.stringOr("channels", def)
	if s != "single" && s != "dual" {
		return "", p.errf("node %q channels must be %q or %q, got %q", p.nodeID, "single", "dual", s)
	}
	return s, nil
}
