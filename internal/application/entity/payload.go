package entity

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Payload входные данные обработчика (jsonb)
type Payload map[string]any

// Result результат обработчика (jsonb)
type Result map[string]any

func (p Payload) String(key string) string {
	v, ok := p[key]
	if !ok || v == nil {
		return ""
	}
	switch vv := v.(type) {
	case string:
		return vv
	case json.Number:
		return vv.String()
	case float64:
		return strconv.FormatFloat(vv, 'f', -1, 64)
	default:
		return fmt.Sprint(vv)
	}
}

// Int64 принимает как числа, так и числовые строки
func (p Payload) Int64(key string) int64 {
	switch vv := p[key].(type) {
	case float64:
		return int64(vv)
	case int:
		return int64(vv)
	case int64:
		return vv
	case json.Number:
		n, _ := vv.Int64()
		return n
	case string:
		n, _ := strconv.ParseInt(vv, 10, 64)
		return n
	default:
		return 0
	}
}

func (p Payload) Strings(key string) []string {
	switch vv := p[key].(type) {
	case []string:
		return vv
	case []any:
		out := make([]string, 0, len(vv))
		for _, item := range vv {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

// Objects список объектов по ключу, всё остальное пропускаем
func (p Payload) Objects(key string) []Payload {
	switch vv := p[key].(type) {
	case []map[string]any:
		out := make([]Payload, 0, len(vv))
		for _, m := range vv {
			out = append(out, Payload(m))
		}
		return out
	case []any:
		out := make([]Payload, 0, len(vv))
		for _, item := range vv {
			if m, ok := item.(map[string]any); ok {
				out = append(out, Payload(m))
			}
		}
		return out
	default:
		return nil
	}
}

// Flatten скалярные значения в строки, для подстановки в шаблоны
func (p Payload) Flatten() map[string]string {
	out := make(map[string]string, len(p))
	for k, v := range p {
		switch v.(type) {
		case string, float64, int, int64, bool, json.Number:
			out[k] = p.String(k)
		}
	}
	return out
}

func (p Payload) Clone() Payload {
	out := make(Payload, len(p)+4)
	for k, v := range p {
		out[k] = v
	}
	return out
}

func MarshalJSONB(v any) ([]byte, error) {
	if v == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(v)
}
