package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"productapi/internal/models"
)

// patchField is one of the product fields a partial update may set.
type patchField string

const (
	patchName  patchField = "name"
	patchPrice patchField = "price"
)

// patchSetters assigns a value to its field and reports whether the value
// had an acceptable type.
var patchSetters = map[patchField]func(p *models.Product, value interface{}) bool{
	patchName: func(p *models.Product, value interface{}) bool {
		name, ok := value.(string)
		if ok {
			p.Name = name
		}
		return ok
	},
	patchPrice: func(p *models.Product, value interface{}) bool {
		price, ok := toFloat64(value)
		if ok {
			p.Price = price
		}
		return ok
	},
}

// applyPatch sets every recognised, well-typed entry of updates on p and
// returns the applied and ignored keys, sorted.
func applyPatch(p *models.Product, updates map[string]interface{}) (applied, ignored []string) {
	applied = []string{}
	ignored = []string{}
	for key, value := range updates {
		set, known := patchSetters[patchField(key)]
		if known && set(p, value) {
			applied = append(applied, key)
			continue
		}
		ignored = append(ignored, key)
	}
	sort.Strings(applied)
	sort.Strings(ignored)
	return applied, ignored
}

func toFloat64(value interface{}) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int8:
		return float64(v), true
	case int16:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint:
		return float64(v), true
	case uint8:
		return float64(v), true
	case uint16:
		return float64(v), true
	case uint32:
		return float64(v), true
	case uint64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

func invalidID(id int64) error {
	return fmt.Errorf("invalid product ID %d: %w", id, models.ErrProductNotFound)
}

func isNotFound(err error) bool {
	return errors.Is(err, models.ErrProductNotFound)
}
