package doctest

import (
	"sort"
	"time"

	"github.com/linegrid/linegrid/pkg/store/document"
)

func cloneDoc(doc map[string]any) map[string]any {
	cp := make(map[string]any, len(doc))
	for k, v := range doc {
		cp[k] = v
	}
	return cp
}

func matches(doc map[string]any, filter document.Filter) bool {
	for _, c := range filter.All {
		if !matchCond(doc, c) {
			return false
		}
	}
	if len(filter.Any) > 0 {
		any := false
		for _, sub := range filter.Any {
			if matches(doc, sub) {
				any = true
				break
			}
		}
		if !any {
			return false
		}
	}
	return true
}

func matchCond(doc map[string]any, c document.Cond) bool {
	v, present := doc[c.Field]
	if c.Value == nil {
		if c.Op == document.OpEq {
			return !present || v == nil
		}
		return present && v != nil
	}
	if !present || v == nil {
		return false
	}

	cmp, ok := compare(v, c.Value)
	if !ok {
		return false
	}
	switch c.Op {
	case document.OpEq:
		return cmp == 0
	case document.OpNe:
		return cmp != 0
	case document.OpLt:
		return cmp < 0
	case document.OpLte:
		return cmp <= 0
	case document.OpGt:
		return cmp > 0
	case document.OpGte:
		return cmp >= 0
	default:
		return false
	}
}

// compare returns -1/0/1 comparing a to b, and false if they aren't
// comparable (different, non-coercible kinds).
func compare(a, b any) (int, bool) {
	if as, ok := a.(string); ok {
		if bs, ok := b.(string); ok {
			switch {
			case as < bs:
				return -1, true
			case as > bs:
				return 1, true
			default:
				return 0, true
			}
		}
	}

	if at, ok := asTime(a); ok {
		if bt, ok := asTime(b); ok {
			switch {
			case at.Before(bt):
				return -1, true
			case at.After(bt):
				return 1, true
			default:
				return 0, true
			}
		}
	}

	if af, ok := asFloat(a); ok {
		if bf, ok := asFloat(b); ok {
			switch {
			case af < bf:
				return -1, true
			case af > bf:
				return 1, true
			default:
				return 0, true
			}
		}
	}

	return 0, false
}

func asTime(v any) (time.Time, bool) {
	t, ok := v.(time.Time)
	return t, ok
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	case float32:
		return float64(n), true
	default:
		return 0, false
	}
}

func sortDocs(docs []map[string]any, sortKeys document.Sort) {
	if len(sortKeys) == 0 {
		return
	}
	sort.SliceStable(docs, func(i, j int) bool {
		for _, key := range sortKeys {
			cmp, ok := compare(docs[i][key.Field], docs[j][key.Field])
			if !ok || cmp == 0 {
				continue
			}
			if key.Ascending {
				return cmp < 0
			}
			return cmp > 0
		}
		return false
	})
}

func applyUpdate(doc map[string]any, update document.Update) {
	for k, v := range update.Set {
		doc[k] = v
	}
	for field, delta := range update.Inc {
		current, _ := asFloat(doc[field])
		d, _ := asFloat(delta)
		doc[field] = current + d
	}
	if update.PushCapped != nil {
		pushCapped(doc, update.PushCapped)
	}
}

func pushCapped(doc map[string]any, push *document.PushCapped) {
	existing, _ := doc[push.Field].([]any)
	arr := append(append([]any{}, existing...), push.Value)
	if len(arr) > push.Cap {
		arr = arr[len(arr)-push.Cap:]
	}
	doc[push.Field] = arr
}
