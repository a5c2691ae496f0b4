package lua

import (
	glua "github.com/yuin/gopher-lua"
)

// toLua converts a decoded JSON value (maps, slices, scalars) into the
// equivalent Lua value.
func toLua(L *glua.LState, v any) glua.LValue {
	switch val := v.(type) {
	case nil:
		return glua.LNil
	case bool:
		return glua.LBool(val)
	case int:
		return glua.LNumber(val)
	case int64:
		return glua.LNumber(val)
	case float64:
		return glua.LNumber(val)
	case string:
		return glua.LString(val)
	case []any:
		t := L.NewTable()
		for i, item := range val {
			t.RawSetInt(i+1, toLua(L, item))
		}
		return t
	case map[string]any:
		t := L.NewTable()
		for k, item := range val {
			t.RawSetString(k, toLua(L, item))
		}
		return t
	default:
		return glua.LNil
	}
}

// toGo converts a Lua value back into plain Go data. Tables with
// contiguous integer keys from 1 become slices, all others maps.
// Functions and userdata convert to nil.
func toGo(lv glua.LValue) any {
	switch v := lv.(type) {
	case glua.LBool:
		return bool(v)
	case glua.LNumber:
		f := float64(v)
		if f == float64(int64(f)) {
			return int64(f)
		}
		return f
	case glua.LString:
		return string(v)
	case *glua.LTable:
		return tableToGo(v)
	default:
		return nil
	}
}

func tableToGo(t *glua.LTable) any {
	maxN := t.MaxN()
	if maxN > 0 {
		count := 0
		t.ForEach(func(_, _ glua.LValue) { count++ })
		if count == maxN {
			arr := make([]any, maxN)
			for i := 1; i <= maxN; i++ {
				arr[i-1] = toGo(t.RawGetInt(i))
			}
			return arr
		}
	}
	m := make(map[string]any)
	t.ForEach(func(k, v glua.LValue) {
		m[k.String()] = toGo(v)
	})
	return m
}
