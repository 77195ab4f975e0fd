package harness

// valuesEqual compares an expected scenario value against a value scanned
// from SQLite. YAML decodes numbers as int or float64 while the driver
// returns int64 and float64, so numeric values compare through float64.
func valuesEqual(want, got any) bool {
	if want == nil || got == nil {
		return want == nil && got == nil
	}

	if wf, ok := asFloat(want); ok {
		gf, ok := asFloat(got)
		return ok && wf == gf
	}

	if wb, ok := want.(bool); ok {
		switch g := got.(type) {
		case bool:
			return wb == g
		case int64:
			// SQLite stores booleans as 0/1.
			return wb == (g != 0)
		}
		return false
	}

	return want == got
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}
