package main

// Tiered field lookup over decoded JSON. Each backend dialect may deliver the
// same logical value at several paths and under several names; these helpers
// try candidates in priority order and silently skip anything missing or of
// the wrong type. encoding/json decodes into map[string]any, numbers as
// float64.

// asMap returns v as an object, or nil if it is anything else.
func asMap(v any) map[string]any {
	m, _ := v.(map[string]any)
	return m
}

// getMap looks up a nested object field. Returns nil when the field is
// absent or is not an object (a "file" that is a string, for example).
func getMap(data map[string]any, key string) map[string]any {
	if data == nil {
		return nil
	}
	return asMap(data[key])
}

// getString returns the first of the named fields that holds a non-empty
// string, or "" when none does.
func getString(data map[string]any, keys ...string) string {
	if data == nil {
		return ""
	}
	for _, key := range keys {
		if s, ok := data[key].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

// getFloat returns the first of the named fields that holds a number.
func getFloat(data map[string]any, keys ...string) *float64 {
	if data == nil {
		return nil
	}
	for _, key := range keys {
		switch n := data[key].(type) {
		case float64:
			v := n
			return &v
		case int:
			v := float64(n)
			return &v
		}
	}
	return nil
}

// getInt returns the first of the named fields that holds a number,
// truncated to an integer.
func getInt(data map[string]any, keys ...string) *int {
	f := getFloat(data, keys...)
	if f == nil {
		return nil
	}
	v := int(*f)
	return &v
}

// normalizeProgress converts a progress value that may be a 0-1 fraction or
// a 0-100 percentage into a clamped 0-1 fraction. Values at or below 1.0
// are treated as already normalized; a genuine percentage of exactly 1% is
// therefore read as 100%, which matches how every backend we have seen
// actually reports.
func normalizeProgress(v *float64) *float64 {
	if v == nil {
		return nil
	}
	if *v <= 1.0 {
		return clamp(v, 0.0, 1.0)
	}
	frac := *v / 100.0
	return clamp(&frac, 0.0, 1.0)
}

// percentProgress converts a 0-100 percentage into a clamped 0-1 fraction.
func percentProgress(v *float64) *float64 {
	if v == nil {
		return nil
	}
	frac := *v / 100.0
	return clamp(&frac, 0.0, 1.0)
}

// actualTemp digs the "actual" reading out of an OctoPrint-style
// {actual, target} object. Returns nil if the shape does not match.
func actualTemp(v any) *float64 {
	return getFloat(asMap(v), "actual")
}
