package config

// Options fetches typed values from a free-form options map. It performs only
// minimal coercion and returns the provided default when a key is absent or of
// an unexpected type.
type Options map[string]any

// String returns the string value for key or def.
func (o Options) String(key, def string) string {
	if v, ok := o[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return def
}

// Bool returns the bool value for key or def.
func (o Options) Bool(key string, def bool) bool {
	if v, ok := o[key]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return def
}

// Int returns the int value for key or def. YAML decodes integers as int and
// JSON-style floats as float64; both are accepted.
func (o Options) Int(key string, def int) int {
	if v, ok := o[key]; ok {
		switch n := v.(type) {
		case int:
			return n
		case int64:
			return int(n)
		case float64:
			return int(n)
		}
	}
	return def
}

// Rune returns the first rune of a string value for key, or def when missing or
// empty. Used for single-character settings such as the CSV delimiter.
func (o Options) Rune(key string, def rune) rune {
	if v, ok := o[key]; ok {
		if s, ok := v.(string); ok && len(s) > 0 {
			return []rune(s)[0]
		}
	}
	return def
}

// StringMap returns the string-valued entries of an object option. Non-string
// values are ignored. Returns an empty map when the key is missing.
func (o Options) StringMap(key string) map[string]string {
	res := map[string]string{}
	v, ok := o[key]
	if !ok {
		return res
	}
	switch m := v.(type) {
	case map[string]any:
		for k, vv := range m {
			if s, ok := vv.(string); ok {
				res[k] = s
			}
		}
	case map[string]string:
		for k, s := range m {
			res[k] = s
		}
	}
	return res
}
