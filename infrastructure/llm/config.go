package llm

// ExtractOptionalInt extracts an integer value from opts.
// Returns defaultVal if the key is missing, not an int, or fails validator.
func ExtractOptionalInt(opts map[string]any, key string, defaultVal int, validator func(int) bool) int {
	val, ok := opts[key]
	if !ok {
		return defaultVal
	}

	intVal, ok := SafeInt(val)
	if !ok {
		return defaultVal
	}

	if validator != nil && !validator(intVal) {
		return defaultVal
	}

	return intVal
}

// ExtractOptionalString extracts a string value from opts.
// Returns defaultVal if the key is missing, not a string, or fails validator.
func ExtractOptionalString(opts map[string]any, key string, defaultVal string, validator func(string) bool) string {
	strVal, ok := opts[key].(string)
	if !ok {
		return defaultVal
	}

	if validator != nil && !validator(strVal) {
		return defaultVal
	}

	return strVal
}

// ExtractOptionalFloat64 extracts a float64 value from opts.
// Returns defaultVal if the key is missing, not a float64, or fails validator.
func ExtractOptionalFloat64(opts map[string]any, key string, defaultVal float64, validator func(float64) bool) float64 {
	floatVal, ok := opts[key].(float64)
	if !ok {
		return defaultVal
	}

	if validator != nil && !validator(floatVal) {
		return defaultVal
	}

	return floatVal
}

// ExtractOptionalBool extracts a bool value from opts.
func ExtractOptionalBool(opts map[string]any, key string, defaultVal bool) bool {
	b, ok := opts[key].(bool)
	if !ok {
		return defaultVal
	}
	return b
}
