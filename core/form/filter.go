package form

// FilterOptions returns the options whose ParentID matches the selected
// parent option, preserving arrival order. A blank parent selects nothing.
// The input is never mutated.
func FilterOptions(opts []Option, parentID string) []Option {
	filtered := make([]Option, 0, len(opts))
	if parentID == "" {
		return filtered
	}
	for _, opt := range opts {
		if opt.ParentID == parentID {
			filtered = append(filtered, opt)
		}
	}
	return filtered
}
