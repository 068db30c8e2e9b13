package discovery

// ComputeResumeIndex returns the next unused address index: one past the
// highest index found in existing or discovered, or 0 when both are empty.
// It is pure and may be called any number of times with the same result.
func ComputeResumeIndex(existing, discovered []DerivationPath) uint32 {
	var (
		maxIndex uint32
		found    bool
	)
	for _, set := range [][]DerivationPath{existing, discovered} {
		for _, p := range set {
			if !found || p.AddressIndex > maxIndex {
				maxIndex = p.AddressIndex
				found = true
			}
		}
	}
	if !found {
		return 0
	}
	return maxIndex + 1
}

// FilterBranch keeps the paths that share base's account and change.
// Imported accounts on other branches do not occupy this session's index space.
func FilterBranch(base DerivationPath, paths []DerivationPath) []DerivationPath {
	out := make([]DerivationPath, 0, len(paths))
	for _, p := range paths {
		if p.SameBranch(base) {
			out = append(out, p)
		}
	}
	return out
}

// RecordPaths extracts the paths of a record slice.
func RecordPaths(records []AddressRecord) []DerivationPath {
	out := make([]DerivationPath, len(records))
	for i, r := range records {
		out[i] = r.Path
	}
	return out
}
