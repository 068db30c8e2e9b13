package discovery

// ApplyGapLimit collapses the first batch of a session to a single fresh
// address when every record in it is unused. Later batches are requested
// explicitly by the user and are returned unchanged, as is any batch holding
// a funded address, an unknown balance or a failed derivation.
func ApplyGapLimit(batch []AddressRecord, isInitialScan bool) []AddressRecord {
	if !isInitialScan || len(batch) == 0 || !AllUnused(batch) {
		return batch
	}
	return batch[:1:1]
}

// AllUnused reports whether every record has a known zero balance.
// An empty batch reports false.
func AllUnused(batch []AddressRecord) bool {
	if len(batch) == 0 {
		return false
	}
	for _, r := range batch {
		if !r.IsUnused() {
			return false
		}
	}
	return true
}
