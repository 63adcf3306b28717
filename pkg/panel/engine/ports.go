package engine

// DefaultPortRangeStart is where port scans begin when the caller has
// no preference. 25565 is the conventional game-server default.
const DefaultPortRangeStart = 25565

// DefaultPortRangeEnd bounds the scan. An unbounded forward scan would
// never terminate against a pathological port set, so the ceiling is
// explicit and configurable.
const DefaultPortRangeEnd = 26565

// portCreateAttempts bounds how many times a provision rescans after
// the port unique index rejects an insert.
const portCreateAttempts = 3

// allocatePort scans forward from preferred, skipping ports already in
// use, and returns the first free one at or below ceiling. The caller
// must hold the port-pool lock and pass a snapshot of live allocations;
// the unique index on servers.port backstops the result at insert time.
func allocatePort(preferred, ceiling int, inUse map[int]struct{}) (int, error) {
	if preferred <= 0 {
		preferred = DefaultPortRangeStart
	}
	if ceiling <= 0 {
		ceiling = DefaultPortRangeEnd
	}
	if ceiling > 65535 {
		ceiling = 65535
	}

	for port := preferred; port <= ceiling; port++ {
		if _, taken := inUse[port]; !taken {
			return port, nil
		}
	}
	return 0, NewPortSpaceExhaustedError(ceiling)
}

// portSet builds the in-use lookup from the store's port listing.
func portSet(ports []int) map[int]struct{} {
	set := make(map[int]struct{}, len(ports))
	for _, p := range ports {
		set[p] = struct{}{}
	}
	return set
}
