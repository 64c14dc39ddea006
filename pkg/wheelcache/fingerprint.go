package wheelcache

// ComputeFingerprints computes the fingerprint of every package present in both the graph and recipeHashes.
//
// Packages are processed in topological order so that the fingerprints of all host dependencies
// exist when a package is hashed. Per package we fold
//
//	toolchain:<toolchainHash>
//	recipe:<recipe hash>
//	dep:<name>:<fingerprint>   for every direct host dependency, sorted by name
//
// A change to any package therefore changes the fingerprint of everything that transitively depends on it.
// If the graph contains a cycle nothing is computed and a *CycleError is returned.
func ComputeFingerprints(graph Graph, recipeHashes map[string]string, toolchainHash string) (map[string]string, error) {
	order, err := graph.TopologicalOrder()
	if err != nil {
		return nil, err
	}

	res := make(map[string]string, len(order))
	for _, name := range order {
		rh, ok := recipeHashes[name]
		if !ok {
			continue
		}

		d := NewDigest()
		d.Tagged("toolchain", toolchainHash)
		d.Tagged("recipe", rh)
		for _, dep := range graph.Dependencies(name) {
			fp, ok := res[dep]
			if !ok {
				continue
			}
			d.Tagged("dep", dep+":"+fp)
		}
		res[name] = d.Hex()
	}
	return res, nil
}
