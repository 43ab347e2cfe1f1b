package spawn

import (
	"fmt"
	"hash/fnv"
)

// Callsigns give child agents short memorable names. Picks are deterministic
// in (runID, index) so a re-run of the same spawn produces the same names,
// with a nonce to step past collisions within one run.

var callsignAdjectives = []string{
	"amber", "bold", "brisk", "calm", "clever", "crimson", "eager", "fleet",
	"gentle", "golden", "hardy", "keen", "lively", "lucid", "mellow", "nimble",
	"quiet", "rapid", "silver", "solid", "steady", "swift", "vivid", "witty",
}

var callsignNouns = []string{
	"badger", "condor", "cougar", "falcon", "ferret", "gecko", "heron",
	"ibis", "jackal", "kestrel", "lynx", "marten", "osprey", "otter",
	"pelican", "puffin", "raven", "sable", "shrike", "stoat", "swallow",
	"tern", "viper", "wren",
}

func callsignFor(runID string, index, nonce int) string {
	h := fnv.New64a()
	fmt.Fprintf(h, "%s|%d|%d", runID, index, nonce)
	v := h.Sum64()
	adj := callsignAdjectives[v%uint64(len(callsignAdjectives))]
	noun := callsignNouns[(v/uint64(len(callsignAdjectives)))%uint64(len(callsignNouns))]
	return adj + "-" + noun
}

// assignCallsigns picks n distinct callsigns for one run.
func assignCallsigns(runID string, n int) []string {
	used := make(map[string]bool, n)
	out := make([]string, n)
	for i := range out {
		for nonce := 0; ; nonce++ {
			cs := callsignFor(runID, i, nonce)
			if !used[cs] {
				used[cs] = true
				out[i] = cs
				break
			}
		}
	}
	return out
}

// AgentName is the registry name a spawned child registers under: the
// callsign qualified by the run id, so concurrent runs never collide.
func AgentName(callsign, runID string) string {
	return callsign + "." + runID
}
