package vendorselect

// topScoreGroup returns every candidate tied for the top TotalScore,
// within a small epsilon to absorb floating point noise.
func topScoreGroup(ranked []ScoredCandidate) []ScoredCandidate {
	if len(ranked) == 0 {
		return nil
	}
	const epsilon = 0.01
	top := ranked[0].TotalScore
	group := make([]ScoredCandidate, 0, len(ranked))
	for _, c := range ranked {
		if top-c.TotalScore <= epsilon {
			group = append(group, c)
		}
	}
	return group
}

// ApplyStrategy picks exactly one winner from the ranked shortlist using
// the configured tie-break strategy.
func ApplyStrategy(ranked []ScoredCandidate, strategy Strategy, lastChosenVendorID string) ScoredCandidate {
	group := topScoreGroup(ranked)
	if len(group) == 1 {
		return group[0]
	}

	switch strategy {
	case StrategyRoundRobin:
		return roundRobinPick(group, lastChosenVendorID)
	case StrategyLeastLoaded:
		return leastLoadedPick(group)
	default:
		return group[0]
	}
}

// roundRobinPick selects the candidate immediately after lastChosenVendorID
// in the tied group's order, wrapping around; if the last vendor isn't in
// the group, the first candidate is chosen.
func roundRobinPick(group []ScoredCandidate, lastChosenVendorID string) ScoredCandidate {
	for i, c := range group {
		if c.VendorID == lastChosenVendorID {
			return group[(i+1)%len(group)]
		}
	}
	return group[0]
}

// leastLoadedPick breaks ties by ascending active_orders, then descending
// reliability, then ascending price.
func leastLoadedPick(group []ScoredCandidate) ScoredCandidate {
	best := group[0]
	for _, c := range group[1:] {
		if c.ActiveOrders < best.ActiveOrders {
			best = c
			continue
		}
		if c.ActiveOrders > best.ActiveOrders {
			continue
		}
		if c.ReliabilityScore > best.ReliabilityScore {
			best = c
			continue
		}
		if c.ReliabilityScore < best.ReliabilityScore {
			continue
		}
		if c.Price.LessThan(best.Price) {
			best = c
		}
	}
	return best
}
