package ledger

// Transition is an item that became fully funded by an allocation
type Transition struct {
	ItemID int64
	Title  string
}

// FundingTransitions compares each allocation's pre-allocation snapshot
// with its post-allocation state and returns the items that went from
// not funded to funded. Uncapped items never transition.
func FundingTransitions(plan Plan) []Transition {
	var out []Transition
	for _, a := range plan.Allocations {
		if !a.Target.IsPositive() {
			continue
		}
		wasFunded := a.Collected.GreaterThanOrEqual(a.Target)
		nowFunded := a.CollectedAfter().GreaterThanOrEqual(a.Target)
		if !wasFunded && nowFunded {
			out = append(out, Transition{ItemID: a.ItemID, Title: a.Title})
		}
	}
	return out
}
