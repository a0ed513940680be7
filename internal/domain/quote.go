package domain

// Quote is the price breakdown frozen onto an order at creation time. All
// amounts are integer paise so there is no floating-point drift anywhere in
// the money path.
type Quote struct {
	PlanID      string
	AddOnIDs    []string
	BasePrice   int64
	AddOnAmount int64
	TaxAmount   int64
	Total       int64
	Currency    string
}
