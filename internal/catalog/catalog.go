package catalog

import (
	"fmt"
	"sort"

	"checkout-engine/internal/domain"
)

const (
	// Currency for every quote. Single-currency by design.
	Currency = "INR"

	// GST in basis points, applied to base + add-ons.
	taxRateBasisPoints = 1800
)

// Plan is a purchasable package with a base price in paise.
type Plan struct {
	ID        string
	Name      string
	BasePrice int64
}

// AddOn is an optional extra, priced independently of the plan.
type AddOn struct {
	ID    string
	Name  string
	Price int64
}

var plans = map[string]Plan{
	"verification": {ID: "verification", Name: "Listing Verification", BasePrice: 99900},
	"starter":      {ID: "starter", Name: "Starter Website", BasePrice: 499900},
	"growth":       {ID: "growth", Name: "Growth Website", BasePrice: 999900},
	"custom":       {ID: "custom", Name: "Recommended Plan", BasePrice: 1499900},
}

var addOns = map[string]AddOn{
	"seo-boost":     {ID: "seo-boost", Name: "SEO Boost", Price: 149900},
	"logo-design":   {ID: "logo-design", Name: "Logo Design", Price: 99900},
	"content-pack":  {ID: "content-pack", Name: "Content Pack", Price: 74900},
	"express-build": {ID: "express-build", Name: "Express Build", Price: 49900},
}

// ComputeQuote prices a (plan, add-ons) selection. Pure and deterministic:
// same inputs always produce the same Quote, duplicate add-on ids count once,
// tax is rounded half-up to the nearest paisa.
func ComputeQuote(planID string, addOnIDs []string) (domain.Quote, error) {
	plan, ok := plans[planID]
	if !ok {
		return domain.Quote{}, fmt.Errorf("%w: %q", domain.ErrUnknownPlan, planID)
	}

	seen := make(map[string]struct{}, len(addOnIDs))
	selected := make([]string, 0, len(addOnIDs))
	var addOnAmount int64
	for _, id := range addOnIDs {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		addOn, ok := addOns[id]
		if !ok {
			return domain.Quote{}, fmt.Errorf("%w: %q", domain.ErrUnknownAddOn, id)
		}
		selected = append(selected, id)
		addOnAmount += addOn.Price
	}
	sort.Strings(selected)

	taxable := plan.BasePrice + addOnAmount
	tax := roundHalfUpBasisPoints(taxable, taxRateBasisPoints)

	return domain.Quote{
		PlanID:      planID,
		AddOnIDs:    selected,
		BasePrice:   plan.BasePrice,
		AddOnAmount: addOnAmount,
		TaxAmount:   tax,
		Total:       taxable + tax,
		Currency:    Currency,
	}, nil
}

// roundHalfUpBasisPoints computes amount * bp / 10000 rounded half-up, in
// integer arithmetic. This is the one place cent-level drift could appear, so
// the rule is fixed here and pinned by tests.
func roundHalfUpBasisPoints(amount int64, bp int64) int64 {
	return (amount*bp + 5000) / 10000
}
