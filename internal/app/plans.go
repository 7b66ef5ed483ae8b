package app

// Plan is a pricing tier shown on the public landing page.
type Plan struct {
	Name        string `json:"name"`
	Price       string `json:"price"`
	Highlighted bool   `json:"highlighted"`
}

var plans = []Plan{
	{Name: "Individual", Price: "£29/mo"},
	{Name: "Squad Pro", Price: "£199/mo", Highlighted: true},
	{Name: "Elite", Price: "£POA"},
}

// Plans returns the pricing tiers.
func Plans() []Plan {
	out := make([]Plan, len(plans))
	copy(out, plans)
	return out
}
