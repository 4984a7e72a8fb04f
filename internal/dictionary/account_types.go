// Package dictionary holds the curated account type catalogue.
package dictionary

import "sort"

// Class tells whether an account of a type usually holds money or owes it.
type Class string

const (
	ClassAsset     Class = "asset"
	ClassLiability Class = "liability"
)

// AccountType is one catalogue entry.
type AccountType struct {
	Code  string `json:"code"`
	Label string `json:"label"`
	Class Class  `json:"class"`
}

var curated = map[string]AccountType{
	"bank":        {Code: "bank", Label: "Bank", Class: ClassAsset},
	"cash":        {Code: "cash", Label: "Cash", Class: ClassAsset},
	"wallet":      {Code: "wallet", Label: "Digital Wallet", Class: ClassAsset},
	"savings":     {Code: "savings", Label: "Savings", Class: ClassAsset},
	"investment":  {Code: "investment", Label: "Investment", Class: ClassAsset},
	"credit_card": {Code: "credit_card", Label: "Credit Card", Class: ClassLiability},
	"loan":        {Code: "loan", Label: "Loan", Class: ClassLiability},
}

// Lookup returns the catalogue entry for code.
func Lookup(code string) (AccountType, bool) {
	t, ok := curated[code]
	return t, ok
}

// AccountTypes lists the catalogue sorted by code, optionally restricted to one class.
func AccountTypes(class *Class) []AccountType {
	out := make([]AccountType, 0, len(curated))
	for _, t := range curated {
		if class != nil && t.Class != *class {
			continue
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}
