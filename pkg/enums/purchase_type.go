package enums

// PurchaseType distinguishes token packs from plan upgrades in checkout metadata.
type PurchaseType string

const (
	PurchaseTokens PurchaseType = "tokens"
	PurchasePlan   PurchaseType = "plan"
)

func (p PurchaseType) IsValid() bool {
	return p == PurchaseTokens || p == PurchasePlan
}

func ParsePurchaseType(value string) (PurchaseType, error) {
	return parse([]PurchaseType{PurchaseTokens, PurchasePlan}, value, "purchase type")
}
