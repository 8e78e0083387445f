package enums

// LedgerKind maps to the ledger_kind enum in Postgres. It classifies an entry
// and never takes part in balance math.
type LedgerKind string

const (
	LedgerKindBlog     LedgerKind = "blog"
	LedgerKindImage    LedgerKind = "image"
	LedgerKindResume   LedgerKind = "resume"
	LedgerKindCode     LedgerKind = "code"
	LedgerKindPurchase LedgerKind = "purchase"
	LedgerKindRefund   LedgerKind = "refund"
)

var validLedgerKinds = []LedgerKind{
	LedgerKindBlog,
	LedgerKindImage,
	LedgerKindResume,
	LedgerKindCode,
	LedgerKindPurchase,
	LedgerKindRefund,
}

// ServiceKinds lists the kinds that are charged per AI service call.
var ServiceKinds = []LedgerKind{
	LedgerKindBlog,
	LedgerKindImage,
	LedgerKindResume,
	LedgerKindCode,
}

func (k LedgerKind) IsValid() bool { return member(validLedgerKinds, k) }

// IsService reports whether the kind is a paid service category.
func (k LedgerKind) IsService() bool { return member(ServiceKinds, k) }

// ParseLedgerKind converts raw input into LedgerKind. The legacy "codehelper"
// label is accepted as code.
func ParseLedgerKind(value string) (LedgerKind, error) {
	if value == "codehelper" {
		return LedgerKindCode, nil
	}
	return parse(validLedgerKinds, value, "ledger kind")
}
