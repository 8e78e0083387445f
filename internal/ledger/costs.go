package ledger

import (
	"fmt"
	"sort"

	"github.com/mianhamzaathar/AIFORGE/pkg/config"
	"github.com/mianhamzaathar/AIFORGE/pkg/enums"
)

// Operation names a paid AI service call.
type Operation string

const (
	OperationBlogGenerate   Operation = "blog.generate"
	OperationBlogImprove    Operation = "blog.improve"
	OperationImageGenerate  Operation = "image.generate"
	OperationResumeOptimize Operation = "resume.optimize"
	OperationCodeAnalyze    Operation = "code.analyze"
)

var operationKinds = map[Operation]enums.LedgerKind{
	OperationBlogGenerate:   enums.LedgerKindBlog,
	OperationBlogImprove:    enums.LedgerKindBlog,
	OperationImageGenerate:  enums.LedgerKindImage,
	OperationResumeOptimize: enums.LedgerKindResume,
	OperationCodeAnalyze:    enums.LedgerKindCode,
}

// ParseOperation converts raw input into Operation.
func ParseOperation(value string) (Operation, error) {
	op := Operation(value)
	if _, ok := operationKinds[op]; !ok {
		return "", fmt.Errorf("unknown operation %q", value)
	}
	return op, nil
}

// Price is what one operation charges and the kind it is booked under.
type Price struct {
	Operation Operation        `json:"operation"`
	Kind      enums.LedgerKind `json:"kind"`
	Tokens    int64            `json:"tokens"`
}

// CostTable is the single source of truth for service pricing.
type CostTable struct {
	perKind map[enums.LedgerKind]int64
}

// NewCostTable validates that every service kind has a positive whole cost.
func NewCostTable(perKind map[enums.LedgerKind]int64) (CostTable, error) {
	table := CostTable{perKind: make(map[enums.LedgerKind]int64, len(enums.ServiceKinds))}
	for kind, cost := range perKind {
		if !kind.IsService() {
			return CostTable{}, fmt.Errorf("kind %q is not a paid service", kind)
		}
		table.perKind[kind] = cost
	}
	for _, kind := range enums.ServiceKinds {
		cost, ok := table.perKind[kind]
		if !ok {
			return CostTable{}, fmt.Errorf("missing cost for kind %q", kind)
		}
		if cost <= 0 {
			return CostTable{}, fmt.Errorf("cost for kind %q must be positive, got %d", kind, cost)
		}
	}
	return table, nil
}

// CostTableFromConfig builds the table from AIFORGE_TOKEN_COST_* settings.
func CostTableFromConfig(cfg config.TokenCostsConfig) (CostTable, error) {
	return NewCostTable(map[enums.LedgerKind]int64{
		enums.LedgerKindBlog:   cfg.Blog,
		enums.LedgerKindImage:  cfg.Image,
		enums.LedgerKindResume: cfg.Resume,
		enums.LedgerKindCode:   cfg.Code,
	})
}

// ForKind returns the configured cost of one call of kind.
func (c CostTable) ForKind(kind enums.LedgerKind) (int64, bool) {
	cost, ok := c.perKind[kind]
	return cost, ok
}

// Price resolves what op charges. Improving a blog costs half a generation,
// never less than one token.
func (c CostTable) Price(op Operation) (Price, error) {
	kind, ok := operationKinds[op]
	if !ok {
		return Price{}, fmt.Errorf("unknown operation %q", op)
	}
	cost, ok := c.perKind[kind]
	if !ok {
		return Price{}, fmt.Errorf("no cost configured for kind %q", kind)
	}
	if op == OperationBlogImprove {
		cost = max(cost/2, 1)
	}
	return Price{Operation: op, Kind: kind, Tokens: cost}, nil
}

// Prices lists every operation price, sorted by operation name.
func (c CostTable) Prices() []Price {
	ops := make([]Operation, 0, len(operationKinds))
	for op := range operationKinds {
		ops = append(ops, op)
	}
	sort.Slice(ops, func(i, j int) bool { return ops[i] < ops[j] })

	prices := make([]Price, 0, len(ops))
	for _, op := range ops {
		if price, err := c.Price(op); err == nil {
			prices = append(prices, price)
		}
	}
	return prices
}
