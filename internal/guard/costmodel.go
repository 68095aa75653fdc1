// Package guard provides the operation cost model.
package guard

// DefaultOperationCost is charged to operations missing from the cost
// table. Deliberately moderate rather than zero or minimal so that
// unlisted operations cannot bypass budgets.
const DefaultOperationCost = 5

// CostModel resolves operation names to budget costs and limit multipliers.
type CostModel struct {
	table       map[string]OperationCost
	defaultCost int64
}

// NewCostModel constructs a cost model from a static table.
func NewCostModel(table map[string]OperationCost, defaultCost int64) *CostModel {
	if defaultCost <= 0 {
		defaultCost = DefaultOperationCost
	}
	normalized := make(map[string]OperationCost, len(table))
	for name, entry := range table {
		if name == "" {
			continue
		}
		if entry.Cost <= 0 {
			entry.Cost = defaultCost
		}
		if entry.Multiplier <= 0 {
			entry.Multiplier = 1.0
		}
		normalized[name] = entry
	}
	return &CostModel{table: normalized, defaultCost: defaultCost}
}

// Lookup resolves an operation name. Unknown operations fall back to
// the default cost and a multiplier of 1.0.
func (cm *CostModel) Lookup(operation string) OperationCost {
	if cm == nil {
		return OperationCost{Cost: DefaultOperationCost, Multiplier: 1.0}
	}
	if entry, ok := cm.table[operation]; ok {
		return entry
	}
	return OperationCost{Cost: cm.defaultCost, Multiplier: 1.0}
}
