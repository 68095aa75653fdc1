package guard

import "testing"

func TestCostModelLookup(t *testing.T) {
	t.Parallel()

	cm := NewCostModel(map[string]OperationCost{
		"search": {Cost: 5, Multiplier: 1.0},
		"export": {Cost: 15, Multiplier: 0.5},
	}, 0)

	if got := cm.Lookup("search"); got.Cost != 5 || got.Multiplier != 1.0 {
		t.Fatalf("search cost = %+v", got)
	}
	if got := cm.Lookup("export"); got.Cost != 15 || got.Multiplier != 0.5 {
		t.Fatalf("export cost = %+v", got)
	}
}

func TestCostModelUnknownOperationUsesDefault(t *testing.T) {
	t.Parallel()

	cm := NewCostModel(nil, 0)
	got := cm.Lookup("neverRegistered")
	if got.Cost != DefaultOperationCost {
		t.Fatalf("unknown operation cost = %d, want %d", got.Cost, DefaultOperationCost)
	}
	if got.Multiplier != 1.0 {
		t.Fatalf("unknown operation multiplier = %v, want 1.0", got.Multiplier)
	}
}

func TestCostModelNormalizesEntries(t *testing.T) {
	t.Parallel()

	cm := NewCostModel(map[string]OperationCost{
		"zeroCost": {Cost: 0, Multiplier: 0},
	}, 7)
	got := cm.Lookup("zeroCost")
	if got.Cost != 7 {
		t.Fatalf("zero cost should normalize to default, got %d", got.Cost)
	}
	if got.Multiplier != 1.0 {
		t.Fatalf("zero multiplier should normalize to 1.0, got %v", got.Multiplier)
	}
}
