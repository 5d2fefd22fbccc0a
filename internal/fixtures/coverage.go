package fixtures

import (
	"github.com/solatis/nutriprotocol/internal/types"
)

// LoadPlan reads a meal plan fixture. Every day needs a date.
func LoadPlan(path string) (*types.MealPlanResponse, error) {
	var plan types.MealPlanResponse
	if err := decodeFile(path, &plan); err != nil {
		return nil, err
	}
	if err := checkStruct(path, &plan); err != nil {
		return nil, err
	}
	return &plan, nil
}

// LoadTargets reads a therapeutic targets snapshot fixture.
func LoadTargets(path string) (*types.TherapeuticTargetsSnapshot, error) {
	var snap types.TherapeuticTargetsSnapshot
	if err := decodeFile(path, &snap); err != nil {
		return nil, err
	}
	if err := checkStruct(path, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}
