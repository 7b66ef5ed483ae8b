package domain

import "fmt"

const kgToLb = 2.2046226218

// ConvertWeight converts a weight value between "kg" and "lb".
// Returns v unchanged if from == to or if the units are unrecognised.
func ConvertWeight(v float64, from, to string) float64 {
	if from == to {
		return v
	}
	if from == "kg" && to == "lb" {
		return v * kgToLb
	}
	if from == "lb" && to == "kg" {
		return v / kgToLb
	}
	return v
}

// WeightToKg normalises a weight in the given unit to kilograms. An empty
// unit means kilograms.
func WeightToKg(v float64, unit string) (float64, error) {
	switch unit {
	case "", "kg":
		return v, nil
	case "lb":
		return ConvertWeight(v, "lb", "kg"), nil
	}
	return 0, fmt.Errorf("unit must be \"kg\" or \"lb\", got %q", unit)
}
