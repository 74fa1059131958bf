package catalog

import (
	"errors"
	"strings"
)

func validateCreate(input CreateProductInput) error {
	if strings.TrimSpace(input.Code) == "" {
		return errors.New("catalog: product code is required")
	}
	if strings.TrimSpace(input.Name) == "" {
		return errors.New("catalog: product name is required")
	}
	if input.CostPrice < 0 || input.SellPrice < 0 {
		return errors.New("catalog: prices must be non negative")
	}
	if input.InitialStock < 0 {
		return errors.New("catalog: initial stock must be non negative")
	}
	if input.MinStock < 0 {
		return errors.New("catalog: minimum stock must be non negative")
	}
	return nil
}

func validateUpdate(input UpdateProductInput) error {
	if input.Name != nil && strings.TrimSpace(*input.Name) == "" {
		return errors.New("catalog: product name is required")
	}
	if input.CostPrice != nil && *input.CostPrice < 0 {
		return errors.New("catalog: cost price must be non negative")
	}
	if input.SellPrice != nil && *input.SellPrice < 0 {
		return errors.New("catalog: sell price must be non negative")
	}
	if input.MinStock != nil && *input.MinStock < 0 {
		return errors.New("catalog: minimum stock must be non negative")
	}
	return nil
}
