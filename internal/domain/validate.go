package domain

import (
	"fmt"
	"math"
	"strings"
)

// base58 alphabet used by mint addresses: no 0, O, I, or l.
const base58Alphabet = "123456789ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz"

const (
	minMintLen = 32
	maxMintLen = 44
)

// ValidateMint checks that mint looks like a base58-encoded token address.
// It returns an InvalidInputError so the caller can reject the request
// before spending any fetch budget on it.
func ValidateMint(mint string) error {
	if mint == "" {
		return &InvalidInputError{Field: "mint", Reason: "empty"}
	}
	if len(mint) < minMintLen || len(mint) > maxMintLen {
		return &InvalidInputError{
			Field:  "mint",
			Reason: fmt.Sprintf("length %d outside [%d, %d]", len(mint), minMintLen, maxMintLen),
		}
	}
	for _, r := range mint {
		if !strings.ContainsRune(base58Alphabet, r) {
			return &InvalidInputError{
				Field:  "mint",
				Reason: fmt.Sprintf("character %q is not base58", r),
			}
		}
	}
	return nil
}

// CheckHolders verifies the calculator preconditions on a normalized holder
// list. A violation here means a normalization bug upstream rather than bad
// source data, so it surfaces as a DefectError.
func CheckHolders(holders []HolderBalance) error {
	for _, h := range holders {
		if h.Amount < 0 {
			return &DefectError{
				Op:  "concentration",
				Err: fmt.Errorf("negative amount %f for holder %s", h.Amount, h.Address),
			}
		}
		if math.IsNaN(h.Amount) || math.IsInf(h.Amount, 0) {
			return &DefectError{
				Op:  "concentration",
				Err: fmt.Errorf("non-finite amount for holder %s", h.Address),
			}
		}
	}
	return nil
}

// CheckSupply verifies a normalized total supply. Zero is valid; negative or
// non-finite values are defects.
func CheckSupply(total float64) error {
	if total < 0 {
		return &DefectError{Op: "supply", Err: fmt.Errorf("negative total supply %f", total)}
	}
	if math.IsNaN(total) || math.IsInf(total, 0) {
		return &DefectError{Op: "supply", Err: fmt.Errorf("non-finite total supply")}
	}
	return nil
}
