package rewards

import (
	"github.com/shopspring/decimal"
)

// TokenDecimals is the ERC-20 decimals of TIME26
const TokenDecimals = 18

// DaysPerYear divides the annual pool into daily budgets
const DaysPerYear = 365

// TokensToWei converts a whole-token amount to the smallest unit
func TokensToWei(tokens decimal.Decimal) decimal.Decimal {
	return tokens.Shift(TokenDecimals).Truncate(0)
}

// WeiToTokens converts a smallest-unit amount to tokens
func WeiToTokens(wei decimal.Decimal) decimal.Decimal {
	return wei.Shift(-TokenDecimals)
}

// DailyBudget returns annualPoolWei / 365 truncated to whole wei
func DailyBudget(annualPoolWei decimal.Decimal) decimal.Decimal {
	q, _ := annualPoolWei.QuoRem(decimal.NewFromInt(DaysPerYear), 0)
	return q
}
