package money

import "math/big"

// USDToBaseUnits converts a USD price (e.g. costPerCall) at the given
// asset/USD rate into the asset's smallest unit, floor-rounded: SOL yields
// lamports, ETH yields wei, an SPL stablecoin yields its own atomic unit.
// Used for x402 challenge construction, where the payer must see an integer
// amountRequired in the settlement asset.
func USDToBaseUnits(usd float64, assetUSDPrice float64, asset Asset) (int64, error) {
	if assetUSDPrice <= 0 {
		return 0, ErrDivisionByZero
	}

	units := usd / assetUSDPrice
	scale := new(big.Float).SetFloat64(pow10(asset.Decimals))
	scaled := new(big.Float).Mul(new(big.Float).SetFloat64(units), scale)

	floored := floorBigFloat(scaled)
	if !floored.IsInt64() {
		return 0, ErrOverflow
	}
	return floored.Int64(), nil
}

func pow10(decimals uint8) float64 {
	result := 1.0
	for i := uint8(0); i < decimals; i++ {
		result *= 10
	}
	return result
}

// floorBigFloat truncates toward negative infinity, matching the spec's
// documented floor rounding policy for fractional base units.
func floorBigFloat(f *big.Float) *big.Int {
	i, _ := f.Int(nil)
	if f.Sign() < 0 {
		rem := new(big.Float).Sub(f, new(big.Float).SetInt(i))
		if rem.Sign() != 0 {
			i.Sub(i, big.NewInt(1))
		}
	}
	return i
}
