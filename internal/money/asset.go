package money

import (
	"fmt"
	"sync"
)

// Asset represents a currency or token with its properties.
type Asset struct {
	Code     string // Asset code (USD, USDC, SOL, ETH, etc.)
	Decimals uint8  // Number of decimal places (2 for USD, 6 for USDC, 9 for SOL, 18 for ETH)
	Type     AssetType
	Metadata AssetMetadata
}

// AssetType categorizes the asset for different chains/backends.
type AssetType int

const (
	AssetTypeReference AssetType = iota // USD, used only as the internal pricing reference unit
	AssetTypeSPL                        // Solana SPL token
	AssetTypeNative                     // Chain-native asset (SOL lamports, ETH wei)
)

// AssetMetadata contains backend-specific information.
type AssetMetadata struct {
	SolanaMint string // Solana token mint address (base58), for SPL tokens
	Chain      string // chain family this asset is native to, for AssetTypeNative
}

// Global asset registry with concurrent access protection
var (
	assetRegistry = map[string]Asset{
		"USD": {
			Code:     "USD",
			Decimals: 2, // cents, internal pricing reference only
			Type:     AssetTypeReference,
		},

		// Chain-native assets
		"SOL": {
			Code:     "SOL",
			Decimals: 9, // lamports
			Type:     AssetTypeNative,
			Metadata: AssetMetadata{Chain: "solana"},
		},
		"ETH": {
			Code:     "ETH",
			Decimals: 18, // wei
			Type:     AssetTypeNative,
			Metadata: AssetMetadata{Chain: "evm"},
		},

		// Solana SPL stablecoins
		"USDC": {
			Code:     "USDC",
			Decimals: 6, // micro-USDC
			Type:     AssetTypeSPL,
			Metadata: AssetMetadata{
				SolanaMint: "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v", // USDC mainnet
			},
		},
		"USDT": {
			Code:     "USDT",
			Decimals: 6, // micro-USDT
			Type:     AssetTypeSPL,
			Metadata: AssetMetadata{
				SolanaMint: "Es9vMFrzaCERmJfrF4H2FYD4KCoNkY11McCe8BenwNYB", // USDT mainnet
			},
		},
		"PYUSD": {
			Code:     "PYUSD",
			Decimals: 6, // micro-PYUSD (PayPal USD)
			Type:     AssetTypeSPL,
			Metadata: AssetMetadata{
				SolanaMint: "2b1kV6DkPAnxd5ixfnxCpjxmKwqjjaYmCZfHsFu24GXo", // PYUSD mainnet
			},
		},
		"CASH": {
			Code:     "CASH",
			Decimals: 6, // micro-CASH
			Type:     AssetTypeSPL,
			Metadata: AssetMetadata{
				SolanaMint: "CASHx9KJUStyftLFWGvEVf59SGeG9sh5FfcnZMVPCASH", // CASH mainnet
			},
		},
	}
	assetRegistryMu sync.RWMutex
)

// GetAsset retrieves an asset from the registry.
func GetAsset(code string) (Asset, error) {
	assetRegistryMu.RLock()
	asset, ok := assetRegistry[code]
	assetRegistryMu.RUnlock()

	if !ok {
		return Asset{}, fmt.Errorf("money: unknown asset: %s", code)
	}
	return asset, nil
}

// MustGetAsset retrieves an asset and panics if not found (for tests/constants).
func MustGetAsset(code string) Asset {
	asset, err := GetAsset(code)
	if err != nil {
		panic(err)
	}
	return asset
}

// RegisterAsset adds a new asset to the registry (for testing or dynamic tokens).
func RegisterAsset(asset Asset) error {
	if asset.Code == "" {
		return fmt.Errorf("money: asset code required")
	}
	if asset.Decimals > 18 {
		return fmt.Errorf("money: decimals must be <= 18")
	}

	assetRegistryMu.Lock()
	assetRegistry[asset.Code] = asset
	assetRegistryMu.Unlock()

	return nil
}

// ListAssets returns all registered assets.
func ListAssets() []Asset {
	assetRegistryMu.RLock()
	assets := make([]Asset, 0, len(assetRegistry))
	for _, asset := range assetRegistry {
		assets = append(assets, asset)
	}
	assetRegistryMu.RUnlock()

	return assets
}

// IsNative returns true if the asset is a chain-native asset (SOL, ETH).
func (a Asset) IsNative() bool {
	return a.Type == AssetTypeNative
}

// IsSPLToken returns true if the asset is a Solana SPL token.
func (a Asset) IsSPLToken() bool {
	return a.Type == AssetTypeSPL
}

// GetSolanaMint returns the Solana mint address or error.
func (a Asset) GetSolanaMint() (string, error) {
	if !a.IsSPLToken() {
		return "", fmt.Errorf("money: %s is not an SPL token", a.Code)
	}
	return a.Metadata.SolanaMint, nil
}
