package constants

import "time"

// Shannon is the smallest native-token unit; 10^8 shannon = 1 CKB.
const Shannon = uint64(1)

// CkbUnit is one whole CKB in shannon.
const CkbUnit = uint64(100_000_000)

// ShannonPerByte is the on-chain rent: one CKB of capacity per byte occupied.
const ShannonPerByte = CkbUnit

// Fixed capacities of the pair's singleton cells, in shannon.
const (
	InfoFixedCapacity         = 250 * CkbUnit
	PoolBaseCapacity          = 186 * CkbUnit
	MatcherFloatFixedCapacity = 73 * CkbUnit
)

// Fixed capacities the on-chain request scripts enforce, in shannon.
const (
	SwapBuyRequestCapacity      = 146 * CkbUnit
	SwapSellRequestCapacity     = 227 * CkbUnit
	LiquidityRequestMinCapacity = 235 * CkbUnit
)

// Base occupancy of generated result cells, in bytes:
// a bare native-token cell is capacity(8) plus its lock script; a token cell
// additionally carries a 16-byte amount and a 65-byte type script.
const (
	CkbCellBaseBytes   = 8
	TokenCellBaseBytes = 8 + 16 + 65
)

// ScriptFixedBytes is the serialized size of a lock script minus its args:
// 32-byte code hash plus one byte of hash type.
const ScriptFixedBytes = 33

// Constant-product trading fee: the pool keeps 3/1000 of every swap input.
const (
	FeeNumerator   = 997
	FeeDenominator = 1000
)

// DefaultBlockMinerFee is the per-settlement mining fee deducted from the
// matcher float, in shannon.
const DefaultBlockMinerFee = uint64(100_000)

// Scheduling defaults.
const (
	DefaultCronSpec     = "*/5 * * * * *"
	DefaultHTTPTimeout  = 30 * time.Second
	DefaultMaxRetries   = 5
	DefaultRetryBackoff = 2 * time.Second
)

// Byte lengths of the decoded cell layouts.
const (
	InfoDataLen      = 80  // 3 x u128 reserves + 32-byte lpt type hash
	PoolDataLen      = 16  // u128 sudt amount
	AmountDataLen    = 16  // u128
	SwapArgsLen      = 105 // hash(32) | version(1) | min(16) | hash(32) | tips(8) | tipsSudt(16)
	LiquidityArgsLen = 113 // hash(32) | version(1) | sudtMin(16) | ckbMin(8) | hash(32) | tips(8) | tipsSudt(16)
)
