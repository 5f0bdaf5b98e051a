package cell

import (
	"math/big"

	"github.com/aman-zulfiqar/ckb-amm-matcher/internal/constants"
)

// SwapBuyRequest spends escrowed native token to buy the alt token.
//
// lock args, 105 bytes:
//
//	sudt_type_hash  32 bytes [0:32]
//	version         u8       [32:33]
//	amount_out_min  u128 le  [33:49]
//	user_lock_hash  32 bytes [49:81]
//	tips            u64 le   [81:89]
//	tips_sudt       u128 le  [89:105]
//
// No type script, no data.
type SwapBuyRequest struct {
	Capacity     uint64
	SudtTypeHash string
	Version      byte
	AmountOutMin *big.Int
	UserLockHash string
	Tips         uint64
	TipsSudt     *big.Int

	UserLock Script
	Ref      OutPointRef
}

// ValidateSwapBuy checks the shape that distinguishes a buy request: the
// fixed capacity bucket, no type script, empty data, args of the right size.
func ValidateSwapBuy(c *RawCell) bool {
	if c.Type != nil || len(c.Data) != 0 {
		return false
	}
	if c.Capacity < constants.SwapBuyRequestCapacity {
		return false
	}
	return c.Lock.ArgsLen() == constants.SwapArgsLen && !c.OutPoint.IsZero()
}

// SwapBuyUserLockHash extracts the user lock hash without a full decode, for
// the lock-script lookup the scanner performs.
func SwapBuyUserLockHash(c *RawCell) (string, error) {
	args, err := c.lockArgs("swap buy", constants.SwapArgsLen)
	if err != nil {
		return "", err
	}
	return BytesToHex(args[49:81]), nil
}

// DecodeSwapBuy parses the request; userLock is the user's resolved original
// lock script, the destination for the bought tokens.
func DecodeSwapBuy(c *RawCell, userLock Script) (*SwapBuyRequest, error) {
	args, err := c.lockArgs("swap buy", constants.SwapArgsLen)
	if err != nil {
		return nil, err
	}
	return &SwapBuyRequest{
		Capacity:     c.Capacity,
		SudtTypeHash: BytesToHex(args[0:32]),
		Version:      args[32],
		AmountOutMin: readUint128LE(args[33:49]),
		UserLockHash: BytesToHex(args[49:81]),
		Tips:         readUint64LE(args[81:89]),
		TipsSudt:     readUint128LE(args[89:105]),
		UserLock:     userLock,
		Ref:          c.OutPoint,
	}, nil
}

// EncodeLockArgs renders the request's lock args; DecodeSwapBuy round-trips.
func (r *SwapBuyRequest) EncodeLockArgs() ([]byte, error) {
	return encodeSwapArgs(r.SudtTypeHash, r.Version, r.AmountOutMin, r.UserLockHash, r.Tips, r.TipsSudt)
}

// SwapSellRequest spends escrowed alt token to buy native token.
//
// lock args, 105 bytes:
//
//	user_lock_hash  32 bytes [0:32]
//	version         u8       [32:33]
//	amount_out_min  u128 le  [33:49]
//	sudt_type_hash  32 bytes [49:81]
//	tips            u64 le   [81:89]
//	tips_sudt       u128 le  [89:105]
//
// Type script is the pair's sudt type; data is the escrowed amount, u128 le.
type SwapSellRequest struct {
	Capacity     uint64
	SudtAmount   *big.Int
	UserLockHash string
	Version      byte
	AmountOutMin *big.Int
	SudtTypeHash string
	Tips         uint64
	TipsSudt     *big.Int

	UserLock Script
	Ref      OutPointRef
}

// ValidateSwapSell checks the shape that distinguishes a sell request.
func ValidateSwapSell(c *RawCell, ps *PairScripts) bool {
	if len(c.Data) != constants.AmountDataLen {
		return false
	}
	if th, err := c.TypeHash(); err != nil || th != ps.SudtTypeHash {
		return false
	}
	if c.Capacity < constants.SwapSellRequestCapacity {
		return false
	}
	return c.Lock.ArgsLen() == constants.SwapArgsLen && !c.OutPoint.IsZero()
}

// SwapSellUserLockHash extracts the user lock hash without a full decode.
func SwapSellUserLockHash(c *RawCell) (string, error) {
	args, err := c.lockArgs("swap sell", constants.SwapArgsLen)
	if err != nil {
		return "", err
	}
	return BytesToHex(args[0:32]), nil
}

// DecodeSwapSell parses the request.
func DecodeSwapSell(c *RawCell, userLock Script) (*SwapSellRequest, error) {
	args, err := c.lockArgs("swap sell", constants.SwapArgsLen)
	if err != nil {
		return nil, err
	}
	if len(c.Data) != constants.AmountDataLen {
		return nil, decodeErrf("swap sell", "data length %d, want %d", len(c.Data), constants.AmountDataLen)
	}
	return &SwapSellRequest{
		Capacity:     c.Capacity,
		SudtAmount:   readUint128LE(c.Data),
		UserLockHash: BytesToHex(args[0:32]),
		Version:      args[32],
		AmountOutMin: readUint128LE(args[33:49]),
		SudtTypeHash: BytesToHex(args[49:81]),
		Tips:         readUint64LE(args[81:89]),
		TipsSudt:     readUint128LE(args[89:105]),
		UserLock:     userLock,
		Ref:          c.OutPoint,
	}, nil
}

// EncodeLockArgs renders the request's lock args; DecodeSwapSell round-trips.
func (r *SwapSellRequest) EncodeLockArgs() ([]byte, error) {
	return encodeSwapArgs(r.UserLockHash, r.Version, r.AmountOutMin, r.SudtTypeHash, r.Tips, r.TipsSudt)
}

func encodeSwapArgs(firstHash string, version byte, min *big.Int, secondHash string, tips uint64, tipsSudt *big.Int) ([]byte, error) {
	out := make([]byte, constants.SwapArgsLen)
	h1, err := HexToBytes(firstHash)
	if err != nil || len(h1) != 32 {
		return nil, decodeErrf("swap args", "hash %q is not 32 bytes", firstHash)
	}
	h2, err := HexToBytes(secondHash)
	if err != nil || len(h2) != 32 {
		return nil, decodeErrf("swap args", "hash %q is not 32 bytes", secondHash)
	}
	copy(out[0:32], h1)
	out[32] = version
	if err := putUint128LE(out[33:49], min); err != nil {
		return nil, err
	}
	copy(out[49:81], h2)
	putUint64LE(out[81:89], tips)
	if err := putUint128LE(out[89:105], tipsSudt); err != nil {
		return nil, err
	}
	return out, nil
}
