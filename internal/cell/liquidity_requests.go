package cell

import (
	"math/big"

	"github.com/aman-zulfiqar/ckb-amm-matcher/internal/constants"
)

// LiquidityAddRequest escrows both native token (capacity) and alt token
// (data) to mint liquidity tokens.
//
// lock args, 113 bytes:
//
//	info_type_hash  32 bytes [0:32]
//	version         u8       [32:33]
//	sudt_min        u128 le  [33:49]
//	ckb_min         u64 le   [49:57]
//	user_lock_hash  32 bytes [57:89]
//	tips            u64 le   [89:97]
//	tips_sudt       u128 le  [97:113]
//
// Type script is the pair's sudt type; data is the escrowed amount, u128 le.
type LiquidityAddRequest struct {
	Capacity     uint64
	SudtAmount   *big.Int
	InfoTypeHash string
	Version      byte
	SudtMin      *big.Int
	CkbMin       uint64
	UserLockHash string
	Tips         uint64
	TipsSudt     *big.Int

	UserLock Script
	Ref      OutPointRef
}

// ValidateLiquidityAdd checks the cell against the pair's configuration.
func ValidateLiquidityAdd(c *RawCell, ps *PairScripts) bool {
	if len(c.Data) != constants.AmountDataLen {
		return false
	}
	if th, err := c.TypeHash(); err != nil || th != ps.SudtTypeHash {
		return false
	}
	if c.Capacity < constants.LiquidityRequestMinCapacity {
		return false
	}
	return c.Lock.ArgsLen() == constants.LiquidityArgsLen && !c.OutPoint.IsZero()
}

// LiquidityAddUserLockHash extracts the user lock hash without a full decode.
func LiquidityAddUserLockHash(c *RawCell) (string, error) {
	args, err := c.lockArgs("liquidity add", constants.LiquidityArgsLen)
	if err != nil {
		return "", err
	}
	return BytesToHex(args[57:89]), nil
}

// DecodeLiquidityAdd parses the request.
func DecodeLiquidityAdd(c *RawCell, userLock Script) (*LiquidityAddRequest, error) {
	args, err := c.lockArgs("liquidity add", constants.LiquidityArgsLen)
	if err != nil {
		return nil, err
	}
	if len(c.Data) != constants.AmountDataLen {
		return nil, decodeErrf("liquidity add", "data length %d, want %d", len(c.Data), constants.AmountDataLen)
	}
	return &LiquidityAddRequest{
		Capacity:     c.Capacity,
		SudtAmount:   readUint128LE(c.Data),
		InfoTypeHash: BytesToHex(args[0:32]),
		Version:      args[32],
		SudtMin:      readUint128LE(args[33:49]),
		CkbMin:       readUint64LE(args[49:57]),
		UserLockHash: BytesToHex(args[57:89]),
		Tips:         readUint64LE(args[89:97]),
		TipsSudt:     readUint128LE(args[97:113]),
		UserLock:     userLock,
		Ref:          c.OutPoint,
	}, nil
}

// EncodeLockArgs renders the request's lock args.
func (r *LiquidityAddRequest) EncodeLockArgs() ([]byte, error) {
	return encodeLiquidityArgs(r.InfoTypeHash, r.Version, r.SudtMin, r.CkbMin, r.UserLockHash, r.Tips, r.TipsSudt)
}

// LiquidityRemoveRequest escrows liquidity tokens to withdraw both sides.
//
// lock args, 113 bytes:
//
//	user_lock_hash  32 bytes [0:32]
//	version         u8       [32:33]
//	sudt_min        u128 le  [33:49]
//	ckb_min         u64 le   [49:57]
//	info_type_hash  32 bytes [57:89]
//	tips            u64 le   [89:97]
//	tips_sudt       u128 le  [97:113]
//
// Type script is the pair's lpt type; data is the burned amount, u128 le.
type LiquidityRemoveRequest struct {
	Capacity     uint64
	LptAmount    *big.Int
	UserLockHash string
	Version      byte
	SudtMin      *big.Int
	CkbMin       uint64
	InfoTypeHash string
	Tips         uint64
	TipsSudt     *big.Int

	UserLock Script
	Ref      OutPointRef
}

// ValidateLiquidityRemove checks the cell against the pair's configuration.
func ValidateLiquidityRemove(c *RawCell, ps *PairScripts) bool {
	if len(c.Data) != constants.AmountDataLen {
		return false
	}
	if th, err := c.TypeHash(); err != nil || th != ps.LptTypeHash {
		return false
	}
	if c.Capacity < constants.LiquidityRequestMinCapacity {
		return false
	}
	return c.Lock.ArgsLen() == constants.LiquidityArgsLen && !c.OutPoint.IsZero()
}

// LiquidityRemoveUserLockHash extracts the user lock hash without a full
// decode.
func LiquidityRemoveUserLockHash(c *RawCell) (string, error) {
	args, err := c.lockArgs("liquidity remove", constants.LiquidityArgsLen)
	if err != nil {
		return "", err
	}
	return BytesToHex(args[0:32]), nil
}

// DecodeLiquidityRemove parses the request.
func DecodeLiquidityRemove(c *RawCell, userLock Script) (*LiquidityRemoveRequest, error) {
	args, err := c.lockArgs("liquidity remove", constants.LiquidityArgsLen)
	if err != nil {
		return nil, err
	}
	if len(c.Data) != constants.AmountDataLen {
		return nil, decodeErrf("liquidity remove", "data length %d, want %d", len(c.Data), constants.AmountDataLen)
	}
	return &LiquidityRemoveRequest{
		Capacity:     c.Capacity,
		LptAmount:    readUint128LE(c.Data),
		UserLockHash: BytesToHex(args[0:32]),
		Version:      args[32],
		SudtMin:      readUint128LE(args[33:49]),
		CkbMin:       readUint64LE(args[49:57]),
		InfoTypeHash: BytesToHex(args[57:89]),
		Tips:         readUint64LE(args[89:97]),
		TipsSudt:     readUint128LE(args[97:113]),
		UserLock:     userLock,
		Ref:          c.OutPoint,
	}, nil
}

// EncodeLockArgs renders the request's lock args.
func (r *LiquidityRemoveRequest) EncodeLockArgs() ([]byte, error) {
	return encodeLiquidityArgs(r.UserLockHash, r.Version, r.SudtMin, r.CkbMin, r.InfoTypeHash, r.Tips, r.TipsSudt)
}

func encodeLiquidityArgs(firstHash string, version byte, sudtMin *big.Int, ckbMin uint64, secondHash string, tips uint64, tipsSudt *big.Int) ([]byte, error) {
	out := make([]byte, constants.LiquidityArgsLen)
	h1, err := HexToBytes(firstHash)
	if err != nil || len(h1) != 32 {
		return nil, decodeErrf("liquidity args", "hash %q is not 32 bytes", firstHash)
	}
	h2, err := HexToBytes(secondHash)
	if err != nil || len(h2) != 32 {
		return nil, decodeErrf("liquidity args", "hash %q is not 32 bytes", secondHash)
	}
	copy(out[0:32], h1)
	out[32] = version
	if err := putUint128LE(out[33:49], sudtMin); err != nil {
		return nil, err
	}
	putUint64LE(out[49:57], ckbMin)
	copy(out[57:89], h2)
	putUint64LE(out[89:97], tips)
	if err := putUint128LE(out[97:113], tipsSudt); err != nil {
		return nil, err
	}
	return out, nil
}
