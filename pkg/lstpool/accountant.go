package lstpool

import (
	"github.com/Overclock-Validator/lstpool/pkg/safemath"
	"github.com/Overclock-Validator/lstpool/pkg/sealevel"
	"github.com/gagliardetto/solana-go"
	"github.com/pkg/errors"
)

// TotalPoolValue is the lamports held by the primary and reserve positions
// net of the rent reserve each of them must keep.
func TotalPoolValue(primaryLamports uint64, reserveLamports uint64, rentReserve uint64) (uint64, error) {
	total, err := safemath.CheckedAddU64(safemath.SaturatingSubU64(primaryLamports, rentReserve), safemath.SaturatingSubU64(reserveLamports, rentReserve))
	if err != nil {
		return 0, ErrArithmeticOverflow
	}
	return total, nil
}

// DepositValue is how much a deposit of amount lamports into the reserve
// raises TotalPoolValue. A reserve holding less than rentReserve absorbs the
// shortfall before the deposit counts toward pool value.
func DepositValue(primaryLamports uint64, reserveLamports uint64, amount uint64, rentReserve uint64) (uint64, error) {
	before, err := TotalPoolValue(primaryLamports, reserveLamports, rentReserve)
	if err != nil {
		return 0, err
	}
	reserveAfter, err := safemath.CheckedAddU64(reserveLamports, amount)
	if err != nil {
		return 0, ErrArithmeticOverflow
	}
	after, err := TotalPoolValue(primaryLamports, reserveAfter, rentReserve)
	if err != nil {
		return 0, err
	}
	return after - before, nil
}

// QuoteMint returns the shares minted for a deposit. An empty pool mints
// one share per lamport; otherwise shares are floor(deposit*supply/total).
func QuoteMint(deposit uint64, supply uint64, total uint64) (uint64, error) {
	if supply == 0 {
		if deposit == 0 {
			return 0, ErrZeroQuote
		}
		return deposit, nil
	}

	minted, err := safemath.MulDivU64(deposit, supply, total)
	if err != nil {
		return 0, errors.Wrapf(ErrArithmeticOverflow, "%d * %d / %d", deposit, supply, total)
	}
	if minted == 0 {
		return 0, errors.Wrapf(ErrZeroQuote, "deposit of %d lamports buys no shares", deposit)
	}
	return minted, nil
}

// QuoteBurn returns the lamports redeemed for shares, floor(shares*total/supply).
func QuoteBurn(shares uint64, supply uint64, total uint64) (uint64, error) {
	if supply == 0 {
		return 0, ErrZeroSupply
	}

	value, err := safemath.MulDivU64(shares, total, supply)
	if err != nil {
		return 0, errors.Wrapf(ErrArithmeticOverflow, "%d * %d / %d", shares, total, supply)
	}
	if value == 0 {
		return 0, errors.Wrapf(ErrZeroQuote, "%d shares redeem nothing", shares)
	}
	return value, nil
}

// RedeemableValue is what holding shares is worth right now, without the
// zero-quote check.
func RedeemableValue(shares uint64, supply uint64, total uint64) uint64 {
	if supply == 0 {
		return 0
	}
	value, err := safemath.MulDivU64(shares, total, supply)
	if err != nil {
		return 0
	}
	return value
}

// shareToken executes share mints and burns against the token program. The
// pool is the mint authority and signs mints with its seeds.
type shareToken struct {
	execCtx    *sealevel.ExecutionCtx
	mint       solana.PublicKey
	pool       solana.PublicKey
	poolSigner []solana.PublicKey
}

func (d *Driver) shareToken(mint solana.PublicKey) *shareToken {
	return &shareToken{execCtx: d.execCtx, mint: mint, pool: d.pool, poolSigner: d.poolSigner}
}

func (s *shareToken) Mint(dest solana.PublicKey, amount uint64) error {
	err := s.execCtx.NativeInvoke(sealevel.NewTokenMintToInstruction(s.mint, dest, s.pool, amount), s.poolSigner)
	if err != nil {
		return errors.Wrapf(err, "minting %d shares to %s", amount, dest)
	}
	return nil
}

// Burn destroys amount shares held in source. owner must have signed the
// calling instruction.
func (s *shareToken) Burn(source solana.PublicKey, owner solana.PublicKey, amount uint64) error {
	err := s.execCtx.NativeInvoke(sealevel.NewTokenBurnInstruction(source, s.mint, owner, amount), nil)
	if err != nil {
		return errors.Wrapf(err, "burning %d shares from %s", amount, source)
	}
	return nil
}
