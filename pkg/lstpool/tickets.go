package lstpool

import (
	"github.com/Overclock-Validator/lstpool/pkg/sealevel"
	"github.com/gagliardetto/solana-go"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Ticket is a pending withdrawal: a deactivating stake position keyed by
// pool, user and nonce.
type Ticket struct {
	Address solana.PublicKey
	Bump    uint8
	User    solana.PublicKey
	Nonce   uint64
	Value   uint64
}

// TicketManager opens and settles withdrawal tickets of one pool.
type TicketManager struct {
	cfg      *Config
	driver   *Driver
	poolAddr solana.PublicKey
}

func NewTicketManager(cfg *Config, driver *Driver, poolAddr solana.PublicKey) *TicketManager {
	return &TicketManager{cfg: cfg, driver: driver, poolAddr: poolAddr}
}

// WithdrawalAccounts are the accounts a withdrawal request touches.
type WithdrawalAccounts struct {
	User    solana.PublicKey
	Primary *sealevel.BorrowedAccount
	Reserve *sealevel.BorrowedAccount
	Ticket  *sealevel.BorrowedAccount
	UserLst *sealevel.BorrowedAccount
}

func (tm *TicketManager) verifyTicket(ticket solana.PublicKey, user solana.PublicKey, nonce uint64) (uint8, error) {
	expected, bump, err := TicketAddress(tm.cfg.ProgramID, tm.poolAddr, user, nonce)
	if err != nil {
		return 0, errors.Wrap(ErrAddressMismatch, err.Error())
	}
	if expected != ticket {
		return 0, errors.Wrapf(ErrAddressMismatch, "ticket %s, expected %s for nonce %d", ticket, expected, nonce)
	}
	return bump, nil
}

// Request burns shares from the user and moves their value out of the
// primary position into a new deactivating ticket.
func (tm *TicketManager) Request(pool *Pool, accts WithdrawalAccounts, nonce uint64, shares uint64) (*Ticket, error) {
	rentReserve := tm.driver.rentReserve()

	total, err := TotalPoolValue(accts.Primary.Lamports(), accts.Reserve.Lamports(), rentReserve)
	if err != nil {
		return nil, err
	}

	value, err := QuoteBurn(shares, pool.LstSupply, total)
	if err != nil {
		return nil, err
	}

	if value < tm.cfg.MinStakeDelegation {
		return nil, errors.Wrapf(ErrBelowMinimum, "%d shares redeem %d lamports, minimum is %d", shares, value, tm.cfg.MinStakeDelegation)
	}

	minRetained := rentReserve + tm.cfg.MinStakeDelegation
	primaryLamports := accts.Primary.Lamports()
	if primaryLamports < value || primaryLamports-value < minRetained {
		return nil, errors.Wrapf(ErrInsufficientFunds, "primary position holds %d lamports, must retain %d after paying %d", primaryLamports, minRetained, value)
	}

	bump, err := tm.verifyTicket(accts.Ticket.Key(), accts.User, nonce)
	if err != nil {
		return nil, err
	}

	if len(accts.Ticket.Data()) != 0 || accts.Ticket.Lamports() != 0 {
		return nil, errors.Wrapf(ErrAlreadyInitialized, "ticket %s for nonce %d is in use", accts.Ticket.Key(), nonce)
	}

	lst, err := sealevel.UnmarshalTokenAccount(accts.UserLst.Data())
	if err != nil {
		return nil, errors.Wrapf(sealevel.InstrErrInvalidAccountData, "share account %s", accts.UserLst.Key())
	}
	if lst.Mint != pool.Mint {
		return nil, errors.Wrapf(ErrAddressMismatch, "share account %s holds mint %s", accts.UserLst.Key(), lst.Mint)
	}
	if lst.Amount < shares {
		return nil, errors.Wrapf(ErrInsufficientFunds, "share account holds %d, withdrawing %d", lst.Amount, shares)
	}

	ticket := &Ticket{Address: accts.Ticket.Key(), Bump: bump, User: accts.User, Nonce: nonce, Value: value}
	ticketSeeds := WithBump(TicketSeeds(tm.poolAddr, accts.User, nonce), bump)

	err = tm.driver.Create(accts.User, ticket.Address, 0, ticketSeeds)
	if err != nil {
		return nil, err
	}

	err = tm.driver.Split(ticket.Address, accts.Primary.Key(), value)
	if err != nil {
		return nil, err
	}

	err = tm.driver.Deactivate(ticket.Address)
	if err != nil {
		return nil, err
	}

	err = tm.driver.shareToken(pool.Mint).Burn(accts.UserLst.Key(), accts.User, shares)
	if err != nil {
		return nil, err
	}

	err = pool.RecordWithdrawal(shares)
	if err != nil {
		return nil, err
	}

	klog.V(2).Infof("tickets: %s opened ticket %s (nonce %d) worth %d lamports for %d shares", accts.User, ticket.Address, nonce, value, shares)
	return ticket, nil
}

// Complete pays the whole balance of a deactivated ticket to its user and
// returns the amount paid. The emptied ticket is removed by the host, so a
// second completion finds nothing to settle.
func (tm *TicketManager) Complete(user solana.PublicKey, ticket *sealevel.BorrowedAccount, nonce uint64) (uint64, error) {
	_, err := tm.verifyTicket(ticket.Key(), user, nonce)
	if err != nil {
		return 0, err
	}

	if ticket.Owner() != sealevel.StakeProgramAddr || len(ticket.Data()) == 0 || ticket.Lamports() == 0 {
		return 0, errors.Wrapf(ErrUninitialized, "no open ticket at %s for nonce %d", ticket.Key(), nonce)
	}

	payout := ticket.Lamports()
	err = tm.driver.FinalizeWithdraw(ticket.Key(), user, payout)
	if err != nil {
		return 0, err
	}

	klog.V(2).Infof("tickets: paid %d lamports from ticket %s to %s", payout, ticket.Key(), user)
	return payout, nil
}
