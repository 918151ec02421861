package lstpool

import (
	"github.com/Overclock-Validator/lstpool/pkg/sealevel"
	"github.com/gagliardetto/solana-go"
	"k8s.io/klog/v2"
)

// Driver issues stake lifecycle calls on behalf of one pool. The pool's
// derived address is the staker and withdrawer of every position it drives,
// so calls that need that authority are signed with the pool seeds.
type Driver struct {
	execCtx    *sealevel.ExecutionCtx
	cfg        *Config
	pool       solana.PublicKey
	poolSigner []solana.PublicKey
}

func NewDriver(execCtx *sealevel.ExecutionCtx, cfg *Config, pool solana.PublicKey, poolSeeds [][]byte) (*Driver, error) {
	signers, err := execCtx.SignersFromSeeds([][][]byte{poolSeeds})
	if err != nil {
		return nil, err
	}
	if signers[0] != pool {
		return nil, ErrAddressMismatch
	}
	return &Driver{execCtx: execCtx, cfg: cfg, pool: pool, poolSigner: signers}, nil
}

func (d *Driver) rentReserve() uint64 {
	rent := d.execCtx.SysvarCache.Rent()
	return rent.MinimumBalance(d.cfg.StakeAccountSize)
}

func (d *Driver) invoke(op string, instr sealevel.Instruction, signers []solana.PublicKey) error {
	err := d.execCtx.NativeInvoke(instr, signers)
	if err != nil {
		return stakeOpFailed(op, err)
	}
	return nil
}

// Create funds position with rent plus value lamports from payer and hands
// it to the stake program. seeds are the position's own signer seeds.
func (d *Driver) Create(payer solana.PublicKey, position solana.PublicKey, value uint64, seeds [][]byte) error {
	positionSigner, err := d.execCtx.SignersFromSeeds([][][]byte{seeds})
	if err != nil {
		return err
	}

	lamports := d.rentReserve() + value
	err = d.invoke("create", sealevel.NewSystemCreateAccountInstruction(payer, position, lamports, d.cfg.StakeAccountSize, sealevel.StakeProgramAddr), positionSigner)
	if err != nil {
		return err
	}

	klog.V(2).Infof("driver: created position %s with %d lamports", position, lamports)
	return nil
}

// ReinitializeEmpty allocates stake account space for a funded position
// that currently holds no data and assigns it to the stake program.
func (d *Driver) ReinitializeEmpty(position solana.PublicKey, seeds [][]byte) error {
	positionSigner, err := d.execCtx.SignersFromSeeds([][][]byte{seeds})
	if err != nil {
		return err
	}

	err = d.invoke("allocate", sealevel.NewSystemAllocateInstruction(position, d.cfg.StakeAccountSize), positionSigner)
	if err != nil {
		return err
	}

	err = d.invoke("assign", sealevel.NewSystemAssignInstruction(position, sealevel.StakeProgramAddr), positionSigner)
	if err != nil {
		return err
	}

	klog.V(2).Infof("driver: re-provisioned position %s", position)
	return nil
}

// Initialize sets the authorities of a created position. No lockup is set.
func (d *Driver) Initialize(position solana.PublicKey, staker solana.PublicKey, withdrawer solana.PublicKey) error {
	authorized := sealevel.Authorized{Staker: staker, Withdrawer: withdrawer}
	err := d.invoke("initialize", sealevel.NewStakeInitializeInstruction(position, authorized), nil)
	if err != nil {
		return err
	}

	klog.V(2).Infof("driver: initialized position %s", position)
	return nil
}

func (d *Driver) Delegate(position solana.PublicKey, validator solana.PublicKey) error {
	err := d.invoke("delegate", sealevel.NewStakeDelegateInstruction(position, validator, d.pool), d.poolSigner)
	if err != nil {
		return err
	}

	klog.V(2).Infof("driver: delegated position %s to %s", position, validator)
	return nil
}

// Merge moves every lamport of source into destination. The stake program
// decides whether the two positions are compatible.
func (d *Driver) Merge(destination solana.PublicKey, source solana.PublicKey) error {
	err := d.invoke("merge", sealevel.NewStakeMergeInstruction(destination, source, d.pool), d.poolSigner)
	if err != nil {
		return err
	}

	klog.V(2).Infof("driver: merged %s into %s", source, destination)
	return nil
}

// Split moves amount lamports of source into destinationNew, which must be
// a created but uninitialized position.
func (d *Driver) Split(destinationNew solana.PublicKey, source solana.PublicKey, amount uint64) error {
	err := d.invoke("split", sealevel.NewStakeSplitInstruction(source, destinationNew, d.pool, amount), d.poolSigner)
	if err != nil {
		return err
	}

	klog.V(2).Infof("driver: split %d lamports from %s into %s", amount, source, destinationNew)
	return nil
}

func (d *Driver) Deactivate(position solana.PublicKey) error {
	err := d.invoke("deactivate", sealevel.NewStakeDeactivateInstruction(position, d.pool), d.poolSigner)
	if err != nil {
		return err
	}

	klog.V(2).Infof("driver: deactivating position %s", position)
	return nil
}

// FinalizeWithdraw pays amount lamports of a deactivated position to payout.
func (d *Driver) FinalizeWithdraw(position solana.PublicKey, payout solana.PublicKey, amount uint64) error {
	err := d.invoke("withdraw", sealevel.NewStakeWithdrawInstruction(position, payout, d.pool, amount), d.poolSigner)
	if err != nil {
		return err
	}

	klog.V(2).Infof("driver: withdrew %d lamports from %s to %s", amount, position, payout)
	return nil
}
