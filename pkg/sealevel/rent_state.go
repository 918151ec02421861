package sealevel

import (
	"github.com/Overclock-Validator/lstpool/pkg/accounts"
	"k8s.io/klog/v2"
)

const (
	RentStateUninitialized = iota
	RentStateRentPaying
	RentStateRentExempt
)

type RentPayingInfo struct {
	Lamports uint64
	DataSize uint64
}

type RentStateInfo struct {
	RentState      uint64
	RentPayingInfo RentPayingInfo
}

func rentStateFromAcct(acct *accounts.Account, rent *SysvarRent) *RentStateInfo {
	if acct.Lamports == 0 {
		return &RentStateInfo{RentState: RentStateUninitialized}
	} else if rent.IsExempt(acct.Lamports, uint64(len(acct.Data))) {
		return &RentStateInfo{RentState: RentStateRentExempt}
	} else {
		return &RentStateInfo{RentState: RentStateRentPaying, RentPayingInfo: RentPayingInfo{Lamports: acct.Lamports, DataSize: uint64(len(acct.Data))}}
	}
}

// NewRentStateInfo captures the rent state of every writable transaction
// account. Read-only accounts get a nil entry.
func NewRentStateInfo(rent *SysvarRent, txAccts *TransactionAccounts, writable []bool) []*RentStateInfo {
	rentStateInfos := make([]*RentStateInfo, len(txAccts.Accounts))

	for idx, acct := range txAccts.Accounts {
		if writable[idx] {
			rentStateInfos[idx] = rentStateFromAcct(acct, rent)
		}
	}

	return rentStateInfos
}

func checkRentStateTransitionAllowed(preRentState *RentStateInfo, postRentState *RentStateInfo) bool {
	if preRentState == nil || postRentState == nil {
		return true
	}

	switch postRentState.RentState {
	case RentStateUninitialized, RentStateRentExempt:
		return true
	}

	// an account may stay rent paying only if it shrinks in lamports at an unchanged size
	if preRentState.RentState == RentStateRentPaying {
		return postRentState.RentPayingInfo.DataSize == preRentState.RentPayingInfo.DataSize &&
			postRentState.RentPayingInfo.Lamports <= preRentState.RentPayingInfo.Lamports
	}
	return false
}

func VerifyRentStateChanges(preStates []*RentStateInfo, postStates []*RentStateInfo, txAccts *TransactionAccounts) error {
	for idx := range preStates {
		if !checkRentStateTransitionAllowed(preStates[idx], postStates[idx]) {
			klog.Errorf("account %s would be left below the rent exempt minimum", txAccts.Accounts[idx].Key)
			return TxErrInsufficientFundsForRent
		}
	}

	return nil
}
