package util

import (
	"encoding/binary"
	"runtime"
	"slices"
	"sort"

	"github.com/Overclock-Validator/lstpool/pkg/accounts"
	"github.com/gagliardetto/solana-go"
	"github.com/minio/sha256-simd"
	"github.com/zeebo/blake3"
	"k8s.io/klog/v2"
)

func PubkeyCmp(a solana.PublicKey, b solana.PublicKey) bool {
	for i := uint64(0); i < 4; i++ {
		a1 := binary.BigEndian.Uint64(a[8*i:])
		b1 := binary.BigEndian.Uint64(b[8*i:])
		if a1 != b1 {
			return a1 < b1
		}
	}
	return false
}

// DedupePubkeys sorts pubkeys in place and drops repeats.
func DedupePubkeys(pubkeys []solana.PublicKey) []solana.PublicKey {
	sort.SliceStable(pubkeys, func(i, j int) bool {
		return PubkeyCmp(pubkeys[i], pubkeys[j])
	})

	sortedPubkeys := slices.Compact(pubkeys)
	return sortedPubkeys
}

func CalculateAcctHash(acct accounts.Account) []byte {
	hasher := blake3.New()

	var lamportBytes [8]byte
	binary.LittleEndian.PutUint64(lamportBytes[:], acct.Lamports)
	_, _ = hasher.Write(lamportBytes[:])

	var rentEpochBytes [8]byte
	binary.LittleEndian.PutUint64(rentEpochBytes[:], acct.RentEpoch)
	_, _ = hasher.Write(rentEpochBytes[:])

	_, _ = hasher.Write(acct.Data)

	if acct.Executable {
		_, _ = hasher.Write([]byte{1})
	} else {
		_, _ = hasher.Write([]byte{0})
	}

	_, _ = hasher.Write(acct.Owner[:])
	_, _ = hasher.Write(acct.Key[:])

	return hasher.Sum(nil)
}

const merkleFanout = 16

func computeMerkleRoot(hashes [][]byte) []byte {
	if len(hashes) == 0 {
		return nil
	}

	chunks := (len(hashes) + merkleFanout - 1) / merkleFanout
	results := make([][]byte, chunks)

	for i := 0; i < chunks; i++ {
		startIdx := i * merkleFanout
		endIdx := min(startIdx+merkleFanout, len(hashes))

		hasher := sha256.New()
		for _, h := range hashes[startIdx:endIdx] {
			hasher.Write(h)
		}
		results[i] = hasher.Sum(nil)
	}

	if len(results) == 1 {
		return results[0]
	}
	return computeMerkleRoot(results)
}

// AccountsDeltaHash is the fanout-16 merkle root over the account hashes of
// accts, ordered by pubkey. Deleted (zero lamport) accounts hash as the zero hash.
func AccountsDeltaHash(accts []*accounts.Account) []byte {
	sorted := slices.Clone(accts)
	sort.SliceStable(sorted, func(i, j int) bool {
		return PubkeyCmp(sorted[i].Key, sorted[j].Key)
	})

	hashes := make([][]byte, len(sorted))
	for idx, acct := range sorted {
		if acct.Lamports == 0 {
			hashes[idx] = make([]byte, 32)
			continue
		}
		hashes[idx] = CalculateAcctHash(*acct)
	}

	return computeMerkleRoot(hashes)
}

// this logs the function name as well.
func VerboseHandleError(err error) (b bool) {
	if err != nil {
		pc, filename, line, _ := runtime.Caller(1)

		klog.Infof("[error] in %s[%s:%d] %v", runtime.FuncForPC(pc).Name(), filename, line, err)
		b = true
	}
	return
}
