package singlepool

import (
	"github.com/gagliardetto/solana-go"
	"github.com/near/borsh-go"
	"k8s.io/klog/v2"

	"github.com/solopool-labs/solopool/pkg/sealevel"
)

const (
	PoolAccountTypeUninitialized byte = iota
	PoolAccountTypePool
)

// PoolAccountSize is the serialized size of the pool record: one account
// type byte plus the vote account address.
const PoolAccountSize = 33

// Pool is the pool record. It is written once at initialization and never
// mutated; every other pool account is re-derived from its address.
type Pool struct {
	AccountType        byte
	VoteAccountAddress solana.PublicKey
}

func marshalPool(pool *Pool) ([]byte, error) {
	return borsh.Serialize(*pool)
}

// UnmarshalPool deserializes a pool record. It performs no authenticity
// checks; on-chain readers go through poolFromAccount instead.
func UnmarshalPool(data []byte) (*Pool, error) {
	pool := new(Pool)
	err := borsh.Deserialize(pool, data)
	if err != nil {
		return nil, err
	}
	return pool, nil
}

// poolFromAccount deserializes and authenticates a pool record. The record
// stores only the vote account address, so re-deriving the pool address from
// it and comparing against the account's own key is the sole authenticity
// check available.
func poolFromAccount(acct *sealevel.BorrowedAccount) (*Pool, error) {
	if len(acct.Data()) == 0 || acct.Owner() != ProgramAddr {
		klog.V(2).Infof("pool account %s is uninitialized or has the wrong owner", acct.Key())
		return nil, PoolErrInvalidPoolAccount
	}

	pool, err := UnmarshalPool(acct.Data())
	if err != nil {
		klog.V(2).Infof("pool account %s failed to deserialize", acct.Key())
		return nil, PoolErrInvalidPoolAccount
	}

	if pool.AccountType != PoolAccountTypePool {
		klog.V(2).Infof("pool account %s has account type %d", acct.Key(), pool.AccountType)
		return nil, PoolErrInvalidPoolAccount
	}

	if acct.Key() != FindPoolAddress(pool.VoteAccountAddress) {
		klog.V(2).Infof("pool account %s is not the canonical pool for vote account %s", acct.Key(), pool.VoteAccountAddress)
		return nil, PoolErrInvalidPoolAccount
	}

	return pool, nil
}
