package singlepool

import (
	"strings"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"

	"github.com/solopool-labs/solopool/pkg/base58"
	"github.com/solopool-labs/solopool/pkg/sealevel"
)

func randomPubkey(t *testing.T) solana.PublicKey {
	privKey, err := solana.NewRandomPrivateKey()
	if err != nil {
		t.Fatal("create random private key failed")
	}
	return privKey.PublicKey()
}

func TestPoolAddressesDeterministic(t *testing.T) {
	voteAccount := randomPubkey(t)

	pool1 := FindPoolAddress(voteAccount)
	pool2 := FindPoolAddress(voteAccount)
	assert.Equal(t, pool1, pool2)

	addr, bump := FindPoolAddressAndBump(voteAccount)
	assert.Equal(t, pool1, addr)

	signer, err := signerFromSeeds(poolSignerSeeds(voteAccount, bump))
	assert.NoError(t, err)
	assert.Equal(t, pool1, solana.PublicKey(signer))
}

func TestPoolAddressesDistinct(t *testing.T) {
	voteAccount := randomPubkey(t)
	pool := FindPoolAddress(voteAccount)

	addrs := []solana.PublicKey{
		pool,
		FindPoolStakeAddress(pool),
		FindPoolOnRampAddress(pool),
		FindPoolMintAddress(pool),
		FindPoolStakeAuthorityAddress(pool),
		FindPoolMintAuthorityAddress(pool),
		FindPoolMplAuthorityAddress(pool),
	}

	seen := make(map[solana.PublicKey]bool)
	for _, addr := range addrs {
		assert.False(t, seen[addr], "derived address %s repeated", addr)
		seen[addr] = true
	}

	otherVote := randomPubkey(t)
	assert.NotEqual(t, pool, FindPoolAddress(otherVote))
}

// every program-signed address must be reproducible from its seeds plus the
// stored bump, or CPI signing would fail at runtime
func TestSignerSeedsMatchDerivedAddresses(t *testing.T) {
	voteAccount := randomPubkey(t)
	pool := FindPoolAddress(voteAccount)

	stakeAddr, stakeBump := FindPoolStakeAddressAndBump(pool)
	signer, err := signerFromSeeds(poolStakeSignerSeeds(pool, stakeBump))
	assert.NoError(t, err)
	assert.Equal(t, stakeAddr, solana.PublicKey(signer))

	onRampAddr, onRampBump := FindPoolOnRampAddressAndBump(pool)
	signer, err = signerFromSeeds(poolOnRampSignerSeeds(pool, onRampBump))
	assert.NoError(t, err)
	assert.Equal(t, onRampAddr, solana.PublicKey(signer))

	mintAddr, mintBump := FindPoolMintAddressAndBump(pool)
	signer, err = signerFromSeeds(poolMintSignerSeeds(pool, mintBump))
	assert.NoError(t, err)
	assert.Equal(t, mintAddr, solana.PublicKey(signer))

	stakeAuthorityAddr, stakeAuthorityBump := FindPoolStakeAuthorityAddressAndBump(pool)
	signer, err = signerFromSeeds(stakeAuthoritySignerSeeds(pool, stakeAuthorityBump))
	assert.NoError(t, err)
	assert.Equal(t, stakeAuthorityAddr, solana.PublicKey(signer))

	mintAuthorityAddr, mintAuthorityBump := FindPoolMintAuthorityAddressAndBump(pool)
	signer, err = signerFromSeeds(mintAuthoritySignerSeeds(pool, mintAuthorityBump))
	assert.NoError(t, err)
	assert.Equal(t, mintAuthorityAddr, solana.PublicKey(signer))

	mplAuthorityAddr, mplAuthorityBump := FindPoolMplAuthorityAddressAndBump(pool)
	signer, err = signerFromSeeds(mplAuthoritySignerSeeds(pool, mplAuthorityBump))
	assert.NoError(t, err)
	assert.Equal(t, mplAuthorityAddr, solana.PublicKey(signer))
}

func TestDefaultDepositAddress(t *testing.T) {
	voteAccount := randomPubkey(t)
	userWallet := randomPubkey(t)
	pool := FindPoolAddress(voteAccount)

	addr, seed := FindDefaultDepositAddressAndSeed(pool, userWallet)
	assert.Equal(t, 32, len(seed))
	assert.True(t, strings.HasPrefix(seed, "svsp"))
	assert.Equal(t, base58.Encode(pool[:])[:28], seed[4:])

	recreated, err := solana.CreateWithSeed(userWallet, seed, sealevel.StakeProgramAddr)
	assert.NoError(t, err)
	assert.Equal(t, addr, recreated)
	assert.Equal(t, addr, FindDefaultDepositAddress(pool, userWallet))

	otherWallet := randomPubkey(t)
	assert.NotEqual(t, addr, FindDefaultDepositAddress(pool, otherWallet))
}

func TestMetadataAddressDerivation(t *testing.T) {
	voteAccount := randomPubkey(t)
	pool := FindPoolAddress(voteAccount)
	mint := FindPoolMintAddress(pool)

	metadata := FindMetadataAddress(mint)
	assert.NotEqual(t, solana.PublicKey{}, metadata)
	assert.Equal(t, metadata, FindMetadataAddress(mint))
	assert.NotEqual(t, metadata, FindMetadataAddress(FindPoolMintAddress(FindPoolAddress(randomPubkey(t)))))
}
