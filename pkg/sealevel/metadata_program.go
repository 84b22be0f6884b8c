package sealevel

import (
	"errors"

	"github.com/solopool-labs/solopool/pkg/features"
	"github.com/solopool-labs/solopool/pkg/safemath"
	"github.com/gagliardetto/solana-go"
	"github.com/near/borsh-go"
	"k8s.io/klog/v2"
)

// MetadataAccountSize is the fixed allocation for a metadata account. The
// borsh-serialized state occupies a prefix of it and the remainder stays
// zeroed.
const MetadataAccountSize = 679

const (
	MetadataMaxNameLen              = 32
	MetadataMaxSymbolLen            = 10
	MetadataMaxUriLen               = 200
	MetadataMaxCreatorLimit         = 5
	MetadataMaxSellerFeeBasisPoints = 10000
)

const (
	MetadataProgramInstrTypeUpdateMetadataAccountV2 = 15
	MetadataProgramInstrTypeCreateMetadataAccountV3 = 33
)

const MetadataKeyMetadataV1 = 4

const (
	MetadataTokenStandardNonFungible byte = iota
	MetadataTokenStandardFungibleAsset
	MetadataTokenStandardFungible
)

var (
	MetadataErrNameTooLong                       = errors.New("MetadataErrNameTooLong")
	MetadataErrSymbolTooLong                     = errors.New("MetadataErrSymbolTooLong")
	MetadataErrUriTooLong                        = errors.New("MetadataErrUriTooLong")
	MetadataErrInvalidBasisPoints                = errors.New("MetadataErrInvalidBasisPoints")
	MetadataErrCreatorsTooLong                   = errors.New("MetadataErrCreatorsTooLong")
	MetadataErrCreatorsMustBeAtleastOne          = errors.New("MetadataErrCreatorsMustBeAtleastOne")
	MetadataErrDuplicateCreatorAddress           = errors.New("MetadataErrDuplicateCreatorAddress")
	MetadataErrShareTotalMustBe100               = errors.New("MetadataErrShareTotalMustBe100")
	MetadataErrUninitialized                     = errors.New("MetadataErrUninitialized")
	MetadataErrInvalidMintAuthority              = errors.New("MetadataErrInvalidMintAuthority")
	MetadataErrNotMintAuthority                  = errors.New("MetadataErrNotMintAuthority")
	MetadataErrUpdateAuthorityIsNotSigner        = errors.New("MetadataErrUpdateAuthorityIsNotSigner")
	MetadataErrUpdateAuthorityIncorrect          = errors.New("MetadataErrUpdateAuthorityIncorrect")
	MetadataErrDerivedKeyInvalid                 = errors.New("MetadataErrDerivedKeyInvalid")
	MetadataErrDataIsImmutable                   = errors.New("MetadataErrDataIsImmutable")
	MetadataErrIsMutableCanOnlyBeFlippedToFalse  = errors.New("MetadataErrIsMutableCanOnlyBeFlippedToFalse")
	MetadataErrPrimarySaleCanOnlyBeFlippedToTrue = errors.New("MetadataErrPrimarySaleCanOnlyBeFlippedToTrue")
)

type MetadataCreator struct {
	Address  solana.PublicKey
	Verified bool
	Share    byte
}

type MetadataCollection struct {
	Verified bool
	Key      solana.PublicKey
}

type MetadataUses struct {
	UseMethod byte
	Remaining uint64
	Total     uint64
}

// MetadataCollectionDetails carries the V1 variant payload. The leading
// variant byte keeps the layout identical to the borsh enum encoding.
type MetadataCollectionDetails struct {
	Variant byte
	Size    uint64
}

// MetadataDataV2 is the asset payload shared by CreateMetadataAccountV3 and
// UpdateMetadataAccountV2. Pointer fields are borsh options.
type MetadataDataV2 struct {
	Name                 string
	Symbol               string
	Uri                  string
	SellerFeeBasisPoints uint16
	Creators             *[]MetadataCreator
	Collection           *MetadataCollection
	Uses                 *MetadataUses
}

// MetadataData is the account-side asset payload, which predates the
// collection and uses fields.
type MetadataData struct {
	Name                 string
	Symbol               string
	Uri                  string
	SellerFeeBasisPoints uint16
	Creators             *[]MetadataCreator
}

type Metadata struct {
	Key                 byte
	UpdateAuthority     solana.PublicKey
	Mint                solana.PublicKey
	Data                MetadataData
	PrimarySaleHappened bool
	IsMutable           bool
	EditionNonce        *byte
	TokenStandard       *byte
	Collection          *MetadataCollection
	Uses                *MetadataUses
}

type MetadataInstrCreateMetadataAccountV3 struct {
	Data              MetadataDataV2
	IsMutable         bool
	CollectionDetails *MetadataCollectionDetails
}

type MetadataInstrUpdateMetadataAccountV2 struct {
	Data                *MetadataDataV2
	NewUpdateAuthority  *solana.PublicKey
	PrimarySaleHappened *bool
	IsMutable           *bool
}

func unmarshalMetadata(data []byte) (*Metadata, error) {
	metadata := new(Metadata)

	err := borsh.Deserialize(metadata, data)
	if err != nil {
		return nil, InstrErrInvalidAccountData
	}

	if metadata.Key != MetadataKeyMetadataV1 {
		return nil, InstrErrInvalidAccountData
	}

	return metadata, nil
}

func setMetadataAccountState(acct *BorrowedAccount, metadata *Metadata, f features.Features) error {
	stateData, err := borsh.Serialize(*metadata)
	if err != nil {
		return err
	}

	if len(stateData) > len(acct.Data()) {
		return InstrErrAccountDataTooSmall
	}

	newData := make([]byte, len(acct.Data()))
	copy(newData, stateData)

	return acct.SetData(f, newData)
}

func validateMetadataData(data *MetadataDataV2) error {
	if len(data.Name) > MetadataMaxNameLen {
		return MetadataErrNameTooLong
	}

	if len(data.Symbol) > MetadataMaxSymbolLen {
		return MetadataErrSymbolTooLong
	}

	if len(data.Uri) > MetadataMaxUriLen {
		return MetadataErrUriTooLong
	}

	if data.SellerFeeBasisPoints > MetadataMaxSellerFeeBasisPoints {
		return MetadataErrInvalidBasisPoints
	}

	if data.Creators != nil {
		creators := *data.Creators
		if len(creators) > MetadataMaxCreatorLimit {
			return MetadataErrCreatorsTooLong
		}
		if len(creators) == 0 {
			return MetadataErrCreatorsMustBeAtleastOne
		}

		shareTotal := uint64(0)
		for idx, creator := range creators {
			for _, other := range creators[:idx] {
				if creator.Address == other.Address {
					return MetadataErrDuplicateCreatorAddress
				}
			}
			shareTotal += uint64(creator.Share)
		}

		if shareTotal != 100 {
			return MetadataErrShareTotalMustBe100
		}
	}

	return nil
}

// puffMetadataString pads a field with trailing NULs out to the size its
// slot occupies in the fixed metadata allocation.
func puffMetadataString(s string, size int) string {
	padded := make([]byte, size)
	copy(padded, s)
	return string(padded)
}

// deriveMetadataAddress returns the canonical metadata address for a mint.
func deriveMetadataAddress(mint solana.PublicKey) (solana.PublicKey, error) {
	addr, _, err := solana.FindProgramAddress([][]byte{[]byte("metadata"), MetaplexMetadataProgramAddr[:], mint[:]}, MetaplexMetadataProgramAddr)
	return addr, err
}

func MetadataProgramExecute(execCtx *ExecutionCtx) error {
	err := execCtx.ComputeMeter.Consume(CUMetadataProgramDefaultComputeUnits)
	if err != nil {
		return err
	}

	txCtx := execCtx.TransactionContext
	instrCtx, err := txCtx.CurrentInstructionCtx()
	if err != nil {
		return err
	}

	data := instrCtx.Data
	if len(data) < 1 {
		return InstrErrInvalidInstructionData
	}

	switch data[0] {
	case MetadataProgramInstrTypeCreateMetadataAccountV3:
		{
			var createMetadataAccount MetadataInstrCreateMetadataAccountV3
			err = borsh.Deserialize(&createMetadataAccount, data[1:])
			if err != nil {
				return InstrErrInvalidInstructionData
			}

			err = instrCtx.CheckNumOfInstructionAccounts(6)
			if err != nil {
				return err
			}

			return MetadataProgramCreateMetadataAccountV3(execCtx, txCtx, instrCtx, createMetadataAccount)
		}

	case MetadataProgramInstrTypeUpdateMetadataAccountV2:
		{
			var updateMetadataAccount MetadataInstrUpdateMetadataAccountV2
			err = borsh.Deserialize(&updateMetadataAccount, data[1:])
			if err != nil {
				return InstrErrInvalidInstructionData
			}

			err = instrCtx.CheckNumOfInstructionAccounts(2)
			if err != nil {
				return err
			}

			return MetadataProgramUpdateMetadataAccountV2(execCtx, txCtx, instrCtx, updateMetadataAccount)
		}

	default:
		{
			klog.V(2).Infof("token metadata instruction %d not supported", data[0])
			return InstrErrInvalidInstructionData
		}
	}
}

// Account order: metadata, mint, mint authority, payer, update authority,
// system program.
func MetadataProgramCreateMetadataAccountV3(execCtx *ExecutionCtx, txCtx *TransactionCtx, instrCtx *InstructionCtx, createMetadataAccount MetadataInstrCreateMetadataAccountV3) error {
	metadataIdxInTx, err := instrCtx.IndexOfInstructionAccountInTransaction(0)
	if err != nil {
		return err
	}
	metadataPubkey, err := txCtx.KeyOfAccountAtIndex(metadataIdxInTx)
	if err != nil {
		return err
	}

	mintAcct, err := instrCtx.BorrowInstructionAccount(txCtx, 1)
	if err != nil {
		return err
	}
	mintPubkey := mintAcct.Key()
	if mintAcct.Owner() != TokenProgramAddr {
		mintAcct.Drop()
		return InstrErrIncorrectProgramId
	}

	mint, err := unmarshalTokenMint(mintAcct.Data())
	mintAcct.Drop()
	if err != nil {
		return err
	}
	if !mint.IsInitialized {
		return MetadataErrUninitialized
	}

	mintAuthorityIdxInTx, err := instrCtx.IndexOfInstructionAccountInTransaction(2)
	if err != nil {
		return err
	}
	mintAuthorityPubkey, err := txCtx.KeyOfAccountAtIndex(mintAuthorityIdxInTx)
	if err != nil {
		return err
	}

	if mint.MintAuthority == nil || *mint.MintAuthority != mintAuthorityPubkey {
		return MetadataErrInvalidMintAuthority
	}

	isMintAuthoritySigner, err := instrCtx.IsInstructionAccountSigner(2)
	if err != nil {
		return err
	}
	if !isMintAuthoritySigner {
		return MetadataErrNotMintAuthority
	}

	payerIdxInTx, err := instrCtx.IndexOfInstructionAccountInTransaction(3)
	if err != nil {
		return err
	}
	payerPubkey, err := txCtx.KeyOfAccountAtIndex(payerIdxInTx)
	if err != nil {
		return err
	}

	isPayerSigner, err := instrCtx.IsInstructionAccountSigner(3)
	if err != nil {
		return err
	}
	if !isPayerSigner {
		return InstrErrMissingRequiredSignature
	}

	updateAuthorityIdxInTx, err := instrCtx.IndexOfInstructionAccountInTransaction(4)
	if err != nil {
		return err
	}
	updateAuthorityPubkey, err := txCtx.KeyOfAccountAtIndex(updateAuthorityIdxInTx)
	if err != nil {
		return err
	}

	isUpdateAuthoritySigner, err := instrCtx.IsInstructionAccountSigner(4)
	if err != nil {
		return err
	}
	if !isUpdateAuthoritySigner {
		return MetadataErrUpdateAuthorityIsNotSigner
	}

	derivedMetadataPubkey, err := deriveMetadataAddress(mintPubkey)
	if err != nil {
		return err
	}
	if derivedMetadataPubkey != metadataPubkey {
		return MetadataErrDerivedKeyInvalid
	}

	err = validateMetadataData(&createMetadataAccount.Data)
	if err != nil {
		return err
	}

	// fund, size and assign the new account through the system program,
	// vouching for the metadata address as a signer
	rent := ReadRentSysvar(&execCtx.Accounts)
	minBalance := rent.MinimumBalance(MetadataAccountSize)

	metadataAcct, err := instrCtx.BorrowInstructionAccount(txCtx, 0)
	if err != nil {
		return err
	}
	metadataLamports := metadataAcct.Lamports()
	metadataAcct.Drop()

	if metadataLamports < minBalance {
		shortfall := safemath.SaturatingSubU64(minBalance, metadataLamports)
		err = execCtx.NativeInvoke(*NewTransferInstruction(payerPubkey, metadataPubkey, shortfall), nil)
		if err != nil {
			return err
		}
	}

	err = execCtx.NativeInvoke(*NewAllocateInstruction(metadataPubkey, MetadataAccountSize), []solana.PublicKey{metadataPubkey})
	if err != nil {
		return err
	}

	err = execCtx.NativeInvoke(*NewAssignInstruction(metadataPubkey, MetaplexMetadataProgramAddr), []solana.PublicKey{metadataPubkey})
	if err != nil {
		return err
	}

	_, editionBump, err := solana.FindProgramAddress([][]byte{[]byte("metadata"), MetaplexMetadataProgramAddr[:], mintPubkey[:], []byte("edition")}, MetaplexMetadataProgramAddr)
	if err != nil {
		return err
	}

	tokenStandard := MetadataTokenStandardFungible
	if mint.Decimals == 0 {
		tokenStandard = MetadataTokenStandardFungibleAsset
	}

	metadata := &Metadata{
		Key:             MetadataKeyMetadataV1,
		UpdateAuthority: updateAuthorityPubkey,
		Mint:            mintPubkey,
		Data: MetadataData{
			Name:                 puffMetadataString(createMetadataAccount.Data.Name, MetadataMaxNameLen),
			Symbol:               puffMetadataString(createMetadataAccount.Data.Symbol, MetadataMaxSymbolLen),
			Uri:                  puffMetadataString(createMetadataAccount.Data.Uri, MetadataMaxUriLen),
			SellerFeeBasisPoints: createMetadataAccount.Data.SellerFeeBasisPoints,
			Creators:             createMetadataAccount.Data.Creators,
		},
		PrimarySaleHappened: false,
		IsMutable:           createMetadataAccount.IsMutable,
		EditionNonce:        &editionBump,
		TokenStandard:       &tokenStandard,
	}

	metadataAcct, err = instrCtx.BorrowInstructionAccount(txCtx, 0)
	if err != nil {
		return err
	}
	defer metadataAcct.Drop()

	return setMetadataAccountState(metadataAcct, metadata, execCtx.GlobalCtx.Features)
}

// Account order: metadata, update authority.
func MetadataProgramUpdateMetadataAccountV2(execCtx *ExecutionCtx, txCtx *TransactionCtx, instrCtx *InstructionCtx, updateMetadataAccount MetadataInstrUpdateMetadataAccountV2) error {
	metadataAcct, err := instrCtx.BorrowInstructionAccount(txCtx, 0)
	if err != nil {
		return err
	}
	defer metadataAcct.Drop()

	if metadataAcct.Owner() != MetaplexMetadataProgramAddr {
		return InstrErrInvalidAccountOwner
	}

	metadata, err := unmarshalMetadata(metadataAcct.Data())
	if err != nil {
		return err
	}

	updateAuthorityIdxInTx, err := instrCtx.IndexOfInstructionAccountInTransaction(1)
	if err != nil {
		return err
	}
	updateAuthorityPubkey, err := txCtx.KeyOfAccountAtIndex(updateAuthorityIdxInTx)
	if err != nil {
		return err
	}

	if updateAuthorityPubkey != metadata.UpdateAuthority {
		return MetadataErrUpdateAuthorityIncorrect
	}

	isSigner, err := instrCtx.IsInstructionAccountSigner(1)
	if err != nil {
		return err
	}
	if !isSigner {
		return MetadataErrUpdateAuthorityIsNotSigner
	}

	if updateMetadataAccount.Data != nil {
		if !metadata.IsMutable {
			return MetadataErrDataIsImmutable
		}

		err = validateMetadataData(updateMetadataAccount.Data)
		if err != nil {
			return err
		}

		metadata.Data = MetadataData{
			Name:                 updateMetadataAccount.Data.Name,
			Symbol:               updateMetadataAccount.Data.Symbol,
			Uri:                  updateMetadataAccount.Data.Uri,
			SellerFeeBasisPoints: updateMetadataAccount.Data.SellerFeeBasisPoints,
			Creators:             updateMetadataAccount.Data.Creators,
		}
	}

	if updateMetadataAccount.NewUpdateAuthority != nil {
		metadata.UpdateAuthority = *updateMetadataAccount.NewUpdateAuthority
	}

	if updateMetadataAccount.PrimarySaleHappened != nil {
		if !*updateMetadataAccount.PrimarySaleHappened {
			return MetadataErrPrimarySaleCanOnlyBeFlippedToTrue
		}
		metadata.PrimarySaleHappened = true
	}

	if updateMetadataAccount.IsMutable != nil {
		if *updateMetadataAccount.IsMutable {
			return MetadataErrIsMutableCanOnlyBeFlippedToFalse
		}
		metadata.IsMutable = false
	}

	return setMetadataAccountState(metadataAcct, metadata, execCtx.GlobalCtx.Features)
}

func NewMetadataCreateMetadataAccountV3Instruction(metadataPubkey solana.PublicKey, mintPubkey solana.PublicKey, mintAuthority solana.PublicKey, payer solana.PublicKey, updateAuthority solana.PublicKey, data MetadataDataV2, isMutable bool) *Instruction {
	createMetadataAccount := MetadataInstrCreateMetadataAccountV3{Data: data, IsMutable: isMutable}

	serializedArgs, err := borsh.Serialize(createMetadataAccount)
	if err != nil {
		panic("shouldn't fail")
	}
	instrData := append([]byte{MetadataProgramInstrTypeCreateMetadataAccountV3}, serializedArgs...)

	accounts := []AccountMeta{
		{Pubkey: metadataPubkey, IsSigner: false, IsWritable: true},
		{Pubkey: mintPubkey, IsSigner: false, IsWritable: false},
		{Pubkey: mintAuthority, IsSigner: true, IsWritable: false},
		{Pubkey: payer, IsSigner: true, IsWritable: true},
		{Pubkey: updateAuthority, IsSigner: true, IsWritable: false},
		{Pubkey: SystemProgramAddr, IsSigner: false, IsWritable: false}}

	return &Instruction{Accounts: accounts, Data: instrData, ProgramId: MetaplexMetadataProgramAddr}
}

func NewMetadataUpdateMetadataAccountV2Instruction(metadataPubkey solana.PublicKey, updateAuthority solana.PublicKey, data *MetadataDataV2) *Instruction {
	updateMetadataAccount := MetadataInstrUpdateMetadataAccountV2{Data: data}

	serializedArgs, err := borsh.Serialize(updateMetadataAccount)
	if err != nil {
		panic("shouldn't fail")
	}
	instrData := append([]byte{MetadataProgramInstrTypeUpdateMetadataAccountV2}, serializedArgs...)

	accounts := []AccountMeta{
		{Pubkey: metadataPubkey, IsSigner: false, IsWritable: true},
		{Pubkey: updateAuthority, IsSigner: true, IsWritable: false}}

	return &Instruction{Accounts: accounts, Data: instrData, ProgramId: MetaplexMetadataProgramAddr}
}
