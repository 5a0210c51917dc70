package types

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"strings"

	"github.com/pkg/errors"
)

// Identifiers are fixed 32-byte values internally; callers hand them over as
// hex strings and get hex strings back. Nothing in the engine keys state off
// raw caller-supplied strings.
const (
	idLen    = 32
	hexIDLen = 2 * idLen

	addressLen = 20
	// the trailing bytes of a subaccount ID hold the owner nonce
	nonceLen = idLen - addressLen
)

var (
	// ErrInvalidID signals an identifier that is not 32 hex encoded bytes.
	ErrInvalidID = errors.New("invalid identifier")
	// ErrInvalidAddress signals an owner address that is not 20 hex encoded bytes.
	ErrInvalidAddress = errors.New("invalid owner address")
)

// Address is the owner address a subaccount belongs to.
type Address [addressLen]byte

// AddressFromString decodes an owner address from its hex form,
// with or without a 0x prefix.
func AddressFromString(s string) (Address, error) {
	var a Address
	b, err := hex.DecodeString(strip0x(s))
	if err != nil || len(b) != addressLen {
		return a, errors.Wrapf(ErrInvalidAddress, "%q", s)
	}
	copy(a[:], b)
	return a, nil
}

func (a Address) String() string {
	return "0x" + hex.EncodeToString(a[:])
}

// SubaccountID identifies a sub-ledger under one owner address. The first 20
// bytes are the owner address, the last 12 the big-endian nonce, so an ID
// resolves to exactly one (owner, nonce) pair by construction.
type SubaccountID [idLen]byte

// NewSubaccountID derives the subaccount ID for the given owner and nonce.
func NewSubaccountID(owner Address, nonce uint64) SubaccountID {
	var id SubaccountID
	copy(id[:addressLen], owner[:])
	binary.BigEndian.PutUint64(id[idLen-8:], nonce)
	return id
}

// SubaccountIDFromString decodes a subaccount ID from its hex form.
func SubaccountIDFromString(s string) (SubaccountID, error) {
	var id SubaccountID
	if err := decodeID(id[:], s); err != nil {
		return id, err
	}
	return id, nil
}

// Owner returns the owner address the subaccount ID was derived from.
func (id SubaccountID) Owner() Address {
	var a Address
	copy(a[:], id[:addressLen])
	return a
}

// Nonce returns the nonce the subaccount ID was derived from.
func (id SubaccountID) Nonce() uint64 {
	return binary.BigEndian.Uint64(id[idLen-8:])
}

// IsDefault reports whether this is the owner's default (nonce zero) subaccount.
func (id SubaccountID) IsDefault() bool {
	var zero [nonceLen]byte
	return bytes.Equal(id[addressLen:], zero[:])
}

// IsZero reports whether the ID is entirely unset.
func (id SubaccountID) IsZero() bool {
	return id == SubaccountID{}
}

func (id SubaccountID) String() string {
	return "0x" + hex.EncodeToString(id[:])
}

// MarketID identifies a market.
type MarketID [idLen]byte

// MarketIDFromString decodes a market ID from its hex form.
func MarketIDFromString(s string) (MarketID, error) {
	var id MarketID
	if err := decodeID(id[:], s); err != nil {
		return id, err
	}
	return id, nil
}

func (id MarketID) IsZero() bool {
	return id == MarketID{}
}

func (id MarketID) String() string {
	return "0x" + hex.EncodeToString(id[:])
}

// OrderID is the hash assigned to an order on acceptance.
type OrderID [idLen]byte

// OrderIDFromString decodes an order hash from its hex form.
func OrderIDFromString(s string) (OrderID, error) {
	var id OrderID
	if err := decodeID(id[:], s); err != nil {
		return id, err
	}
	return id, nil
}

func (id OrderID) IsZero() bool {
	return id == OrderID{}
}

func (id OrderID) String() string {
	return "0x" + hex.EncodeToString(id[:])
}

func decodeID(dst []byte, s string) error {
	b, err := hex.DecodeString(strip0x(s))
	if err != nil || len(b) != idLen {
		return errors.Wrapf(ErrInvalidID, "%q", s)
	}
	copy(dst, b)
	return nil
}

func strip0x(s string) string {
	return strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
}
