// Package item is the read-only view of lost items that conversations hang off.
package item

import (
	"context"
	"errors"
	"strings"
	"time"
)

// ErrNotFound is returned when no item exists for the requested id.
var ErrNotFound = errors.New("item not found")

type Status string

const (
	StatusAvailable       Status = "available"
	StatusPendingHandover Status = "pending_handover"
	StatusClaimed         Status = "claimed"
)

func (s Status) Valid() bool {
	switch s {
	case StatusAvailable, StatusPendingHandover, StatusClaimed:
		return true
	}
	return false
}

type ClaimStatus string

const (
	ClaimPending  ClaimStatus = "pending"
	ClaimApproved ClaimStatus = "approved"
	ClaimRejected ClaimStatus = "rejected"
)

func (s ClaimStatus) Valid() bool {
	switch s {
	case ClaimPending, ClaimApproved, ClaimRejected:
		return true
	}
	return false
}

// Claim is a request by an applier to be recognised as the owner of an item.
type Claim struct {
	ApplierAddress string      `json:"applierAddress"`
	SecretMessage  string      `json:"secretMessage"`
	Status         ClaimStatus `json:"status"`
	CreatedAt      time.Time   `json:"createdAt"`
}

// Item is a reported lost item. Its id doubles as the conversation id.
// Claims are kept in submission order.
type Item struct {
	ID            string  `json:"id"`
	FinderAddress string  `json:"finderAddress"`
	Claims        []Claim `json:"claims"`
	Status        Status  `json:"status"`
}

// Lookup loads items by id. Implementations return ErrNotFound for unknown ids.
type Lookup interface {
	FindByID(ctx context.Context, id string) (*Item, error)
}

// Participants returns the lower-cased addresses allowed to take part in
// the item's conversation: the finder and every claim applier. The set is
// derived from the item on every call.
func Participants(it *Item) map[string]struct{} {
	set := make(map[string]struct{}, len(it.Claims)+1)
	if addr := normalizeAddress(it.FinderAddress); addr != "" {
		set[addr] = struct{}{}
	}
	for _, c := range it.Claims {
		if addr := normalizeAddress(c.ApplierAddress); addr != "" {
			set[addr] = struct{}{}
		}
	}
	return set
}

// IsParticipant reports whether address is the finder or an applier of it.
func IsParticipant(it *Item, address string) bool {
	if it == nil {
		return false
	}
	addr := normalizeAddress(address)
	if addr == "" {
		return false
	}
	_, ok := Participants(it)[addr]
	return ok
}

func normalizeAddress(addr string) string {
	return strings.ToLower(strings.TrimSpace(addr))
}
