package storetest

import (
	"github.com/google/uuid"

	"github.com/tomurashigaraki22/ripple-marketplace-sub002/internal/models"
	"github.com/tomurashigaraki22/ripple-marketplace-sub002/internal/scheduler"
)

type scheduled struct {
	entry scheduler.Entry
	cmd   scheduler.Command
}

type tables struct {
	escrows   map[uuid.UUID]models.Escrow
	payments  map[uuid.UUID]models.AuctionPayment
	listings  map[uuid.UUID]models.Listing
	bids      []models.Bid
	schedule  map[string]scheduled
	nextJobID int64
}

func newTables() *tables {
	return &tables{
		escrows:  make(map[uuid.UUID]models.Escrow),
		payments: make(map[uuid.UUID]models.AuctionPayment),
		listings: make(map[uuid.UUID]models.Listing),
		schedule: make(map[string]scheduled),
	}
}

func copyEscrow(e models.Escrow) *models.Escrow {
	e.Conditions = e.Conditions.Clone()
	return &e
}

func escrowKey(id uuid.UUID) string  { return "escrow:" + id.String() }
func paymentKey(id uuid.UUID) string { return "payment:" + id.String() }
func listingKey(id uuid.UUID) string { return "listing:" + id.String() }
