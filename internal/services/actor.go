package services

import "github.com/lissa/commissions-api/internal/models"

// Actor is the authenticated caller as supplied by the identity layer
type Actor struct {
	UserID   uint
	Role     string
	BrokerID *uint
}

// IsMaster returns true for operators with full ledger access
func (a Actor) IsMaster() bool {
	return a.Role == models.RoleMaster
}

// OwnsBroker returns true if the actor is the given broker
func (a Actor) OwnsBroker(brokerID uint) bool {
	return a.BrokerID != nil && *a.BrokerID == brokerID
}

func requireMaster(a Actor) error {
	if !a.IsMaster() {
		return forbiddenError("solo un usuario master puede realizar esta operación")
	}
	return nil
}
