package identity

import (
	"time"

	"github.com/airdcpp-go/client/internal/adc"
)

// OfflineUser is the cached last-known state of a user who isn't currently
// connected to any hub, grounded on OfflineUser.h. It's enough to show in a
// queue source list or favorites view without keeping a full User/Identity
// pair alive.
type OfflineUser struct {
	CID      adc.CID
	Nick     string
	HubURL   string
	LastSeen time.Time
}
