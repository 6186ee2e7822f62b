package redis

import (
	"fmt"

	"github.com/google/uuid"
)

const ns = "entrada:v1"

func KeyCategoryAvailability(eventID, categoryID uuid.UUID) string {
	return fmt.Sprintf("%s:event:%s:category:%s:availability", ns, eventID, categoryID)
}

func KeyRateLimit(scope, id string) string {
	return fmt.Sprintf("%s:rl:%s:%s", ns, scope, id)
}

func KeyIdemPurchase(userID uuid.UUID, idemKey string) string {
	return fmt.Sprintf("%s:idem:purchases:%s:%s", ns, userID, idemKey)
}

func ChannelPurchases() string {
	return ns + ":purchases:changed"
}
