// Package xid issues the prefixed identifiers used across the ledger
// ("cust" customers, "staff" staff, "inv" inventory, "ord" orders, "chk"
// checkouts, "trx" transactions, "rst" restock events, "store" stores,
// "audit" audit entries). The prefix plus timestamp keeps IDs readable in
// logs and sortable by creation time; the random tail makes collisions
// across processes a non-concern.
package xid

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

// New returns an identifier like "chk-1756370000000000000-9f2ab4c1d0e37a55".
func New(prefix string) string {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		// Timestamp alone still satisfies uniqueness within one process.
		return fmt.Sprintf("%s-%d", prefix, time.Now().UnixNano())
	}
	return fmt.Sprintf("%s-%d-%s", prefix, time.Now().UnixNano(), hex.EncodeToString(buf))
}
