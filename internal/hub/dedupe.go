package hub

import (
	"fmt"
	"time"

	"github.com/tidwall/buntdb"

	"github.com/sirupsen/logrus"
)

// dedupeWindow guards against the same report being pushed twice in
// quick succession (e.g. an orchestrator retry racing a delayed
// commit). It is a tiny embedded KV, not a system of record: an
// in-memory buntdb instance with per-key expiry, the same role the
// teacher's go.mod carries buntdb for.
type dedupeWindow struct {
	db  *buntdb.DB
	ttl time.Duration
	log *logrus.Logger
}

func newDedupeWindow(ttl time.Duration, log *logrus.Logger) *dedupeWindow {
	db, err := buntdb.Open(":memory:")
	if err != nil {
		// :memory: never fails to open; degrade to "never dedupe" rather
		// than block hub construction on it.
		log.WithError(err).Warn("hub: dedupe window disabled, buntdb failed to open")
		return &dedupeWindow{ttl: ttl, log: log}
	}
	return &dedupeWindow{db: db, ttl: ttl, log: log}
}

// seen reports whether (userID, reportID) was already recorded within
// the window, and records it if not.
func (d *dedupeWindow) seen(userID, reportID int64) bool {
	if d.db == nil {
		return false
	}
	key := fmt.Sprintf("%d:%d", userID, reportID)

	var alreadySent bool
	err := d.db.Update(func(tx *buntdb.Tx) error {
		if _, err := tx.Get(key); err == nil {
			alreadySent = true
			return nil
		}
		_, _, err := tx.Set(key, "1", &buntdb.SetOptions{Expires: true, TTL: d.ttl})
		return err
	})
	if err != nil {
		d.log.WithError(err).Warn("hub: dedupe window update failed")
		return false
	}
	return alreadySent
}
