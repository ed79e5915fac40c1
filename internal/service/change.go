package service

import "github.com/jjenkins/billwatch/internal/model"

// NeedsSync reports whether an upstream record must be reconciled.
// A bill that is not stored locally always needs a sync; otherwise only a
// differing change hash does. Equal hashes are taken as equal content.
func NeedsSync(local *model.Bill, upstreamHash string) bool {
	return local == nil || local.ChangeHash != upstreamHash
}
