package orchestrator

import (
	"testing"
)

func TestAnonymizedUserIDIsStableForSameInputs(t *testing.T) {
	id := Identity{RemoteAddr: "203.0.113.5", UserAgent: "curl/8.0"}
	if id.AnonymizedUserID() != id.AnonymizedUserID() {
		t.Error("expected the same identity to hash to the same user id")
	}
}

func TestAnonymizedUserIDDiffersByAddress(t *testing.T) {
	a := Identity{RemoteAddr: "203.0.113.5", UserAgent: "curl/8.0"}
	b := Identity{RemoteAddr: "203.0.113.6", UserAgent: "curl/8.0"}
	if a.AnonymizedUserID() == b.AnonymizedUserID() {
		t.Error("expected different remote addresses to anonymize differently")
	}
}

func TestAnonymizedUserIDHandlesMissingFields(t *testing.T) {
	id := Identity{}
	hash := id.AnonymizedUserID()
	if len(hash) != 64 {
		t.Errorf("expected a 64-character hex SHA-256 digest, got length %d", len(hash))
	}
}

func TestErrRateLimitedMessage(t *testing.T) {
	if ErrRateLimited == nil || ErrRateLimited.Error() == "" {
		t.Error("expected ErrRateLimited to carry a message")
	}
}
