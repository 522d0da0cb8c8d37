package syncer

import (
	"fmt"
	"strings"
)

// Strategy decides what happens when the server changed a record that
// also has unsynced local edits.
type Strategy string

const (
	// ServerWins drops the local edit and adopts the server copy.
	ServerWins Strategy = "server_wins"
	// LocalWins keeps the local edit; it overwrites the server on the next push.
	LocalWins Strategy = "local_wins"
	// Manual parks the conflict until the user resolves it.
	Manual Strategy = "manual"
)

func ParseStrategy(s string) (Strategy, error) {
	switch st := Strategy(strings.ToLower(strings.TrimSpace(s))); st {
	case ServerWins, LocalWins, Manual:
		return st, nil
	default:
		return "", fmt.Errorf("unknown conflict resolution %q (want server_wins, local_wins or manual)", s)
	}
}
