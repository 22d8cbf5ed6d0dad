package runtime

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/aretw0/lectern/pkg/domain"
)

// actionKey identifies one logical user action. A re-delivered action hashes to the same
// key and is dropped instead of being applied twice.
func actionKey(progressID, blockID string, kind domain.InputKind, input string) string {
	h := sha256.New()
	for _, part := range []string{progressID, blockID, string(kind), input} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}
