package mapping

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// Snapshots are compared byte for byte across runs, so encoding is
// canonical. Decoding rejects duplicate and unknown keys: a snapshot
// written by a different schema must not half-load.
var encMode, decMode = snapshotModes()

func snapshotModes() (cbor.EncMode, cbor.DecMode) {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("mapping: snapshot encoding: %v", err))
	}
	dm, err := cbor.DecOptions{
		DupMapKey:         cbor.DupMapKeyEnforcedAPF,
		ExtraReturnErrors: cbor.ExtraDecErrorUnknownField,
	}.DecMode()
	if err != nil {
		panic(fmt.Sprintf("mapping: snapshot decoding: %v", err))
	}
	return em, dm
}

// Marshal encodes s.
func Marshal(s *Snapshot) ([]byte, error) {
	return encMode.Marshal(s)
}

// Unmarshal decodes a snapshot. The entries are validated as well, since
// retrace lookups binary-search them and parse every name they return.
func Unmarshal(data []byte) (*Snapshot, error) {
	var s Snapshot
	if err := decMode.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("mapping: unmarshal snapshot: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}
