package matcher

import (
	"crypto/sha256"

	"github.com/nasubidev/splatrecorder/internal/model"
)

// HashMatcher computes a fixed-length digest over the ROI bytes and passes
// iff the digest equals a pre-captured reference digest. No tolerance; used
// for exact-pixel screens.
//
// SHA-256 over raw pixel bytes is a standard-library primitive (no
// third-party hash library in the retrieved pack does this job better for
// exact equality; see DESIGN.md).
type HashMatcher struct {
	base
	name      string
	reference [sha256.Size]byte
}

// NewHashMatcher builds a HashMatcher from a reference frame/ROI, capturing
// its digest at construction time.
func NewHashMatcher(name string, roi model.ROI, reference model.Frame) *HashMatcher {
	m := &HashMatcher{base: base{roi: roi}, name: name}
	m.reference = digest(reference.Crop(roi).ToBytes())
	return m
}

func digest(b []byte) [sha256.Size]byte {
	return sha256.Sum256(b)
}

func (m *HashMatcher) Name() string { return m.name }

func (m *HashMatcher) Match(frame model.Frame) bool {
	mat := m.cropped(frame)
	return digest(mat.ToBytes()) == m.reference
}
