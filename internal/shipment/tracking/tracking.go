// Package tracking mints and parses public shipment tracking identifiers.
//
// An identifier is "BX", the creation time in milliseconds as upper-case
// base36, and six base32 characters drawn from a random UUID. Instances need
// no coordination; storage enforces uniqueness and callers retry on the rare
// collision.
package tracking

import (
	"encoding/base32"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	dErrors "boxinator/pkg/domain-errors"
)

const (
	Prefix       = "BX"
	suffixLength = 6
)

var (
	suffixEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)
	pattern        = regexp.MustCompile(`^BX[0-9A-Z]{6,13}[A-Z2-7]{6}$`)
)

// Generator produces tracking identifiers.
type Generator struct {
	now     func() time.Time
	newUUID func() (uuid.UUID, error)
}

func NewGenerator() *Generator {
	return &Generator{now: time.Now, newUUID: uuid.NewRandom}
}

// Generate returns a fresh identifier.
func (g *Generator) Generate() (string, error) {
	u, err := g.newUUID()
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to read random source")
	}
	ts := strings.ToUpper(strconv.FormatInt(g.now().UnixMilli(), 36))
	// Bytes 10..15 of a v4 UUID are fully random.
	suffix := suffixEncoding.EncodeToString(u[10:])[:suffixLength]
	return Prefix + ts + suffix, nil
}

// Validate normalizes external input and checks it has the identifier shape.
func Validate(raw string) (string, error) {
	s := strings.ToUpper(strings.TrimSpace(raw))
	if !pattern.MatchString(s) {
		return "", dErrors.New(dErrors.CodeNotFound, "shipment not found")
	}
	return s, nil
}
