package deck

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jiecut42/Hearthstone-Image-Recognition/internal/types"
)

// ErrMalformed is returned when an encoded deck cannot be decoded
var ErrMalformed = errors.New("malformed deck encoding")

// CardSource resolves card ids while decoding
type CardSource interface {
	Card(id int) types.Card
}

const (
	encodingVersion = "v1"
	unknownToken    = "?"
	noHeroToken     = "-"
)

// Encode returns the compact deterministic form of the deck composition:
//
//	v1|<hero>|<pick>,<pick>,...|<a>.<b>.<c>;...
//
// Missed picks and unknown offer slots are written as "?", a missing hero as
// "-". Draw counts are per game and not encoded.
func (d *Deck) Encode() string {
	var b strings.Builder
	b.WriteString(encodingVersion)
	b.WriteByte('|')
	if d.HeroClass == NoHero {
		b.WriteString(noHeroToken)
	} else {
		b.WriteString(strconv.Itoa(d.HeroClass))
	}

	b.WriteByte('|')
	for i, p := range d.picks {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(encodeID(p.ID))
	}

	b.WriteByte('|')
	for i, s := range d.sets {
		if i > 0 {
			b.WriteByte(';')
		}
		for j, c := range s {
			if j > 0 {
				b.WriteByte('.')
			}
			b.WriteString(encodeID(c.ID))
		}
	}
	return b.String()
}

// Decode rebuilds a deck from its encoded form, resolving ids through db
func Decode(db CardSource, s string) (*Deck, error) {
	parts := strings.Split(s, "|")
	if len(parts) != 4 || parts[0] != encodingVersion {
		return nil, fmt.Errorf("%w: expected 4 %s fields", ErrMalformed, encodingVersion)
	}

	d := New()
	if parts[1] != noHeroToken {
		hero, err := strconv.Atoi(parts[1])
		if err != nil || strconv.Itoa(hero) != parts[1] {
			return nil, fmt.Errorf("%w: hero %q", ErrMalformed, parts[1])
		}
		d.HeroClass = hero
	}

	if parts[3] != "" {
		for _, field := range strings.Split(parts[3], ";") {
			ids := strings.Split(field, ".")
			if len(ids) != 3 {
				return nil, fmt.Errorf("%w: offer %q", ErrMalformed, field)
			}
			var set Set
			for i, tok := range ids {
				id, err := decodeID(tok)
				if err != nil {
					return nil, err
				}
				set[i] = db.Card(id)
			}
			d.sets = append(d.sets, set)
		}
	}

	if parts[2] != "" {
		for _, tok := range strings.Split(parts[2], ",") {
			id, err := decodeID(tok)
			if err != nil {
				return nil, err
			}
			if err := d.AddPickedCard(db.Card(id)); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
			}
		}
	}
	if len(d.picks) > Size {
		return nil, fmt.Errorf("%w: %d picks", ErrMalformed, len(d.picks))
	}

	return d, nil
}

func encodeID(id int) string {
	if id == types.NoCard {
		return unknownToken
	}
	return strconv.Itoa(id)
}

func decodeID(tok string) (int, error) {
	if tok == unknownToken {
		return types.NoCard, nil
	}
	id, err := strconv.Atoi(tok)
	if err != nil || strconv.Itoa(id) != tok {
		return 0, fmt.Errorf("%w: card id %q", ErrMalformed, tok)
	}
	return id, nil
}
