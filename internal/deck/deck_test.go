package deck

import (
	"bytes"
	"errors"
	"fmt"
	"image/png"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jiecut42/Hearthstone-Image-Recognition/internal/types"
)

type cards struct{}

func (cards) Card(id int) types.Card {
	if id == types.NoCard {
		return types.UnknownCard
	}
	return types.Card{ID: id, Name: fmt.Sprintf("card-%d", id)}
}

func card(id int) types.Card { return cards{}.Card(id) }

func offerAndPick(t *testing.T, d *Deck, a, b, c, pick int) {
	t.Helper()
	d.AddSet(card(a), card(b), card(c))
	require.NoError(t, d.AddPickedCard(card(pick)))
}

func TestPickNeedsOffer(t *testing.T) {
	d := New()
	assert.Error(t, d.AddPickedCard(card(1)))
	assert.Error(t, d.AddUnknownPick())

	d.AddSet(card(1), card(2), card(3))
	require.NoError(t, d.AddPickedCard(card(2)))
	assert.Error(t, d.AddPickedCard(card(3)))
	assert.Equal(t, 1, d.CardCount())
}

func TestCompleteAfterThirtyPicks(t *testing.T) {
	d := New()
	for i := 0; i < Size; i++ {
		assert.False(t, d.IsComplete())
		d.AddSet(card(i), card(i+100), card(i+200))
		if i%7 == 0 {
			require.NoError(t, d.AddUnknownPick())
		} else {
			require.NoError(t, d.AddPickedCard(card(i)))
		}
	}
	assert.True(t, d.IsComplete())
	assert.Equal(t, 5, d.MissedPicks())

	d.AddSet(card(1), card(2), card(3))
	assert.Error(t, d.AddPickedCard(card(1)))
	assert.Equal(t, Size, d.CardCount())
}

func TestClear(t *testing.T) {
	d := New()
	d.HeroClass = 3
	offerAndPick(t, d, 1, 2, 3, 1)
	d.Draw(card(1), false)

	d.Clear()
	assert.Equal(t, NoHero, d.HeroClass)
	assert.Empty(t, d.Sets())
	assert.Empty(t, d.Picks())
	assert.Zero(t, d.DrawCount(1))
}

func TestDrawCountsAndReset(t *testing.T) {
	d := New()
	offerAndPick(t, d, 1, 2, 3, 1)

	assert.False(t, d.Draw(card(1), false))
	assert.False(t, d.Draw(card(1), false))
	assert.Equal(t, 2, d.DrawCount(1))

	assert.False(t, d.Draw(types.UnknownCard, true))

	d.ResetDraws()
	assert.Zero(t, d.DrawCount(1))
	assert.Equal(t, 1, d.CardCount())
}

func TestDrawBuildsDeck(t *testing.T) {
	d := New()
	offerAndPick(t, d, 1, 2, 3, 1)

	// already in the deck once
	assert.False(t, d.Draw(card(1), true))

	// a second copy was never observed
	assert.True(t, d.Draw(card(1), true))
	assert.Equal(t, 2, d.CardCount())

	assert.True(t, d.Draw(card(9), true))
	assert.Equal(t, 3, d.CardCount())
	assert.LessOrEqual(t, len(d.Picks()), len(d.Sets()))

	last, ok := d.LastSet()
	require.True(t, ok)
	assert.Equal(t, [3]int{9, types.NoCard, types.NoCard}, last.IDs())
}

func TestDrawFillsMissedPickFirst(t *testing.T) {
	d := New()
	offerAndPick(t, d, 1, 2, 3, 1)
	d.AddSet(card(4), card(5), card(6))
	require.NoError(t, d.AddUnknownPick())

	assert.True(t, d.Draw(card(5), true))
	assert.Equal(t, 2, d.CardCount())
	assert.Equal(t, 0, d.MissedPicks())
	assert.Len(t, d.Sets(), 2)
}

func TestDrawLeavesPendingOfferAlone(t *testing.T) {
	d := New()
	offerAndPick(t, d, 1, 2, 3, 1)
	d.AddSet(card(4), card(5), card(6))

	assert.False(t, d.Draw(card(9), true))
	assert.Len(t, d.Sets(), 2)
	assert.Equal(t, 1, d.CardCount())

	require.NoError(t, d.AddPickedCard(card(6)))
	last, ok := d.LastSet()
	require.True(t, ok)
	assert.Equal(t, [3]int{4, 5, 6}, last.IDs())
	assert.Equal(t, 6, d.Picks()[1].ID)
}

func TestDrawDoesNotGrowCompleteDeck(t *testing.T) {
	d := New()
	for i := 0; i < Size; i++ {
		offerAndPick(t, d, i, i+100, i+200, i)
	}
	assert.False(t, d.Draw(card(500), true))
	assert.Equal(t, Size, d.CardCount())
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	d := New()
	d.HeroClass = 4
	offerAndPick(t, d, 10, 11, 12, 11)
	d.AddSet(card(20), card(21), card(22))
	require.NoError(t, d.AddUnknownPick())
	d.AddSet(card(30), types.UnknownCard, types.UnknownCard)

	encoded := d.Encode()
	assert.Equal(t, "v1|4|11,?|10.11.12;20.21.22;30.?.?", encoded)

	got, err := Decode(cards{}, encoded)
	require.NoError(t, err)
	if diff := cmp.Diff(d, got, cmp.AllowUnexported(Deck{})); diff != "" {
		t.Errorf("decoded deck mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, encoded, got.Encode())
}

func TestEncodeDecodeNegativeIDs(t *testing.T) {
	d := New()
	d.HeroClass = -3
	offerAndPick(t, d, -5, 2, 3, -5)

	encoded := d.Encode()
	assert.Equal(t, "v1|-3|-5|-5.2.3", encoded)

	got, err := Decode(cards{}, encoded)
	require.NoError(t, err)
	if diff := cmp.Diff(d, got, cmp.AllowUnexported(Deck{})); diff != "" {
		t.Errorf("decoded deck mismatch (-want +got):\n%s", diff)
	}
}

func TestEncodeEmptyDeck(t *testing.T) {
	encoded := New().Encode()
	assert.Equal(t, "v1|-||", encoded)

	got, err := Decode(cards{}, encoded)
	require.NoError(t, err)
	if diff := cmp.Diff(New(), got, cmp.AllowUnexported(Deck{})); diff != "" {
		t.Errorf("decoded deck mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeMalformed(t *testing.T) {
	for _, s := range []string{
		"",
		"garbage",
		"v2|-||",
		"v1|x||",
		"v1|-|1|",
		"v1|-||1.2",
		"v1|-||1.2.a",
		"v1|-|01|1.2.3",
		"v1|-|-05|-5.2.3",
		"v1|+2||",
		"v1|-|1,2|1.2.3",
	} {
		t.Run(s, func(t *testing.T) {
			_, err := Decode(cards{}, s)
			assert.True(t, errors.Is(err, ErrMalformed), "got %v", err)
		})
	}
}

func TestTextRepresentation(t *testing.T) {
	d := New()
	offerAndPick(t, d, 1, 2, 3, 1)
	offerAndPick(t, d, 1, 4, 5, 1)
	offerAndPick(t, d, 6, 7, 8, 7)
	d.AddSet(card(9), card(10), card(11))
	require.NoError(t, d.AddUnknownPick())

	want := "Mage (4/30)\n2x card-1\n1x card-7\n1 missed pick(s)\n"
	assert.Equal(t, want, string(d.CreateTextRepresentation("Mage")))
	assert.Contains(t, string(New().CreateTextRepresentation("")), "Unknown class (0/30)")
}

func TestImageRepresentation(t *testing.T) {
	d := New()
	offerAndPick(t, d, 1, 2, 3, 1)

	data, err := d.CreateImageRepresentation("Mage")
	require.NoError(t, err)

	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, imageWidth, img.Bounds().Dx())
	assert.Equal(t, 2*imageMargin+2*imageLineGap, img.Bounds().Dy())
}
