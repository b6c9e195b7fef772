package types

import (
	"fmt"
	"strings"
)

// Kind identifies a recognizer. The numeric values are part of the
// recognizer wire protocol and must stay stable.
type Kind uint8

const (
	DraftClassPick Kind = iota
	DraftCardPick
	DraftCardChosen
	GameClassShow
	GameCoin
	GameEnd
	GameDrawInit1
	GameDrawInit2
	GameDraw

	numKinds
)

// Result values for GameCoin and GameEnd recognitions
const (
	CoinFirst  = 0
	CoinSecond = 1

	EndVictory = 0
	EndDefeat  = 1
)

// NoCard marks an absent card id (no draw yet, debounce reset)
const NoCard = -1

var kindNames = [numKinds]string{
	DraftClassPick:  "DRAFT_CLASS_PICK",
	DraftCardPick:   "DRAFT_CARD_PICK",
	DraftCardChosen: "DRAFT_CARD_CHOSEN",
	GameClassShow:   "GAME_CLASS_SHOW",
	GameCoin:        "GAME_COIN",
	GameEnd:         "GAME_END",
	GameDrawInit1:   "GAME_DRAW_INIT_1",
	GameDrawInit2:   "GAME_DRAW_INIT_2",
	GameDraw:        "GAME_DRAW",
}

// AllKinds lists every recognizer kind in wire order
func AllKinds() []Kind {
	kinds := make([]Kind, 0, numKinds)
	for k := Kind(0); k < numKinds; k++ {
		kinds = append(kinds, k)
	}
	return kinds
}

// Valid reports whether k is a known recognizer kind
func (k Kind) Valid() bool {
	return k < numKinds
}

func (k Kind) String() string {
	if !k.Valid() {
		return fmt.Sprintf("KIND(%d)", uint8(k))
	}
	return kindNames[k]
}

// ParseKind resolves a recognizer name such as "GAME_DRAW" (case-insensitive)
func ParseKind(name string) (Kind, error) {
	for k, n := range kindNames {
		if strings.EqualFold(n, name) {
			return Kind(k), nil
		}
	}
	return 0, fmt.Errorf("unknown recognizer kind %q", name)
}

// KindSet is a set of armed recognizers
type KindSet uint32

// NewKindSet builds a set containing kinds
func NewKindSet(kinds ...Kind) KindSet {
	var s KindSet
	for _, k := range kinds {
		s.Arm(k)
	}
	return s
}

func (s KindSet) Has(k Kind) bool {
	return k.Valid() && s&(1<<k) != 0
}

func (s *KindSet) Arm(k Kind) {
	if k.Valid() {
		*s |= 1 << k
	}
}

func (s *KindSet) Disarm(k Kind) {
	if k.Valid() {
		*s &^= 1 << k
	}
}

// Union returns the set of kinds armed in any of s and others
func (s KindSet) Union(others ...KindSet) KindSet {
	for _, o := range others {
		s |= o
	}
	return s
}

// Kinds returns the armed kinds in wire order
func (s KindSet) Kinds() []Kind {
	var kinds []Kind
	for k := Kind(0); k < numKinds; k++ {
		if s.Has(k) {
			kinds = append(kinds, k)
		}
	}
	return kinds
}

func (s KindSet) String() string {
	kinds := s.Kinds()
	names := make([]string, len(kinds))
	for i, k := range kinds {
		names[i] = k.String()
	}
	return "{" + strings.Join(names, ",") + "}"
}

// Result is a single recognition produced by a recognizer for one frame.
// The meaning of Results depends on Source:
//   - DraftClassPick, DraftCardPick: three hero or card ids
//   - DraftCardChosen: picked index in the last offer [0..2]
//   - GameClassShow: player hero id, opponent hero id
//   - GameCoin: CoinFirst or CoinSecond
//   - GameEnd: EndVictory or EndDefeat
//   - GameDrawInit1, GameDrawInit2, GameDraw: card ids
type Result struct {
	Source  Kind
	Results []int
}

func (r Result) String() string {
	return fmt.Sprintf("%s%v", r.Source, r.Results)
}
