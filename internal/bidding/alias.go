package bidding

import (
	"fmt"
	"math/rand/v2"
)

// An alias is the anonymous identity shown on the public bid board;
// the bidder's email never appears outside admin mail.

var aliasColors = []string{
	"Red", "Orange", "Amber", "Green", "Teal", "Blue", "Indigo", "Violet",
	"Crimson", "Golden", "Silver", "Copper",
}

var aliasAnimals = []string{
	"Fox", "Owl", "Bear", "Otter", "Heron", "Lynx", "Badger", "Raven",
	"Hare", "Moose", "Wren", "Tortoise",
}

// NewAlias returns a random color-animal display identity.
func NewAlias() string {
	return fmt.Sprintf("%s %s",
		aliasColors[rand.IntN(len(aliasColors))],
		aliasAnimals[rand.IntN(len(aliasAnimals))],
	)
}
