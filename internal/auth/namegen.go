package auth

import (
	"fmt"
	"math/rand"
)

// Word lists for generated display usernames, e.g. "quietbadger4821".

var adjectives = []string{
	"amber", "ancient", "bold", "brave", "bright", "calm", "clever", "cosmic",
	"crimson", "curious", "dusty", "eager", "fierce", "gentle", "golden",
	"hidden", "humble", "icy", "jolly", "keen", "lively", "lucky", "mellow",
	"misty", "noble", "patient", "proud", "quiet", "rapid", "rustic", "silent",
	"silver", "sleepy", "solar", "steady", "swift", "vivid", "wandering",
	"wild", "witty",
}

var nouns = []string{
	"badger", "beacon", "breeze", "brook", "canyon", "cedar", "comet",
	"condor", "cricket", "dune", "ember", "falcon", "fjord", "glacier",
	"harbor", "heron", "lantern", "lynx", "meadow", "meteor", "otter",
	"pebble", "pine", "prairie", "raven", "reef", "ridge", "river", "sparrow",
	"summit", "thicket", "tide", "tundra", "walrus", "willow", "wolf",
}

// RandomUsername draws an adjective-noun-number display name. Uniqueness is
// enforced by the store, not here; callers retry on conflict.
func RandomUsername() string {
	return fmt.Sprintf("%s%s%d",
		adjectives[rand.Intn(len(adjectives))],
		nouns[rand.Intn(len(nouns))],
		rand.Intn(10000),
	)
}
