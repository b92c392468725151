package parser

// Word lists driving the heuristic parser. Keys are lowercase.

var emotions = set(
	"afraid", "angry", "anxious", "ashamed", "bored", "calm", "cheerful",
	"confident", "confused", "content", "curious", "depressed", "desperate",
	"determined", "disappointed", "excited", "frightened", "frustrated",
	"grateful", "happy", "hopeful", "jealous", "joyful", "lonely", "nervous",
	"proud", "relaxed", "relieved", "sad", "scared", "surprised", "tense",
	"terrified", "upset", "worried",
)

// emotionNouns normalizes nouns like "in fear" to adjectives.
var emotionNouns = map[string]string{
	"fear": "afraid", "joy": "joyful", "anger": "angry", "sadness": "sad",
	"panic": "terrified", "hope": "hopeful", "anxiety": "anxious",
}

var physicalAdjectives = set(
	"big", "bright", "broken", "clean", "cold", "crowded", "damp", "dark",
	"dim", "dirty", "dry", "empty", "frozen", "heavy", "hot", "huge",
	"hungry", "injured", "large", "light", "loud", "muddy", "old", "quiet",
	"sick", "silent", "slippery", "small", "tall", "thirsty", "tiny",
	"tired", "warm", "weak", "wet",
)

// weather maps weather words to a canonical condition.
var weather = map[string]string{
	"rain": "rain", "raining": "rain", "rainy": "rain", "rains": "rain",
	"storm": "storm", "stormy": "storm", "thunder": "storm",
	"snow": "snow", "snowing": "snow", "snowy": "snow", "snows": "snow",
	"fog": "fog", "foggy": "fog", "mist": "fog", "misty": "fog",
	"wind": "wind", "windy": "wind",
	"sun": "sun", "sunny": "sun", "cloudy": "cloudy",
}

var timeWords = set(
	"dawn", "morning", "noon", "afternoon", "evening", "dusk", "night",
	"midnight", "today", "tonight", "tomorrow", "yesterday",
	"spring", "summer", "autumn", "winter",
)

// nounTypes gives an entity type to common nouns that introduce entities.
var nounTypes = map[string]string{
	// places
	"beach": "Location", "bridge": "Location", "castle": "Location",
	"cave": "Location", "city": "Location", "desert": "Location",
	"field": "Location", "forest": "Location", "garden": "Location",
	"hill": "Location", "hospital": "Location", "house": "Location",
	"island": "Location", "kitchen": "Location", "lake": "Location",
	"library": "Location", "market": "Location", "meadow": "Location",
	"mountain": "Location", "ocean": "Location", "office": "Location",
	"park": "Location", "river": "Location", "road": "Location",
	"room": "Location", "school": "Location", "sea": "Location",
	"shop": "Location", "station": "Location", "street": "Location",
	"swamp": "Location", "town": "Location", "village": "Location",
	"woods": "Location",
	// people
	"boy": "Person", "child": "Person", "doctor": "Person",
	"friend": "Person", "girl": "Person", "guard": "Person",
	"king": "Person", "man": "Person", "queen": "Person",
	"soldier": "Person", "stranger": "Person", "teacher": "Person",
	"woman": "Person",
	// animals
	"bear": "Animal", "bird": "Animal", "cat": "Animal", "dog": "Animal",
	"horse": "Animal", "wolf": "Animal",
}

// movementVerbs place the subject somewhere when followed by a spatial
// preposition and a place.
var movementVerbs = set(
	"walk", "walks", "walked", "walking", "run", "runs", "ran", "running",
	"go", "goes", "went", "going", "enter", "enters", "entered",
	"head", "heads", "headed", "wander", "wanders", "wandered",
	"travel", "travels", "traveled", "arrive", "arrives", "arrived",
	"move", "moves", "moved", "step", "steps", "stepped",
	"drive", "drives", "drove", "climb", "climbs", "climbed",
	"is", "was", "are", "stands", "stood", "sits", "sat", "waits", "waited",
	"lives", "lived", "stays", "stayed",
)

var spatialPrepositions = set(
	"into", "in", "to", "at", "toward", "towards", "through", "across",
	"inside", "onto", "on", "near", "by",
)

// copulas link a subject to a state ("is", "feels", ...).
var copulas = set(
	"is", "was", "are", "were", "feels", "felt", "feel", "feeling",
	"seems", "seemed", "looks", "looked", "becomes", "became", "gets",
	"got", "grows", "grew", "remains", "remained", "stays",
)

// socialVerbs map inflected forms to a relationship type.
var socialVerbs = map[string]string{
	"meet": "MEETS", "meets": "MEETS", "met": "MEETS",
	"see": "SEES", "sees": "SEES", "saw": "SEES",
	"know": "KNOWS", "knows": "KNOWS", "knew": "KNOWS",
	"love": "LOVES", "loves": "LOVES", "loved": "LOVES",
	"hate": "HATES", "hates": "HATES", "hated": "HATES",
	"help": "HELPS", "helps": "HELPS", "helped": "HELPS",
	"follow": "FOLLOWS", "follows": "FOLLOWS", "followed": "FOLLOWS",
	"chase": "CHASES", "chases": "CHASES", "chased": "CHASES",
	"fear": "FEARS", "fears": "FEARS", "feared": "FEARS",
	"trust": "TRUSTS", "trusts": "TRUSTS", "trusted": "TRUSTS",
	"visit": "VISITS", "visits": "VISITS", "visited": "VISITS",
	"greet": "GREETS", "greets": "GREETS", "greeted": "GREETS",
	"avoid": "AVOIDS", "avoids": "AVOIDS", "avoided": "AVOIDS",
}

var possessionVerbs = set("has", "have", "had", "holds", "held", "carries", "carried", "owns", "owned")

var numberWords = map[string]float64{
	"no": 0, "one": 1, "two": 2, "three": 3, "four": 4, "five": 5,
	"six": 6, "seven": 7, "eight": 8, "nine": 9, "ten": 10,
	"a": 1, "an": 1, "some": 3, "several": 3, "many": 10,
}

var articles = set("a", "an", "the", "some", "this", "that", "his", "her", "their", "its")

var intensifiers = set("very", "so", "really", "quite", "extremely", "rather", "a", "bit", "little", "too", "more", "increasingly")

// functionWords can never start a proper noun even when capitalized.
var functionWords = set(
	"a", "an", "the", "and", "but", "or", "then", "when", "while", "after",
	"before", "as", "at", "in", "on", "into", "to", "with", "from", "of",
	"suddenly", "later", "meanwhile", "there", "here", "this", "that",
	"i", "we", "you", "one", "someone", "everyone", "nobody", "it",
	"he", "she", "they", "his", "her", "their", "its", "him", "them",
	"soon", "now", "finally", "still", "yet", "once", "if", "because",
)

func set(words ...string) map[string]bool {
	m := make(map[string]bool, len(words))
	for _, w := range words {
		m[w] = true
	}
	return m
}

// known reports whether word belongs to any lexicon, which disqualifies
// it from being read as a proper noun.
func known(word string) bool {
	if emotions[word] || physicalAdjectives[word] || timeWords[word] ||
		movementVerbs[word] || copulas[word] || possessionVerbs[word] ||
		functionWords[word] || articles[word] {
		return true
	}
	if _, ok := weather[word]; ok {
		return true
	}
	if _, ok := socialVerbs[word]; ok {
		return true
	}
	if _, ok := nounTypes[word]; ok {
		return true
	}
	_, ok := emotionNouns[word]
	return ok
}
