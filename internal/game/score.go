package game

import "math"

// letterPoints mirrors the classic letter-rarity table: common letters are
// worth 1, rare letters up to 10.
var letterPoints = map[rune]int{
	'a': 1, 'b': 3, 'c': 3, 'd': 2, 'e': 1, 'f': 4, 'g': 2, 'h': 4,
	'i': 1, 'j': 8, 'k': 5, 'l': 1, 'm': 3, 'n': 1, 'o': 1, 'p': 3,
	'q': 10, 'r': 1, 's': 1, 't': 1, 'u': 1, 'v': 4, 'w': 4, 'x': 8,
	'y': 4, 'z': 10,
}

// lengthBonusThreshold is the word length above which each extra letter
// earns a bonus.
const lengthBonusThreshold = 5

// Score computes the points awarded for a submitted word: letter rarity
// plus a bonus for length, minus a penalty for slow answers. The word must
// already be lowercased.
func Score(word string, duration float64) float64 {
	points := 0
	for _, r := range word {
		points += letterPoints[r]
	}
	if extra := len([]rune(word)) - lengthBonusThreshold; extra > 0 {
		points += 3 * extra
	}
	return float64(points) - math.Floor(duration/10)
}

// TimeoutScore computes the penalty charged when a turn expires with no word.
func TimeoutScore(duration float64) float64 {
	return -0.25 * duration
}
