package scheduler

import (
	"math/rand"

	"kaizenbot/internal/models"
)

const maxDailyQuestions = 3

// SelectQuestions picks a random non-empty subset of the user's active
// questions for one daily dispatch: between one and three of them, in
// random order. An empty pool yields an empty selection.
func SelectQuestions(pool []*models.Question) []*models.Question {
	if len(pool) == 0 {
		return nil
	}

	shuffled := make([]*models.Question, len(pool))
	copy(shuffled, pool)
	rand.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})

	upper := len(shuffled)
	if upper > maxDailyQuestions {
		upper = maxDailyQuestions
	}
	count := 1 + rand.Intn(upper)
	return shuffled[:count]
}
