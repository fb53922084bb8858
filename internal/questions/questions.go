// Package questions holds the static prompt pools for both game types.
// The content is configuration data; engines only draw from it.
package questions

import (
	"math/rand"

	"couple-games-backend/internal/models"
)

// Truth/dare categories
const (
	CategoryTruth = "truth"
	CategoryDare  = "dare"
)

var truthOrDare = []models.TruthOrDareQuestion{
	{ID: "t1", Type: CategoryTruth, Text: "Tell us the most embarrassing moment from your childhood"},
	{ID: "t2", Type: CategoryTruth, Text: "Who was your first crush?"},
	{ID: "t3", Type: CategoryTruth, Text: "What is the biggest lie you ever told your parents?"},
	{ID: "t4", Type: CategoryTruth, Text: "What do you dream about but never tell anyone?"},
	{ID: "t5", Type: CategoryTruth, Text: "What is your strangest fear or phobia?"},
	{ID: "t6", Type: CategoryTruth, Text: "What are you most ashamed of?"},
	{ID: "t7", Type: CategoryTruth, Text: "What is your worst habit?"},
	{ID: "t8", Type: CategoryTruth, Text: "What do you do when nobody is watching?"},
	{ID: "t9", Type: CategoryTruth, Text: "What secret have you kept the longest?"},
	{ID: "t10", Type: CategoryTruth, Text: "Who are you most jealous of, and why?"},
	{ID: "t11", Type: CategoryTruth, Text: "What attracts you most in other people?"},
	{ID: "t12", Type: CategoryTruth, Text: "What was your most awkward moment on a date?"},
	{ID: "t13", Type: CategoryTruth, Text: "What would you forgive a partner for, and what never?"},
	{ID: "t14", Type: CategoryTruth, Text: "What is the most romantic thing anyone has done for you?"},
	{ID: "t15", Type: CategoryTruth, Text: "How do you know when you are falling in love?"},
	{ID: "d1", Type: CategoryDare, Text: "Sing the chorus of your favorite song out loud"},
	{ID: "d2", Type: CategoryDare, Text: "Do your best impression of your partner"},
	{ID: "d3", Type: CategoryDare, Text: "Dance for thirty seconds with no music"},
	{ID: "d4", Type: CategoryDare, Text: "Speak in an accent until your next turn"},
	{ID: "d5", Type: CategoryDare, Text: "Show the last photo you took on your phone"},
	{ID: "d6", Type: CategoryDare, Text: "Tell a joke, and keep telling jokes until your partner laughs"},
	{ID: "d7", Type: CategoryDare, Text: "Do ten push-ups right now"},
	{ID: "d8", Type: CategoryDare, Text: "Let your partner post anything they want as your status"},
	{ID: "d9", Type: CategoryDare, Text: "Compliment your partner in the most dramatic way possible"},
	{ID: "d10", Type: CategoryDare, Text: "Eat a spoonful of a condiment of your partner's choosing"},
	{ID: "d11", Type: CategoryDare, Text: "Talk in rhymes for the next two minutes"},
	{ID: "d12", Type: CategoryDare, Text: "Draw a portrait of your partner in one minute and show it"},
	{ID: "d13", Type: CategoryDare, Text: "Call a friend and tell them a made-up story with a straight face"},
	{ID: "d14", Type: CategoryDare, Text: "Hold a plank until your next turn starts"},
	{ID: "d15", Type: CategoryDare, Text: "Reenact your first meeting with your partner"},
}

var sync = []models.SyncQuestion{
	{ID: "s1", Text: "Your favorite food?", Options: []string{"Burger", "Sushi", "Pasta", "Steak"}},
	{ID: "s2", Text: "The perfect vacation?", Options: []string{"Beach", "Mountains", "City", "Home"}},
	{ID: "s3", Text: "Favorite movie genre?", Options: []string{"Comedy", "Drama", "Action", "Horror"}},
	{ID: "s4", Text: "Preferred time of day?", Options: []string{"Morning", "Afternoon", "Evening", "Night"}},
	{ID: "s5", Text: "Favorite season?", Options: []string{"Spring", "Summer", "Autumn", "Winter"}},
}

// DrawTruthOrDare returns a uniformly random question of the given category.
// Returns nil for an unknown category.
func DrawTruthOrDare(category string) *models.TruthOrDareQuestion {
	pool := make([]models.TruthOrDareQuestion, 0, len(truthOrDare))
	for _, q := range truthOrDare {
		if q.Type == category {
			pool = append(pool, q)
		}
	}
	if len(pool) == 0 {
		return nil
	}
	q := pool[rand.Intn(len(pool))]
	return &q
}

// SyncCount returns the number of questions in the fixed sync pool
func SyncCount() int {
	return len(sync)
}

// SyncAt returns the sync question at the given index, or nil past the end
func SyncAt(index int) *models.SyncQuestion {
	if index < 0 || index >= len(sync) {
		return nil
	}
	q := sync[index]
	return &q
}

// SyncByID finds a sync question by its id, or nil if unknown
func SyncByID(id string) *models.SyncQuestion {
	for _, q := range sync {
		if q.ID == id {
			out := q
			return &out
		}
	}
	return nil
}
