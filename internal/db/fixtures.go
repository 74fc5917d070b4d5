package db

import "github.com/noticeboard/board-backend/internal/db/entities"

// PostFixtures provides sample posts for seeding a development board
func PostFixtures() []entities.Post {
	return []entities.Post{
		{
			Title:   "Welcome to the board",
			Content: "Introduce yourself and say hello to everyone.",
			Author:  "admin",
		},
		{
			Title:   "Selling an iPad, barely used",
			Content: "Comes with the original box and charger. Pickup only.",
			Author:  "jane",
		},
		{
			Title:   "Lost cat near the park",
			Content: "Grey tabby, answers to Miso. Please reply if you see her.",
			Author:  "bob",
		},
		{
			Title:   "Weekend hiking group",
			Content: "We meet every Saturday morning. Beginners welcome.",
			Author:  "alice",
		},
	}
}
