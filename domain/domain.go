package domain

type User struct {
	Id           string
	Username     string
	PasswordHash string
}

// PlayerResult is what a finished game reports for one participant.
// The storage layer folds these into the player's cumulative stats.
type PlayerResult struct {
	UserId         string
	Username       string
	Won            bool
	WasVirus       bool
	TasksCompleted int
	DataCollected  int
}

type PlayerStats struct {
	Username       string `json:"username"`
	GamesPlayed    int    `json:"gamesPlayed"`
	Wins           int    `json:"wins"`
	VirusWins      int    `json:"virusWins"`
	TasksCompleted int    `json:"tasksCompleted"`
	DataCollected  int    `json:"dataCollected"`
}
