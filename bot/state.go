package bot

// UserState represents the state of a user's interaction with the bot
type UserState struct {
	Stage Stage
}

// Stage represents the stage of the user's interaction with the bot
type Stage int

const (
	StageIdle Stage = iota
	// StageAwaitingQuestion means the next text message from the user
	// is a question to forward to the tutor.
	StageAwaitingQuestion
)
