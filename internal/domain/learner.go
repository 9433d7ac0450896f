package domain

import "time"

type Learner struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
}

type Stat struct {
	Correct int `json:"correct"`
	Wrong   int `json:"wrong"`
}

type StatRow struct {
	ID       string  `json:"id"`
	Word     string  `json:"word"`
	Reading  string  `json:"reading"`
	Correct  int     `json:"correct"`
	Wrong    int     `json:"wrong"`
	Total    int     `json:"total"`
	Accuracy float64 `json:"accuracy"`
}

type StockCounts struct {
	Correct int `json:"correct"`
	Wrong   int `json:"wrong"`
}

type FriendView struct {
	Level    int     `json:"level"`
	Total    int64   `json:"total"`
	Cur      int64   `json:"cur"`
	Need     int64   `json:"need"`
	Progress float64 `json:"progress"`
}

type VoiceSettings struct {
	QuestionCount int  `json:"question_count"`
	AutoAdvance   bool `json:"auto_advance"`
	AutoDelayMs   int  `json:"auto_delay_ms"`
}

// Storage keys, one set per learner.
const (
	KeyCorrectIDs    = "kogoto.correctIds"
	KeyWrongIDs      = "kogoto.wrongIds"
	KeyStats         = "kogoto.stats"
	KeyVoiceSettings = "kogoto.voiceSettings"
	KeyPrivacyAck    = "kogoto.privacyAck"
	KeyWallet        = "kogoto.wallet"
	KeyFriendPoints  = "kogoto.friendPoints"
	KeyLearner       = "kogoto.learner"
)

// LearnerKey namespaces a storage key by learner.
func LearnerKey(learnerID, name string) string {
	return "learner:" + learnerID + ":" + name
}
