package domain

// Blendshape is one named facial blendshape coefficient as reported by the
// client's face landmarker.
type Blendshape struct {
	Name  string  `json:"name"`
	Score float64 `json:"score"`
}

type MoodScores struct {
	Smile          float64 `json:"smile"`
	Frown          float64 `json:"frown"`
	BrowDown       float64 `json:"brow_down"`
	EyeSquint      float64 `json:"eye_squint"`
	MouthPress     float64 `json:"mouth_press"`
	NoseSneer      float64 `json:"nose_sneer"`
	JawOpen        float64 `json:"jaw_open"`
	MouthLowerDown float64 `json:"mouth_lower_down"`
	MouthUpperUp   float64 `json:"mouth_upper_up"`
}

type MoodGuess string

const (
	MoodPositive MoodGuess = "pos"
	MoodNegative MoodGuess = "neg"
	MoodWait     MoodGuess = "wait"
)

type MoodReading struct {
	Scores    MoodScores `json:"scores"`
	Positive  float64    `json:"positive"`
	Negative  float64    `json:"negative"`
	Mood      float64    `json:"mood"`
	Guess     MoodGuess  `json:"guess"`
	Confirmed bool       `json:"confirmed"`
}
