package models

// Exercise is one row of the exercise catalog served by the row store.
type Exercise struct {
	ID           int    `json:"id"`
	MuscleGroup  string `json:"muscle_group"`
	Gender       string `json:"gender"`
	ExerciseName string `json:"exercise_name"`
	ExerciseURL  string `json:"exercise_url"`
	Difficulty   string `json:"difficulty"`
}
