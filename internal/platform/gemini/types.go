package gemini

// promptData holds the data passed to the prompt template.
type promptData struct {
	Topic         string
	SkillLevel    string
	WeeklyHours   int
	LearningStyle string
	Overrides     string
}

// planSchema defines the JSON structure the model is instructed to
// produce: an ordered list of week-sized modules, each with tasks.
type planSchema struct {
	Modules []moduleSchema `json:"modules"`
}

// moduleSchema represents one module in the model response.
type moduleSchema struct {
	Week        int          `json:"week"`
	Title       string       `json:"title"`
	Description string       `json:"description,omitempty"`
	Tasks       []taskSchema `json:"tasks"`
}

// taskSchema represents one task in the model response.
type taskSchema struct {
	Title            string `json:"title"`
	Description      string `json:"description,omitempty"`
	EstimatedMinutes int    `json:"estimated_minutes"`
}
