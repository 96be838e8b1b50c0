package dto

// ScenarioResponse describes a registered scenario.
type ScenarioResponse struct {
	Name        string `json:"name"`
	Variant     string `json:"variant"`
	Pattern     string `json:"pattern"`
	Description string `json:"description"`
	Counterpart string `json:"counterpart,omitempty"`
}

// RunScenarioRequest is the body of POST /scenarios/:name/run.
type RunScenarioRequest struct {
	Page      int     `json:"page"`
	Size      int     `json:"size"`
	Status    string  `json:"status"`
	IDs       []int64 `json:"ids"`
	NewStatus string  `json:"new_status"`
	// IncludeResult keeps the scenario payload in the response.
	IncludeResult bool `json:"include_result"`
}
