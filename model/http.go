package model

type SourceRequestBody struct {
	Src string `json:"src"`
}

type TempoRequestBody struct {
	BPM float64 `json:"bpm"`
}

type PlayerResponse struct {
	State          string  `json:"state"`
	Src            string  `json:"src"`
	BPM            float64 `json:"bpm"`
	PlayPauseLabel string  `json:"play_pause_label"`
	Entries        int     `json:"entries"`
	Removed        int     `json:"removed"`
	Error          string  `json:"error,omitempty"`
}

type NormalizeResponse struct {
	Src      string `json:"src"`
	Input    int    `json:"input"`
	Retained int    `json:"retained"`
	Removed  int    `json:"removed"`
}

type ErrorResponse struct {
	Error string `json:"detail"`
}
