package model

// Chunk is one retrieved piece of CV content with its source label and
// similarity score.
type Chunk struct {
	Label string  `json:"label"`
	Text  string  `json:"text"`
	Index int     `json:"index"`
	Score float64 `json:"score"`
}

// RetrievalResult is the ranked output of a retrieval query. Ephemeral:
// computed per query and never persisted beyond the message it produced.
type RetrievalResult struct {
	Chunks     []Chunk `json:"chunks"`
	Confidence float64 `json:"confidence"`
}

// Labels returns the source labels of the retrieved chunks, in rank order.
func (r *RetrievalResult) Labels() []string {
	labels := make([]string, 0, len(r.Chunks))
	for _, c := range r.Chunks {
		labels = append(labels, c.Label)
	}
	return labels
}
