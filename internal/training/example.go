package training

import types "github.com/yungbote/wayfarer-backend/internal/domain"

// Example is one (input, response, score) unit handed to a trainer.
type Example struct {
	ID           uint64  `json:"id"`
	InputText    string  `json:"input"`
	ResponseText string  `json:"response"`
	Score        float64 `json:"score"`
}

func exampleFromRecord(r *types.FeedbackRecord) Example {
	return Example{
		ID:           r.ID,
		InputText:    r.UserInput,
		ResponseText: r.Response,
		Score:        r.FeedbackScore,
	}
}

// IDs returns the example ids in slice order.
func IDs(examples []Example) []uint64 {
	out := make([]uint64, 0, len(examples))
	for _, ex := range examples {
		out = append(out, ex.ID)
	}
	return out
}
