package documents

import "time"

// ItemResponse is the outward-facing representation of a document item.
type ItemResponse struct {
	ID          string     `json:"id"`
	ChaserID    string     `json:"chaserId"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	Status      string     `json:"status"`
	Order       int        `json:"order"`
	Notes       *string    `json:"notes"`
	ReceivedAt  *time.Time `json:"receivedAt"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

type updateRequest struct {
	Status *string `json:"status"`
	Notes  *string `json:"notes"`
}

func toResponse(it Item) ItemResponse {
	out := ItemResponse{
		ID:          it.ID,
		ChaserID:    it.CaseID,
		Name:        it.Name,
		Description: it.Description,
		Status:      it.Status,
		Order:       it.Order,
		ReceivedAt:  it.ReceivedAt,
		CreatedAt:   it.CreatedAt,
		UpdatedAt:   it.UpdatedAt,
	}
	if it.Notes != "" {
		notes := it.Notes
		out.Notes = &notes
	}
	return out
}
