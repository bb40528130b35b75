package chasers

import "time"

type createRequest struct {
	Task              string `json:"task"`
	Name              string `json:"name"`
	Documents         string `json:"documents"`
	Who               string `json:"who"`
	Urgency           string `json:"urgency"`
	ContactEmail      string `json:"contactEmail"`
	ContactPhone      string `json:"contactPhone"`
	ChannelPreference string `json:"channelPreference"`
}

func (r createRequest) input() CreateInput {
	task := r.Task
	if task == "" {
		task = r.Name
	}
	return CreateInput{
		Task:              task,
		Documents:         r.Documents,
		Who:               r.Who,
		Urgency:           r.Urgency,
		ContactEmail:      r.ContactEmail,
		ContactPhone:      r.ContactPhone,
		ChannelPreference: r.ChannelPreference,
	}
}

type statusRequest struct {
	Status string `json:"status"`
}

type webhookRequest struct {
	Type          string     `json:"type"`
	ChaserID      string     `json:"chaserId"`
	AttemptNumber int        `json:"attemptNumber"`
	MessageID     string     `json:"messageId"`
	Timestamp     *time.Time `json:"timestamp"`
}

type attemptDTO struct {
	ID                string     `json:"id"`
	AttemptNumber     int        `json:"attemptNumber"`
	Medium            string     `json:"medium"`
	ScheduledFor      time.Time  `json:"scheduledFor"`
	Status            string     `json:"status"`
	Subject           string     `json:"subject,omitempty"`
	Content           string     `json:"content,omitempty"`
	Template          string     `json:"template"`
	SentAt            *time.Time `json:"sentAt"`
	DeliveredAt       *time.Time `json:"deliveredAt"`
	ResponseReceived  bool       `json:"responseReceived"`
	ProviderMessageID string     `json:"providerMessageId,omitempty"`
	ProviderThreadID  string     `json:"providerThreadId,omitempty"`
	Metadata          Metadata   `json:"metadata"`
}

type chaserDTO struct {
	ID                 string       `json:"id"`
	Task               string       `json:"task"`
	Documents          string       `json:"documents"`
	Who                string       `json:"who"`
	Urgency            string       `json:"urgency"`
	ChannelPreference  string       `json:"channelPreference"`
	ContactName        string       `json:"contactName"`
	ContactEmail       string       `json:"contactEmail,omitempty"`
	ContactPhone       string       `json:"contactPhone,omitempty"`
	CustomerID         string       `json:"customerId,omitempty"`
	Status             string       `json:"status"`
	CurrentAttempt     int          `json:"currentAttempt"`
	MaxAttempts        int          `json:"maxAttempts"`
	NextOutreachAt     *time.Time   `json:"nextOutreachAt"`
	CompletedAt        *time.Time   `json:"completedAt"`
	ResponseReceivedAt *time.Time   `json:"responseReceivedAt"`
	CreatedAt          time.Time    `json:"createdAt"`
	UpdatedAt          time.Time    `json:"updatedAt"`
	Schedule           []attemptDTO `json:"schedule"`
}

func toAttemptDTO(a Attempt) attemptDTO {
	return attemptDTO{
		ID:                a.ID,
		AttemptNumber:     a.Number,
		Medium:            a.Channel,
		ScheduledFor:      a.ScheduledFor,
		Status:            a.Status,
		Subject:           a.Subject,
		Content:           a.Content,
		Template:          a.TemplateID,
		SentAt:            a.SentAt,
		DeliveredAt:       a.DeliveredAt,
		ResponseReceived:  a.ResponseReceived,
		ProviderMessageID: a.ProviderMessageID,
		ProviderThreadID:  a.ProviderThreadID,
		Metadata:          a.Metadata,
	}
}

func toChaserDTO(c Case) chaserDTO {
	out := chaserDTO{
		ID:                 c.ID,
		Task:               c.Task,
		Documents:          c.Documents,
		Who:                c.Who,
		Urgency:            c.Urgency,
		ChannelPreference:  c.ChannelPreference,
		ContactName:        c.ContactName,
		ContactEmail:       c.ContactEmail,
		ContactPhone:       c.ContactPhone,
		CustomerID:         c.CustomerID,
		Status:             c.Status,
		CurrentAttempt:     c.CurrentAttempt,
		MaxAttempts:        c.MaxAttempts,
		NextOutreachAt:     c.NextOutreachAt,
		CompletedAt:        c.CompletedAt,
		ResponseReceivedAt: c.ResponseReceivedAt,
		CreatedAt:          c.CreatedAt,
		UpdatedAt:          c.UpdatedAt,
		Schedule:           make([]attemptDTO, 0, len(c.Attempts)),
	}
	for _, a := range c.Attempts {
		out.Schedule = append(out.Schedule, toAttemptDTO(a))
	}
	return out
}
