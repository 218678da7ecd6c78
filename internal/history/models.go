package history

import "time"

// Launch is one recorded invocation of the CLI against a session.
type Launch struct {
	ID          string
	SessionID   string
	Project     string
	FirstPrompt string
	Model       string
	CreatedAt   time.Time
	LastUsedAt  time.Time
}

// launchModel maps a launches table row, with Unix timestamps for time values.
type launchModel struct {
	ID          string
	SessionID   string
	Project     string
	FirstPrompt string
	Model       string
	CreatedAt   int64
	LastUsedAt  int64
}

func toLaunchModel(l *Launch) *launchModel {
	return &launchModel{
		ID:          l.ID,
		SessionID:   l.SessionID,
		Project:     l.Project,
		FirstPrompt: l.FirstPrompt,
		Model:       l.Model,
		CreatedAt:   l.CreatedAt.Unix(),
		LastUsedAt:  l.LastUsedAt.Unix(),
	}
}

func (m *launchModel) toLaunch() *Launch {
	return &Launch{
		ID:          m.ID,
		SessionID:   m.SessionID,
		Project:     m.Project,
		FirstPrompt: m.FirstPrompt,
		Model:       m.Model,
		CreatedAt:   time.Unix(m.CreatedAt, 0),
		LastUsedAt:  time.Unix(m.LastUsedAt, 0),
	}
}
