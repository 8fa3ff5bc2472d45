package dto

import "github.com/google/uuid"

// EncodeJobMessage is the payload published to the encoding queue when a
// user requests their library to be encoded. The access token rides along
// because the catalog fetch happens on the consumer side.
type EncodeJobMessage struct {
	JobId       uuid.UUID `json:"jobId"`
	UserId      string    `json:"userId"`
	AccessToken string    `json:"accessToken"`
}

type EncodeResponse struct {
	TaskId uuid.UUID `json:"task_id"`
}

type JobResult struct {
	TracksProcessed     int `json:"tracks_processed"`
	EmbeddingsGenerated int `json:"embeddings_generated"`
}

type StatusResponse struct {
	State    string     `json:"state"`
	Progress int        `json:"progress"`
	Status   string     `json:"status"`
	Result   *JobResult `json:"result,omitempty"`
}
