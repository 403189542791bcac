package request

type StartPublish struct {
	CommitMessage string `json:"commit_message" validate:"omitempty,max=500"`
}
