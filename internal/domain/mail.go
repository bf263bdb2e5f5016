package domain

const (
	MailTypeCreateUser  = "create_user"
	MailTypeRunFinished = "run_finished"
	MailTypeRunFailed   = "run_failed"
)

type MailMessage struct {
	Type string `json:"type"`
	To   string `json:"to"`
	Data any    `json:"data"`
}

type CreateUserMailData struct {
	FullName string `json:"fullName"`
	Username string `json:"username"`
	Password string `json:"password"`
}

type RunFinishedMailData struct {
	FullName    string  `json:"fullName"`
	RunID       int64   `json:"runID"`
	DatasetName string  `json:"datasetName"`
	BestFitness float64 `json:"bestFitness"`
	Generations int     `json:"generations"`
}

type RunFailedMailData struct {
	FullName    string `json:"fullName"`
	RunID       int64  `json:"runID"`
	DatasetName string `json:"datasetName"`
	Error       string `json:"error"`
}
