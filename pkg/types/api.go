package types

// ConvertRequest is the payload for POST /convert.
type ConvertRequest struct {
	// Hugging Face repo to convert, e.g. "mlx-community/Mistral-7B".
	// example: org/model-a
	HFPath string `json:"hf_path" example:"org/model-a"`
	// Destination repo for upload. Required when upload is true.
	// example: me/model-a-mlx
	UploadRepo string `json:"upload_repo,omitempty" example:"me/model-a-mlx"`
	// Quantization level: "none", "4bit" or "8bit". Empty means "none".
	// example: 4bit
	Quantization string `json:"quantization,omitempty" example:"4bit"`
	// If true, the tool uploads the converted model to upload_repo.
	// example: false
	Upload bool `json:"upload,omitempty" example:"false"`
}

// CheckRequest is the payload for POST /check.
type CheckRequest struct {
	// Optional interpreter path override. Empty keeps the configured one.
	// example: /opt/venvs/mlx/.venv/bin/python
	Python string `json:"python,omitempty" example:"/opt/venvs/mlx/.venv/bin/python"`
}

// SetupRequest is the payload for POST /setup.
type SetupRequest struct {
	// Directory under which the .venv is created.
	// example: /home/me/mlx
	Dir string `json:"dir" example:"/home/me/mlx"`
	// Optional base interpreter used to create the venv. Empty uses the
	// system default lookup.
	// example: /usr/bin/python3
	Python string `json:"python,omitempty" example:"/usr/bin/python3"`
}

// StatusResponse summarizes daemon state for GET /status.
type StatusResponse struct {
	// True while a conversion is in flight.
	// example: false
	Running bool `json:"running" example:"false"`
	// True while environment provisioning is in flight.
	// example: false
	SettingUp bool `json:"setting_up" example:"false"`
	// Environment status: "unchecked", "valid" or "invalid".
	// example: valid
	Environment string `json:"environment" example:"valid"`
	// Human-readable environment diagnostic.
	// example: Environment OK (Python 3.12.3)
	EnvironmentDetail string `json:"environment_detail,omitempty" example:"Environment OK (Python 3.12.3)"`
	// Interpreter currently in use; "system python3" for the default lookup.
	// example: /opt/venvs/mlx/.venv/bin/python
	Python string `json:"python" example:"/opt/venvs/mlx/.venv/bin/python"`
}

// SetupResponse reports the interpreter created by POST /setup.
type SetupResponse struct {
	// Interpreter inside the freshly created venv.
	// example: /home/me/mlx/.venv/bin/python
	Python string `json:"python" example:"/home/me/mlx/.venv/bin/python"`
}

// ConvertResponse reports how a conversion run ended.
type ConvertResponse struct {
	// True when the tool exited zero.
	// example: true
	OK bool `json:"ok" example:"true"`
	// Raw exit code of the conversion process.
	// example: 0
	ExitCode int `json:"exit_code" example:"0"`
}

// LogResponse carries the transcript of the current or last operation.
type LogResponse struct {
	// Transcript lines, oldest first.
	Lines []string `json:"lines"`
}

// InstallCommandResponse carries the copyable install command for the UI.
type InstallCommandResponse struct {
	// example: pip install mlx-lm huggingface_hub
	Command string `json:"command" example:"pip install mlx-lm huggingface_hub"`
}

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	// Error message.
	// example: upload requested but upload_repo is empty
	Error string `json:"error" example:"upload requested but upload_repo is empty"`
	// HTTP status code.
	// example: 400
	Code int `json:"code" example:"400"`
}
