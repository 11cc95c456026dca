package server

// ajaxResponse mirrors the {success, data} envelope the self-test page expects
type ajaxResponse struct {
	Success bool `json:"success"`
	Data    any  `json:"data"`
}

type messageData struct {
	Message string `json:"message"`
}

type timestampData struct {
	Time string `json:"time"`
}
