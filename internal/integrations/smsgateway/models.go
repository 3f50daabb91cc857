package smsgateway

// Message запрос на отправку SMS
type Message struct {
	To   string `json:"to"`
	From string `json:"from"`
	Text string `json:"text"`
}

// SendResponse ответ шлюза
type SendResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// ErrorResponse модель ошибки от шлюза
type ErrorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}
