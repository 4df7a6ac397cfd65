package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"

	// TaskTypeSendEmail sends a transactional email.
	TaskTypeSendEmail = "mail:send"
	// TaskTypeReceiptParse extracts expense fields from OCR'd receipt text.
	TaskTypeReceiptParse = "receipt:parse"
	// TaskTypeProspectGeocode resolves a prospect's address to coordinates.
	TaskTypeProspectGeocode = "prospect:geocode"
	// TaskTypeOverdueScan flags sent invoices past their due date.
	TaskTypeOverdueScan = "invoice:overdue_scan"
	// TaskTypeQuoteExpire expires sent quotes past their validity date.
	TaskTypeQuoteExpire = "quote:expire"
)

// SendEmailPayload describes the information required to send an email.
type SendEmailPayload struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// ReceiptParsePayload carries the OCR text of one uploaded receipt. The
// OCR step happens upstream; the worker only sees extracted text.
type ReceiptParsePayload struct {
	ReceiptRef string `json:"receipt_ref"`
	Text       string `json:"text"`
	UploadedBy int64  `json:"uploaded_by"`
}

// ProspectGeocodePayload identifies the prospect to geocode.
type ProspectGeocodePayload struct {
	ProspectID int64 `json:"prospect_id"`
}

// NewSendEmailTask constructs an Asynq task.
func NewSendEmailTask(payload SendEmailPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeSendEmail, data), nil
}

// NewReceiptParseTask constructs an Asynq task.
func NewReceiptParseTask(payload ReceiptParsePayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeReceiptParse, data), nil
}

// NewProspectGeocodeTask constructs an Asynq task.
func NewProspectGeocodeTask(payload ProspectGeocodePayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeProspectGeocode, data), nil
}

// NewOverdueScanTask constructs the cron task. It carries no payload.
func NewOverdueScanTask() *asynq.Task {
	return asynq.NewTask(TaskTypeOverdueScan, nil)
}

// NewQuoteExpireTask constructs the cron task. It carries no payload.
func NewQuoteExpireTask() *asynq.Task {
	return asynq.NewTask(TaskTypeQuoteExpire, nil)
}
