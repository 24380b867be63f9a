package collector

import (
	"strconv"

	"github.com/opensheets/companion/internal/model"
)

// amountJSON serializes a decimal amount with exactly two fractional
// digits, the wire format the collector expects.
type amountJSON float64

func (a amountJSON) MarshalJSON() ([]byte, error) {
	return []byte(strconv.FormatFloat(float64(a), 'f', 2, 64)), nil
}

// inboxItem is the wire representation of one captured notification.
// Optional attributes are nullable; timestamps are epoch milliseconds.
type inboxItem struct {
	ID                    string      `json:"id"`
	SourceApp             string      `json:"sourceApp"`
	SourceAppName         string      `json:"sourceAppName"`
	Title                 *string     `json:"title"`
	Text                  string      `json:"text"`
	NotificationTimestamp int64       `json:"notificationTimestamp"`
	CaptureTimestamp      int64       `json:"captureTimestamp"`
	Amount                *amountJSON `json:"amount"`
	MerchantName          *string     `json:"merchantName"`
	CardLastDigits        *string     `json:"cardLastDigits"`
	TransactionType       *string     `json:"transactionType"`
}

type inboxBatchRequest struct {
	Notifications []inboxItem `json:"notifications"`
}

type inboxResponse struct {
	Success bool    `json:"success"`
	ID      *string `json:"id"`
	Error   *string `json:"error"`
}

type inboxBatchResponse struct {
	Results []inboxItemResult `json:"results"`
}

type inboxItemResult struct {
	ID      string  `json:"id"`
	Success bool    `json:"success"`
	Error   *string `json:"error"`
}

type healthResponse struct {
	Status  string  `json:"status"`
	Name    string  `json:"name"`
	Version string  `json:"version"`
	Message *string `json:"message"`
}

type verifyTokenResponse struct {
	Valid     bool    `json:"valid"`
	TokenID   *string `json:"tokenId"`
	TokenName *string `json:"tokenName"`
	Error     *string `json:"error"`
}

type refreshTokenResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

func toInboxItem(record model.NotificationRecord) inboxItem {
	item := inboxItem{
		ID:                    record.ID,
		SourceApp:             record.SourceID,
		SourceAppName:         record.SourceDisplayName,
		Title:                 record.RawTitle,
		Text:                  record.RawText,
		NotificationTimestamp: record.NotificationTimestamp.UnixMilli(),
		CaptureTimestamp:      record.CaptureTimestamp.UnixMilli(),
		MerchantName:          record.Parsed.MerchantName,
		CardLastDigits:        record.Parsed.CardLastDigits,
	}

	if record.Parsed.Amount != nil {
		amount := amountJSON(*record.Parsed.Amount)
		item.Amount = &amount
	}
	if record.Parsed.Direction != nil {
		direction := string(*record.Parsed.Direction)
		item.TransactionType = &direction
	}

	return item
}
