package extraction

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/arda-labs/reorder-cli/internal/model"
	"github.com/arda-labs/reorder-cli/pkg/mailbox"
)

// DefaultModel is the model used for order extraction when the config does
// not override it. Haiku is sufficient for structured extraction and keeps
// per-email cost low.
const DefaultModel = "claude-haiku-4-5-20251001"

const extractMaxTokens = 2048

// maxBodyChars caps how much of the email body goes into the prompt. Order
// confirmations front-load the line items, so truncation is safe.
const maxBodyChars = 12000

const systemPrompt = `You are a purchasing analyst extracting structured purchase order data from supplier emails. Return valid JSON only. If the email is not an order confirmation, receipt, or invoice, return {"is_order": false}.`

const extractPrompt = `Extract the purchase order from this email.

From: %s
Subject: %s
Date: %s

Body:
%s

Return a valid JSON object:
{
  "is_order": <true if this email confirms a purchase, false otherwise>,
  "supplier": "<supplier name>",
  "order_date": "<YYYY-MM-DD, the date the order was placed>",
  "total_amount": <order total as a number, or null if not shown>,
  "confidence": <0.0-1.0>,
  "items": [
    {
      "name": "<item name as written>",
      "normalized_name": "<short canonical name, lowercase>",
      "quantity": <number>,
      "unit": "<each, box, case, ...>",
      "unit_price": <number or null>,
      "sku": "<SKU if shown, else omit>"
    }
  ]
}`

// Extractor turns one fetched email into a structured order, or reports
// that the email is not an order.
type Extractor interface {
	// Extract returns the order found in the email, or (nil, nil) when the
	// email is not a purchase order.
	Extract(ctx context.Context, email *mailbox.Email) (*model.ExtractedOrder, error)
}

// Config controls the extraction model parameters.
type Config struct {
	Model     string
	MaxTokens int64
}

type claudeExtractor struct {
	client Client
	cfg    Config
}

// NewExtractor creates a Claude-backed extractor.
func NewExtractor(client Client, cfg Config) Extractor {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = extractMaxTokens
	}
	return &claudeExtractor{client: client, cfg: cfg}
}

// wireOrder matches the JSON schema the prompt asks for.
type wireOrder struct {
	IsOrder     bool       `json:"is_order"`
	Supplier    string     `json:"supplier"`
	OrderDate   string     `json:"order_date"`
	TotalAmount *float64   `json:"total_amount"`
	Confidence  float64    `json:"confidence"`
	Items       []wireItem `json:"items"`
}

type wireItem struct {
	Name           string   `json:"name"`
	NormalizedName string   `json:"normalized_name"`
	Quantity       float64  `json:"quantity"`
	Unit           string   `json:"unit"`
	UnitPrice      *float64 `json:"unit_price"`
	SKU            string   `json:"sku"`
}

func (e *claudeExtractor) Extract(ctx context.Context, email *mailbox.Email) (*model.ExtractedOrder, error) {
	body := email.Body
	if body == "" {
		body = email.Snippet
	}
	if len(body) > maxBodyChars {
		body = body[:maxBodyChars]
	}

	prompt := fmt.Sprintf(extractPrompt,
		email.From,
		email.Subject,
		email.Date.Format("2006-01-02"),
		body,
	)

	resp, err := e.client.CreateMessage(ctx, MessageRequest{
		Model:     e.cfg.Model,
		MaxTokens: e.cfg.MaxTokens,
		System:    systemPrompt,
		Messages:  []Message{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return nil, eris.Wrapf(err, "extract email %s", email.ID)
	}
	resp.Usage.LogUsage(e.cfg.Model, email.ID)

	var wire wireOrder
	if err := json.Unmarshal([]byte(cleanJSON(resp.Text)), &wire); err != nil {
		return nil, eris.Wrapf(err, "parse extraction response for email %s", email.ID)
	}

	if !wire.IsOrder {
		zap.L().Debug("email is not an order", zap.String("email_id", email.ID))
		return nil, nil
	}

	orderDate, err := time.Parse("2006-01-02", wire.OrderDate)
	if err != nil {
		// Fall back to the email's own date rather than losing the order.
		zap.L().Warn("unparseable order date, using email date",
			zap.String("email_id", email.ID),
			zap.String("order_date", wire.OrderDate),
		)
		orderDate = email.Date
	}

	order := &model.ExtractedOrder{
		ID:              uuid.NewString(),
		OriginalEmailID: email.ID,
		Supplier:        strings.TrimSpace(wire.Supplier),
		OrderDate:       orderDate,
		TotalAmount:     wire.TotalAmount,
		Confidence:      wire.Confidence,
		Items:           make([]model.OrderItem, 0, len(wire.Items)),
	}
	for _, it := range wire.Items {
		if strings.TrimSpace(it.Name) == "" || it.Quantity <= 0 {
			continue
		}
		order.Items = append(order.Items, model.OrderItem{
			Name:           strings.TrimSpace(it.Name),
			NormalizedName: strings.ToLower(strings.TrimSpace(it.NormalizedName)),
			Quantity:       it.Quantity,
			Unit:           strings.TrimSpace(it.Unit),
			UnitPrice:      it.UnitPrice,
			SKU:            strings.TrimSpace(it.SKU),
		})
	}

	if len(order.Items) == 0 {
		zap.L().Debug("order email with no usable line items", zap.String("email_id", email.ID))
		return nil, nil
	}

	return order, nil
}

// cleanJSON strips markdown fences and surrounding prose from a model
// response, leaving the outermost JSON object.
func cleanJSON(text string) string {
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "```json") {
		text = strings.TrimPrefix(text, "```json")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	} else if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		text = text[start : end+1]
	}

	return strings.TrimSpace(text)
}
