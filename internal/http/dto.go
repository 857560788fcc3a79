package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"pocket/internal/core"
	"pocket/internal/services"
)

const maxBodyBytes = 1 << 20

var errBadJSON = errors.New("request body must be a JSON object")

// amount accepts a JSON number or string and keeps the raw text for core.ParseAmount.
type amount string

func (a *amount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*a = amount(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("amount must be a number or string")
	}
	*a = amount(n.String())
	return nil
}

type (
	createTransactionRequest struct {
		Type     string `json:"type" validate:"required,oneof=income expense transfer"`
		Amount   amount `json:"amount" validate:"required"`
		Account  string `json:"account" validate:"required_unless=Type transfer,max=64"`
		From     string `json:"from" validate:"required_if=Type transfer,max=64"`
		To       string `json:"to" validate:"required_if=Type transfer,max=64"`
		Category string `json:"category" validate:"max=64"`
		Note     string `json:"note" validate:"max=500"`
		Date     string `json:"date" validate:"omitempty,datetime=2006-01-02"`
	}

	accountRequest struct {
		Name string `json:"name" validate:"required,notblank,max=64"`
	}

	moveRequest struct {
		Direction string `json:"direction" validate:"required,oneof=up down"`
	}

	ruleRequest struct {
		Keyword  string `json:"keyword" validate:"required,notblank,max=64"`
		Category string `json:"category" validate:"max=64"`
	}

	summaryQuery struct {
		Month   string `validate:"required,yearmonth"`
		Account string `validate:"max=64"`
	}
)

func (req createTransactionRequest) input() core.Input {
	return core.Input{
		Kind:     core.Kind(req.Type),
		Amount:   string(req.Amount),
		Account:  req.Account,
		From:     req.From,
		To:       req.To,
		Category: req.Category,
		Note:     req.Note,
		Date:     req.Date,
	}
}

type (
	transactionsResponse struct {
		Transactions []core.Record   `json:"transactions"`
		Source       services.Source `json:"source"`
		Warning      string          `json:"warning,omitempty"`
	}

	writeResponse struct {
		Transaction *core.Record    `json:"transaction,omitempty"`
		Source      services.Source `json:"source"`
		Warning     string          `json:"warning,omitempty"`
	}

	summaryResponse struct {
		core.Summary
		Source  services.Source `json:"source"`
		Warning string          `json:"warning,omitempty"`
	}

	accountsResponse struct {
		Accounts []core.Account  `json:"accounts"`
		Source   services.Source `json:"source"`
		Warning  string          `json:"warning,omitempty"`
	}

	rulesResponse struct {
		Rules []core.CategoryRule `json:"rules"`
	}
)

func records(txs []core.Transaction) []core.Record {
	out := make([]core.Record, len(txs))
	for i, tx := range txs {
		out[i] = core.ToRecord(tx)
	}
	return out
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("yearmonth", func(fl validator.FieldLevel) bool {
		_, err := time.Parse(core.MonthLayout, fl.Field().String())
		return err == nil
	})
	_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	return v
}

// decode reads a JSON body into dst and validates it. The returned status is
// 400 for unreadable bodies and 422 for invalid fields.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) (int, error) {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(body)
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return http.StatusBadRequest, errBadJSON
		}
		return http.StatusBadRequest, fmt.Errorf("%w: %v", errBadJSON, err)
	}
	if err := s.validateStruct(dst); err != nil {
		return http.StatusUnprocessableEntity, err
	}
	return 0, nil
}

func (s *Server) validateStruct(v any) error {
	err := s.validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, e := range verrs {
		msgs = append(msgs, fieldErrorToString(e))
	}
	return fmt.Errorf("invalid input: %s", strings.Join(msgs, "; "))
}

func fieldErrorToString(e validator.FieldError) string {
	field := strings.ToLower(e.Field())
	switch e.Tag() {
	case "required", "required_if", "required_unless":
		return fmt.Sprintf("%s is required", field)
	case "notblank":
		return fmt.Sprintf("%s must not be blank", field)
	case "yearmonth":
		return fmt.Sprintf("%s must be in YYYY-MM format", field)
	case "datetime":
		return fmt.Sprintf("%s must be in YYYY-MM-DD format", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, e.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, e.Param())
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}
